package prompts

import (
	"strings"

	"github.com/effective-security/toolrouter/pkg/llms"
	"github.com/effective-security/toolrouter/pkg/llmutils"
)

// ChatPromptValue is a prompt value that is a list of chat messages.
type ChatPromptValue []llms.Message

// String returns the chat message slice as a buffer string.
func (v ChatPromptValue) String() string {
	var buf strings.Builder
	llmutils.PrintMessages(&buf, v)
	return buf.String()
}

// Messages returns the ChatMessage slice.
func (v ChatPromptValue) Messages() []llms.Message {
	return v
}

// MessageFormatter formats one message of the chat prompt.
type MessageFormatter interface {
	FormatMessage(values map[string]any) (llms.Message, error)
}

// ChatPromptTemplate is a list of message templates.
type ChatPromptTemplate struct {
	Messages []MessageFormatter
}

// NewChatPromptTemplate returns the chat prompt template.
func NewChatPromptTemplate(messages []MessageFormatter) ChatPromptTemplate {
	return ChatPromptTemplate{Messages: messages}
}

// FormatPrompt formats the messages with the values.
func (p ChatPromptTemplate) FormatPrompt(values map[string]any) (ChatPromptValue, error) {
	res := make(ChatPromptValue, 0, len(p.Messages))
	for _, m := range p.Messages {
		msg, err := m.FormatMessage(values)
		if err != nil {
			return nil, err
		}
		res = append(res, msg)
	}
	return res, nil
}

// MessagePromptTemplate formats a message of the role.
type MessagePromptTemplate struct {
	Role     llms.Role
	Template PromptTemplate
}

// FormatMessage implements MessageFormatter.
func (p MessagePromptTemplate) FormatMessage(values map[string]any) (llms.Message, error) {
	text, err := p.Template.Format(values)
	if err != nil {
		return llms.Message{}, err
	}
	return llms.MessageFromTextParts(p.Role, text), nil
}

// NewSystemMessagePromptTemplate returns the template of the system message.
func NewSystemMessagePromptTemplate(template string, inputVariables []string) MessagePromptTemplate {
	return MessagePromptTemplate{
		Role:     llms.RoleSystem,
		Template: NewPromptTemplate(template, inputVariables),
	}
}

// NewHumanMessagePromptTemplate returns the template of the user message.
func NewHumanMessagePromptTemplate(template string, inputVariables []string) MessagePromptTemplate {
	return MessagePromptTemplate{
		Role:     llms.RoleHuman,
		Template: NewPromptTemplate(template, inputVariables),
	}
}
