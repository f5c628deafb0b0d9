package server

import (
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolrouter/config"
	"github.com/effective-security/toolrouter/orchestrator"
	"github.com/effective-security/toolrouter/pkg/llms/openai"
	"github.com/effective-security/toolrouter/registry"
	"github.com/effective-security/xlog"
	"github.com/gin-gonic/gin"
)

const (
	msgNoQuery      = "No query provided"
	msgNoMessage    = "No message provided"
	msgNoCredential = config.OpenAITokenEnv + " is not set"
	msgLLMFailure   = "Sorry, our assistant is not available right now, please try again later."
	msgInternal     = "Sorry, something went wrong, please try again later."
)

func (s *Server) handleSupport(c *gin.Context) {
	orch, ok := s.orchestrator(c, registry.ClassTicketRouting)
	if !ok {
		return
	}

	query := strings.TrimSpace(c.Query("query"))
	if query == "" {
		c.String(http.StatusBadRequest, msgNoQuery)
		return
	}

	s.run(c, orch, s.tickets, Page{Query: query}, query)
}

func (s *Server) handleSummarize(c *gin.Context) {
	orch, ok := s.orchestrator(c, registry.ClassWebSummary)
	if !ok {
		return
	}

	message := strings.TrimSpace(c.Query("message"))
	if message == "" {
		c.String(http.StatusBadRequest, msgNoMessage)
		return
	}
	url := strings.TrimSpace(c.Query("url"))

	query, err := registry.SummaryQuery(message, url)
	if err != nil {
		s.fail(c, err)
		return
	}

	s.run(c, orch, s.summary, Page{Query: message, URL: url}, query)
}

// orchestrator returns the orchestrator with the model of the flow,
// the error response is written if the model is not available.
func (s *Server) orchestrator(c *gin.Context, class registry.Class) (*orchestrator.Orchestrator, bool) {
	model, err := s.models.FlowModel(string(class))
	if err != nil {
		if errors.Is(err, openai.ErrMissingToken) {
			logger.ContextKV(c.Request.Context(), xlog.ERROR,
				"status", "missing_credential",
				"request_id", orchestrator.GetRequestID(c.Request.Context()),
				"flow", class,
			)
			c.String(http.StatusInternalServerError, msgNoCredential)
			return nil, false
		}
		s.fail(c, err)
		return nil, false
	}

	var opts []orchestrator.Option
	if s.callback != nil {
		opts = append(opts, orchestrator.WithCallback(s.callback))
	}
	return orchestrator.New(model, opts...), true
}

func (s *Server) run(c *gin.Context, orch *orchestrator.Orchestrator, reg *registry.Registry, p Page, query string) {
	ctx := c.Request.Context()
	outcome, err := orch.Run(ctx, reg, query)
	if err != nil {
		s.fail(c, err)
		return
	}

	p.Response = outcome.Text
	body, err := Render(p)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", body)
}

func (s *Server) fail(c *gin.Context, err error) {
	ctx := c.Request.Context()
	logger.ContextKV(ctx, xlog.ERROR,
		"status", "request_failed",
		"request_id", orchestrator.GetRequestID(ctx),
		"path", c.Request.URL.Path,
		"err", err.Error(),
	)

	switch {
	case errors.Is(err, orchestrator.ErrMissingQuery):
		c.String(http.StatusBadRequest, msgNoQuery)
	case errors.Is(err, orchestrator.ErrLLMCallFailure):
		c.String(http.StatusBadGateway, msgLLMFailure)
	default:
		c.String(http.StatusInternalServerError, msgInternal)
	}
}
