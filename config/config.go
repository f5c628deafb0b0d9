// Package config provides the configuration of the toolrouter service.
package config

import (
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolrouter/pkg/llmfactory"
	"github.com/effective-security/toolrouter/pkg/provider"
	"github.com/effective-security/toolrouter/tools/department"
	"github.com/effective-security/toolrouter/tools/webcontent"
	"github.com/effective-security/x/configloader"
	"github.com/effective-security/xlog"
	"github.com/go-playground/validator/v10"
)

const (
	// DefaultListenAddr is the default listen address of the HTTP server
	DefaultListenAddr = ":8080"
	// DefaultTimeout is the default timeout of the outbound HTTP calls
	DefaultTimeout = 60 * time.Second

	// OpenAITokenEnv is the environment variable with the OpenAI API key
	OpenAITokenEnv = "OPENAI_API_KEY" //nolint:gosec
)

// ProviderTokenEnv maps the department providers to the environment
// variables with their tokens.
var ProviderTokenEnv = map[string]string{
	department.Sports.ProviderID:      "LANGBASE_SPORTS_PIPE_API_KEY",
	department.Electronics.ProviderID: "LANGBASE_ELECTRONICS_PIPE_API_KEY",
	department.Travel.ProviderID:      "LANGBASE_TRAVEL_PIPE_API_KEY",
}

// Config of the service
type Config struct {
	HTTP      HTTPConfig        `json:"http" yaml:"http"`
	LLM       llmfactory.Config `json:"llm" yaml:"llm"`
	Providers []provider.Config `json:"providers" yaml:"providers" validate:"dive"`
	Web       WebConfig         `json:"web" yaml:"web"`
	Log       LogConfig         `json:"log" yaml:"log"`
}

// HTTPConfig of the server and the outbound calls
type HTTPConfig struct {
	// ListenAddr is the address the server listens on
	ListenAddr string `json:"listen_addr,omitempty" yaml:"listen_addr,omitempty"`
	// Timeout of the outbound HTTP calls, such as 30s or 1m
	Timeout string `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// WebConfig of the web content tool
type WebConfig struct {
	UserAgent        string `json:"user_agent,omitempty" yaml:"user_agent,omitempty"`
	MaxContentLength int64  `json:"max_content_length,omitempty" yaml:"max_content_length,omitempty" validate:"gte=0"`
}

// LogConfig of the logger
type LogConfig struct {
	// Level is one of DEBUG, INFO, WARNING, ERROR
	Level string `json:"level,omitempty" yaml:"level,omitempty" validate:"omitempty,oneof=DEBUG INFO WARNING ERROR debug info warning error"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Load returns the configuration from the file,
// or from the environment if the file is not specified.
func Load(file string) (*Config, error) {
	if file == "" {
		return FromEnv()
	}

	cfg := new(Config)
	if err := configloader.UnmarshalAndExpand(file, cfg); err != nil {
		return nil, errors.WithMessagef(err, "failed to load config %q", file)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv returns the configuration from the environment variables
func FromEnv() (*Config, error) {
	cfg := &Config{
		LLM: llmfactory.Config{
			DefaultProvider: "openai",
			Providers: []*llmfactory.ProviderConfig{
				{
					Name:         "openai",
					Token:        os.Getenv(OpenAITokenEnv),
					DefaultModel: llmfactory.DefaultModel,
					OpenAI: llmfactory.OpenAIConfig{
						APIType: "OPENAI",
						BaseURL: os.Getenv("OPENAI_BASE_URL"),
					},
				},
			},
		},
		Providers: []provider.Config{
			departmentProvider(department.Sports.ProviderID),
			departmentProvider(department.Electronics.ProviderID),
			departmentProvider(department.Travel.ProviderID),
		},
		Log: LogConfig{
			Level: os.Getenv("TOOLROUTER_LOG_LEVEL"),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func departmentProvider(id string) provider.Config {
	return provider.Config{
		ID:    id,
		Token: os.Getenv(ProviderTokenEnv[id]),
	}
}

// Validate returns an error if the configuration is invalid
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verr validator.ValidationErrors
		if errors.As(err, &verr) && len(verr) > 0 {
			return errors.Newf("invalid configuration: %s is %s", verr[0].Namespace(), verr[0].Tag())
		}
		return errors.WithMessage(err, "invalid configuration")
	}
	if _, err := c.HTTP.GetTimeout(); err != nil {
		return err
	}
	return nil
}

// GetListenAddr returns the listen address, or DefaultListenAddr
func (c *HTTPConfig) GetListenAddr() string {
	if c.ListenAddr == "" {
		return DefaultListenAddr
	}
	return c.ListenAddr
}

// GetTimeout returns the timeout of the outbound calls, or DefaultTimeout
func (c *HTTPConfig) GetTimeout() (time.Duration, error) {
	if c.Timeout == "" {
		return DefaultTimeout, nil
	}
	d, err := time.ParseDuration(c.Timeout)
	if err != nil || d <= 0 {
		return 0, errors.Newf("invalid configuration: http.timeout: %q", c.Timeout)
	}
	return d, nil
}

// LLMToken returns the token of the default LLM provider
func (c *Config) LLMToken() string {
	def := c.defaultLLMProvider()
	if def == nil {
		return ""
	}
	return def.Token
}

func (c *Config) defaultLLMProvider() *llmfactory.ProviderConfig {
	for _, p := range c.LLM.Providers {
		if p.Name == c.LLM.DefaultProvider {
			return p
		}
	}
	if len(c.LLM.Providers) > 0 {
		return c.LLM.Providers[0]
	}
	return nil
}

// WebOptions returns the options of the web content tool
func (c *Config) WebOptions() []webcontent.Option {
	var opts []webcontent.Option
	if c.Web.UserAgent != "" {
		opts = append(opts, webcontent.WithUserAgent(c.Web.UserAgent))
	}
	if c.Web.MaxContentLength > 0 {
		opts = append(opts, webcontent.WithMaxContentLength(c.Web.MaxContentLength))
	}
	return opts
}

// ProviderOptions returns the options of the provider client
func (c *Config) ProviderOptions() []provider.Option {
	opts := make([]provider.Option, 0, len(c.Providers))
	for _, p := range c.Providers {
		opts = append(opts, provider.WithProvider(p))
	}
	return opts
}

// LogLevel returns the configured log level, INFO by default
func (c *LogConfig) LogLevel() xlog.LogLevel {
	switch strings.ToUpper(c.Level) {
	case "DEBUG":
		return xlog.DEBUG
	case "WARNING":
		return xlog.WARNING
	case "ERROR":
		return xlog.ERROR
	}
	return xlog.INFO
}
