package orchestrator

import (
	"github.com/effective-security/toolrouter/pkg/llms"
)

// Option is a function that can be used to modify the behavior of the Orchestrator Config.
type Option func(*Config)

type Config struct {
	// Model is the model to use in an LLM call.
	Model    string
	modelSet bool

	// MaxTokens is the maximum number of tokens to generate to use in an LLM call.
	MaxTokens    int
	maxTokensSet bool

	// Temperature is the temperature for sampling to use in an LLM call, between 0 and 1.
	Temperature    float64
	temperatureSet bool

	// Seed is a seed for deterministic sampling in an LLM call.
	Seed    int
	seedSet bool

	// CallbackHandler receives the request events
	CallbackHandler Callback
}

// NewConfig returns Config with the options applied
func NewConfig(opts ...Option) *Config {
	cfg := &Config{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.CallbackHandler == nil {
		cfg.CallbackHandler = noopCallback{}
	}
	return cfg
}

// GetCallOptions returns the LLM call options
func (cfg *Config) GetCallOptions(extra ...llms.CallOption) []llms.CallOption {
	var opts []llms.CallOption
	if cfg.modelSet {
		opts = append(opts, llms.WithModel(cfg.Model))
	}
	if cfg.maxTokensSet {
		opts = append(opts, llms.WithMaxTokens(cfg.MaxTokens))
	}
	if cfg.temperatureSet {
		opts = append(opts, llms.WithTemperature(cfg.Temperature))
	}
	if cfg.seedSet {
		opts = append(opts, llms.WithSeed(cfg.Seed))
	}
	return append(opts, extra...)
}

// WithModel specifies which model name to use.
func WithModel(model string) Option {
	return func(o *Config) {
		o.Model = model
		o.modelSet = model != ""
	}
}

// WithMaxTokens specifies the max number of tokens to generate.
func WithMaxTokens(maxTokens int) Option {
	return func(o *Config) {
		o.MaxTokens = maxTokens
		o.maxTokensSet = maxTokens > 0
	}
}

// WithTemperature specifies the model temperature, a hyperparameter that
// regulates the randomness, or creativity, of the AI's responses.
func WithTemperature(temperature float64) Option {
	return func(o *Config) {
		o.Temperature = temperature
		o.temperatureSet = true
	}
}

// WithSeed will add an option to use deterministic sampling.
func WithSeed(seed int) Option {
	return func(o *Config) {
		o.Seed = seed
		o.seedSet = true
	}
}

// WithCallback allows setting a custom Callback Handler.
func WithCallback(callbackHandler Callback) Option {
	return func(o *Config) {
		o.CallbackHandler = callbackHandler
	}
}
