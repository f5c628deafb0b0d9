package llmfactory

import (
	"net/http"
	"slices"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolrouter/pkg/llms"
	"github.com/effective-security/toolrouter/pkg/llms/openai"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/toolrouter", "llmfactory")

// NewLLM is a wrapper for CreateLLM to allow for overriding the default implementation.
var NewLLM = CreateLLM

// Doer performs HTTP requests for the created models.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Factory is the interface for creating and managing LLM models.
type Factory interface {
	// DefaultModel returns the default LLM model.
	DefaultModel() (llms.Model, error)
	// ModelByType returns an LLM model by its API type: OPENAI or AZURE
	ModelByType(providerType string) (llms.Model, error)
	// ModelByName returns an LLM model by its name,
	// if the model is not found, it will return the default model.
	ModelByName(preferredModels ...string) (llms.Model, error)
	// FlowModel returns the model configured for the request flow.
	FlowModel(flow string, preferredModels ...string) (llms.Model, error)
}

// Option configures the factory.
type Option func(*factory)

// WithHTTPClient sets the HTTP client used by the created models.
func WithHTTPClient(client Doer) Option {
	return func(f *factory) {
		f.httpClient = client
	}
}

// Load returns OpenAI factory
func Load(location string, opts ...Option) (Factory, error) {
	cfg, err := LoadConfig(location)
	if err != nil {
		return nil, err
	}
	return New(cfg, opts...), nil
}

type factory struct {
	cfg *Config

	httpClient      Doer
	defaultProvider *ProviderConfig
	flowModels      map[string][]string
	byType          map[string]llms.Model
	byName          map[string]llms.Model
	lock            sync.Mutex
}

// New creates a new LLM factory
func New(cfg *Config, opts ...Option) Factory {
	f := &factory{
		cfg:        cfg,
		byType:     make(map[string]llms.Model),
		byName:     make(map[string]llms.Model),
		flowModels: make(map[string][]string),
	}
	for _, opt := range opts {
		opt(f)
	}

	for k, v := range cfg.FlowModels {
		f.flowModels[k] = slices.Clone(v)
	}

	if cfg.DefaultProvider != "" {
		for _, provider := range cfg.Providers {
			if provider.Name == cfg.DefaultProvider {
				f.defaultProvider = provider
				break
			}
		}
	}

	if f.defaultProvider == nil && len(f.cfg.Providers) > 0 {
		f.defaultProvider = f.cfg.Providers[0]
	}

	return f
}

// NormalizeAPIType returns the canonical API type name.
func NormalizeAPIType(apiType string) string {
	switch strings.ToUpper(apiType) {
	case "", "OPENAI", "OPEN_AI":
		return string(llms.ProviderOpenAI)
	case "AZURE", "AZURE_AD":
		return string(llms.ProviderAzure)
	}
	return strings.ToUpper(apiType)
}

// CreateLLM creates the model described by cfg.
func CreateLLM(cfg *ProviderConfig, client Doer, preferredModels ...string) (llms.Model, error) {
	opts := []openai.Option{
		openai.WithModel(cfg.FindModel(preferredModels...)),
	}
	if cfg.Token != "" {
		opts = append(opts, openai.WithToken(cfg.Token))
	}
	if cfg.OpenAI.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.OpenAI.BaseURL))
	}
	if cfg.OpenAI.OrgID != "" {
		opts = append(opts, openai.WithOrganization(cfg.OpenAI.OrgID))
	}
	if client != nil {
		opts = append(opts, openai.WithHTTPClient(client))
	}

	provType := NormalizeAPIType(cfg.OpenAI.APIType)
	switch provType {
	case string(llms.ProviderOpenAI):
		opts = append(opts, openai.WithProvider(openai.ProviderOpenAI))
	case string(llms.ProviderAzure):
		opts = append(opts, openai.WithProvider(openai.ProviderAzure))
		if cfg.OpenAI.APIVersion != "" {
			opts = append(opts, openai.WithAPIVersion(cfg.OpenAI.APIVersion))
		}
	default:
		return nil, errors.Errorf("unsupported provider type: %s", provType)
	}
	return openai.New(opts...)
}

// DefaultModel returns the model of the default provider
func (f *factory) DefaultModel() (llms.Model, error) {
	if len(f.cfg.Providers) == 0 || f.defaultProvider == nil {
		return nil, errors.New("no providers configured")
	}

	return NewLLM(f.defaultProvider, f.httpClient, f.defaultProvider.DefaultModel)
}

func (f *factory) ModelByType(providerType string) (llms.Model, error) {
	providerType = NormalizeAPIType(providerType)

	f.lock.Lock()
	defer f.lock.Unlock()

	if client, ok := f.byType[providerType]; ok {
		return client, nil
	}

	for _, cfg := range f.cfg.Providers {
		if NormalizeAPIType(cfg.OpenAI.APIType) == providerType {
			model, err := NewLLM(cfg, f.httpClient)
			if err != nil {
				return nil, err
			}

			logger.KV(xlog.DEBUG,
				"status", "created_llm",
				"type", providerType,
				"version", cfg.OpenAI.APIVersion,
				"name", cfg.Name)

			f.byType[providerType] = model
			return model, nil
		}
	}
	return nil, errors.Errorf("provider not found for type: %s", providerType)
}

func (f *factory) ModelByName(modelNames ...string) (llms.Model, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	for _, modelName := range modelNames {
		if client, ok := f.byName[modelName]; ok {
			return client, nil
		}

		for _, cfg := range f.cfg.Providers {
			if slices.Contains(cfg.AvailableModels, modelName) {
				model, err := NewLLM(cfg, f.httpClient, modelNames...)
				if err != nil {
					logger.KV(xlog.ERROR,
						"reason", "NewLLM",
						"type", cfg.OpenAI.APIType,
						"models", modelNames,
						"err", err.Error(),
					)
					continue
				}

				logger.KV(xlog.DEBUG,
					"status", "created_llm",
					"type", cfg.OpenAI.APIType,
					"version", cfg.OpenAI.APIVersion,
					"name", cfg.Name)

				f.byName[modelName] = model
				return model, nil
			}
		}
	}
	return f.DefaultModel()
}

// FlowModel returns the model configured for the request flow.
func (f *factory) FlowModel(flow string, preferredModels ...string) (llms.Model, error) {
	if modelNames, ok := f.flowModels[flow]; ok {
		return f.ModelByName(modelNames...)
	}
	if modelNames, ok := f.flowModels["default"]; ok {
		return f.ModelByName(modelNames...)
	}
	return f.ModelByName(preferredModels...)
}
