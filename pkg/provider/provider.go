// Package provider implements the client of the capability providers,
// the department generation pipes that answer routed customer queries.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolrouter/pkg/metricskey"
	"github.com/effective-security/x/slices"
	"github.com/effective-security/xlog"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/toolrouter", "provider")

const (
	// DefaultBaseURL is the base URL of the generation pipes
	DefaultBaseURL = "https://api.langbase.com"
	// GeneratePath is appended to the base URL of a provider
	GeneratePath = "/beta/generate"
	// MaxReplySize is the limit of the reply body
	MaxReplySize = 4 * 1024 * 1024
)

var (
	// ErrMissingCredential is returned when a provider has no token configured
	ErrMissingCredential = errors.New("missing provider credential")
	// ErrUnknownProvider is returned when the provider ID is not configured
	ErrUnknownProvider = errors.New("unknown provider")
	// ErrReplyTooLarge is returned when the reply exceeds MaxReplySize
	ErrReplyTooLarge = errors.New("provider reply is too large")
)

// Doer performs a HTTP request.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config describes a capability provider.
type Config struct {
	// ID is the provider identifier, referenced by tools
	ID string `json:"id" yaml:"id" validate:"required"`
	// BaseURL overrides DefaultBaseURL
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	// Token is the bearer token of this provider only
	Token string `json:"token,omitempty" yaml:"token,omitempty"`
}

// Outcome of a provider call
type Outcome string

const (
	OutcomeOK                Outcome = "ok"
	OutcomeHTTPError         Outcome = "http_error"
	OutcomeTransportError    Outcome = "transport_error"
	OutcomeMissingCredential Outcome = "missing_credential"
)

// Event is emitted once per provider call.
type Event struct {
	ProviderID string
	// Status is the HTTP status code, zero if no response was received
	Status  int
	Latency time.Duration
	Outcome Outcome
	Err     error
}

// RawReply is the reply of a provider.
type RawReply struct {
	ProviderID string
	Status     int
	Body       []byte
	// Payload is the value of the `completion` field when the body is
	// a JSON object that has one, otherwise the decoded body.
	// A body that is not JSON is returned as a string.
	Payload any
}

// ProviderHTTPError is returned when a provider replies with non-2xx status.
type ProviderHTTPError struct {
	ProviderID string
	Status     int
	Body       string
}

func (e *ProviderHTTPError) Error() string {
	return fmt.Sprintf("%s returned unexpected status code: %d", e.ProviderID, e.Status)
}

// Option configures the Client
type Option func(*Client)

// WithProvider registers a provider
func WithProvider(cfg Config) Option {
	return func(c *Client) {
		c.providers[cfg.ID] = cfg
	}
}

// WithHTTPClient allows setting a custom HTTP client. If not set, the default value
// is http.DefaultClient.
func WithHTTPClient(client Doer) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithObserver sets a function to receive call events
func WithObserver(observer func(Event)) Option {
	return func(c *Client) {
		c.observer = observer
	}
}

// Client invokes capability providers.
// It is safe for concurrent use.
type Client struct {
	providers  map[string]Config
	httpClient Doer
	observer   func(Event)
}

// New returns a new Client
func New(opts ...Option) *Client {
	c := &Client{
		providers:  map[string]Config{},
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Providers returns sorted IDs of the configured providers
func (c *Client) Providers() []string {
	ids := make([]string, 0, len(c.providers))
	for id := range c.providers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Invoke sends the payload to the provider as a single user message.
func (c *Client) Invoke(ctx context.Context, providerID, payload string) (*RawReply, error) {
	cfg, ok := c.providers[providerID]
	if !ok {
		logger.ContextKV(ctx, xlog.ERROR,
			"status", "unknown_provider",
			"provider", providerID,
		)
		return nil, errors.WithMessagef(ErrUnknownProvider, "provider %q", providerID)
	}

	started := time.Now()
	if cfg.Token == "" {
		err := errors.WithMessagef(ErrMissingCredential, "provider %q", providerID)
		c.emit(ctx, started, Event{
			ProviderID: providerID,
			Outcome:    OutcomeMissingCredential,
			Err:        err,
		})
		return nil, err
	}

	body, err := requestBody(payload)
	if err != nil {
		return nil, err
	}

	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+GeneratePath, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+cfg.Token)

	r, err := c.httpClient.Do(req)
	if err != nil {
		err = errors.Wrapf(err, "send request to %s", providerID)
		c.emit(ctx, started, Event{
			ProviderID: providerID,
			Outcome:    OutcomeTransportError,
			Err:        err,
		})
		return nil, err
	}
	defer func() { _ = r.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(r.Body, MaxReplySize+1))
	if err == nil && len(raw) > MaxReplySize {
		err = errors.WithMessagef(ErrReplyTooLarge, "%s exceeded %d bytes", providerID, MaxReplySize)
	} else if err != nil {
		err = errors.Wrapf(err, "read reply from %s", providerID)
	}
	if err != nil {
		c.emit(ctx, started, Event{
			ProviderID: providerID,
			Status:     r.StatusCode,
			Outcome:    OutcomeTransportError,
			Err:        err,
		})
		return nil, err
	}

	if r.StatusCode < 200 || r.StatusCode > 299 {
		herr := &ProviderHTTPError{
			ProviderID: providerID,
			Status:     r.StatusCode,
			Body:       slices.StringUpto(string(raw), 256),
		}
		c.emit(ctx, started, Event{
			ProviderID: providerID,
			Status:     r.StatusCode,
			Outcome:    OutcomeHTTPError,
			Err:        herr,
		})
		return nil, herr
	}

	c.emit(ctx, started, Event{
		ProviderID: providerID,
		Status:     r.StatusCode,
		Outcome:    OutcomeOK,
	})

	return &RawReply{
		ProviderID: providerID,
		Status:     r.StatusCode,
		Body:       raw,
		Payload:    ExtractPayload(raw),
	}, nil
}

func (c *Client) emit(ctx context.Context, started time.Time, ev Event) {
	if ev.Outcome != OutcomeMissingCredential {
		ev.Latency = time.Since(started)
		metricskey.PerfProviderCall.MeasureSince(started, ev.ProviderID)
	}

	level := xlog.DEBUG
	kv := []any{
		"status", "provider_call",
		"provider", ev.ProviderID,
		"http_status", ev.Status,
		"latency", ev.Latency.String(),
		"outcome", string(ev.Outcome),
	}
	if ev.Err != nil {
		level = xlog.WARNING
		kv = append(kv, "err", ev.Err.Error())
	}
	logger.ContextKV(ctx, level, kv...)

	metricskey.StatsProviderCalls.IncrCounter(1, ev.ProviderID, string(ev.Outcome))
	if c.observer != nil {
		c.observer(ev)
	}
}

func requestBody(payload string) ([]byte, error) {
	body, err := sjson.SetBytes([]byte(`{"messages":[{"role":"user"}]}`), "messages.0.content", payload)
	if err != nil {
		return nil, errors.Wrap(err, "build request body")
	}
	return body, nil
}

// ExtractPayload returns the `completion` field of a JSON object body,
// otherwise the decoded body, or the body as string if it's not JSON.
func ExtractPayload(body []byte) any {
	if !gjson.ValidBytes(body) {
		return string(body)
	}
	res := gjson.ParseBytes(body)
	if res.IsObject() {
		if completion := res.Get("completion"); completion.Exists() {
			return decodeValue(completion.Raw)
		}
	}
	return decodeValue(res.Raw)
}

// decodeValue keeps JSON numbers in their literal form
func decodeValue(raw string) any {
	d := json.NewDecoder(strings.NewReader(raw))
	d.UseNumber()
	var v any
	if err := d.Decode(&v); err != nil {
		return raw
	}
	return v
}
