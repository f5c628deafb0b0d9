// Package server provides the HTTP boundary of the toolrouter service.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolrouter/config"
	"github.com/effective-security/toolrouter/orchestrator"
	"github.com/effective-security/toolrouter/pkg/llmfactory"
	"github.com/effective-security/toolrouter/pkg/provider"
	"github.com/effective-security/toolrouter/registry"
	"github.com/effective-security/toolrouter/tools/webcontent"
	"github.com/effective-security/xlog"
	"github.com/gin-gonic/gin"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/toolrouter", "server")

// ShutdownTimeout is the time to complete the in-flight requests on shutdown
const ShutdownTimeout = 5 * time.Second

// Option configures the Server
type Option func(*Server)

// WithHTTPClient sets the HTTP client of the outbound calls
func WithHTTPClient(client *http.Client) Option {
	return func(s *Server) {
		s.httpClient = client
	}
}

// WithLLMFactory overrides the factory of the LLM models
func WithLLMFactory(f llmfactory.Factory) Option {
	return func(s *Server) {
		s.models = f
	}
}

// WithCallback sets the callback of the orchestrator
func WithCallback(cb orchestrator.Callback) Option {
	return func(s *Server) {
		s.callback = cb
	}
}

// Server serves the customer support and the web summary requests.
type Server struct {
	cfg        *config.Config
	httpClient *http.Client
	models     llmfactory.Factory
	callback   orchestrator.Callback
	tickets    *registry.Registry
	summary    *registry.Registry
	router     *gin.Engine
}

// New returns Server
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{cfg: cfg}
	for _, opt := range opts {
		opt(s)
	}

	if s.httpClient == nil {
		timeout, err := cfg.HTTP.GetTimeout()
		if err != nil {
			return nil, err
		}
		s.httpClient = &http.Client{Timeout: timeout}
	}
	if s.models == nil {
		s.models = llmfactory.New(&cfg.LLM, llmfactory.WithHTTPClient(s.httpClient))
	}

	providers := provider.New(append(cfg.ProviderOptions(), provider.WithHTTPClient(s.httpClient))...)
	tickets, err := registry.TicketRouting(providers)
	if err != nil {
		return nil, err
	}
	fetcher := webcontent.New(append(cfg.WebOptions(), webcontent.WithHTTPClient(s.httpClient))...)
	summary, err := registry.WebSummary(fetcher)
	if err != nil {
		return nil, err
	}
	s.tickets = tickets
	s.summary = summary

	s.router = s.buildRouter()
	return s, nil
}

func (s *Server) buildRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	support := requestContext(registry.ClassTicketRouting)
	router.GET("/", support, s.handleSupport)
	router.GET("/support", support, s.handleSupport)
	router.GET("/summarize", requestContext(registry.ClassWebSummary), s.handleSummarize)
	return router
}

// Handler returns the HTTP handler of the server
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves the requests until ctx is canceled
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.HTTP.GetListenAddr(),
		Handler:           s.router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		logger.KV(xlog.INFO, "status", "listening", "address", srv.Addr)
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "failed to start server")
	case <-ctx.Done():
	}

	logger.KV(xlog.INFO, "status", "shutting_down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "server shutdown failed")
	}
	return nil
}
