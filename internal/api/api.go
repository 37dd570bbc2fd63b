// Package api provides HTTP handlers and the main API server logic for
// PartPilot.
//
// It exposes the chat endpoint the web frontend talks to, the troubleshoot
// answer endpoint for resuming diagnostic flows, and a health check. The API
// wires together the store, GenAI, scrape and agent modules.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/partpilot/partpilot/internal/agent"
	"github.com/partpilot/partpilot/internal/genai"
	"github.com/partpilot/partpilot/internal/scrape"
	"github.com/partpilot/partpilot/internal/store"
)

// DefaultAddr is the listen address used when none is configured.
const DefaultAddr = ":8080"

// DefaultRequestTimeout bounds the work done for a single chat turn,
// including any live page scrapes and LLM calls.
const DefaultRequestTimeout = 60 * time.Second

// Opts holds configuration options for the API server.
type Opts struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string
	// EnableScraper turns on the rod-backed live page scraper. Off by
	// default because it needs a local Chromium.
	EnableScraper bool
}

// Option configures the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithScraping enables or disables the live page scraper.
func WithScraping(enabled bool) Option {
	return func(o *Opts) { o.EnableScraper = enabled }
}

// Server carries the handler dependencies: the persistence layer and the
// dialogue engine.
type Server struct {
	st     store.Store
	engine *agent.Engine
}

// NewServer creates an API server over a store and engine.
func NewServer(st store.Store, engine *agent.Engine) *Server {
	return &Server{st: st, engine: engine}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/chat", s.chatHandler)
	mux.HandleFunc("/chat/troubleshoot-answer", s.troubleshootAnswerHandler)
	mux.HandleFunc("/health", s.healthHandler)
	return mux
}

// Run builds the full service from options and serves HTTP until the
// listener fails. Collaborators degrade gracefully: a missing API key
// disables LLM stages, scraping is opt-in, and an empty DSN selects the
// in-memory store.
func Run(storeOpts []store.Option, genaiOpts []genai.Option, browserOpts []scrape.BrowserOption, opts ...Option) error {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}

	st, err := buildStore(storeOpts)
	if err != nil {
		slog.Error("api.Run: store initialization failed", "error", err)
		return err
	}
	defer st.Close()

	var engineOpts []agent.Option

	var gCfg genai.Opts
	for _, opt := range genaiOpts {
		opt(&gCfg)
	}
	if gCfg.APIKey != "" {
		client, err := genai.NewClient(genaiOpts...)
		if err != nil {
			slog.Error("api.Run: GenAI client initialization failed", "error", err)
			return err
		}
		engineOpts = append(engineOpts, agent.WithLLM(client))
	} else {
		slog.Warn("api.Run: no OpenAI API key, LLM stages disabled")
	}

	if cfg.EnableScraper {
		browser, err := scrape.NewBrowser(browserOpts...)
		if err != nil {
			slog.Error("api.Run: browser initialization failed, scraping disabled", "error", err)
		} else {
			defer browser.Close()
			engineOpts = append(engineOpts, agent.WithScraper(browser))
		}
	}

	srv := NewServer(st, agent.NewEngine(st, engineOpts...))
	slog.Info("PartPilot API running", "addr", cfg.Addr)
	return http.ListenAndServe(cfg.Addr, srv.Handler())
}

func buildStore(storeOpts []store.Option) (store.Store, error) {
	var sCfg store.Opts
	for _, opt := range storeOpts {
		opt(&sCfg)
	}
	if sCfg.DSN == "" {
		slog.Warn("api.Run: no DSN configured, using in-memory store")
		return store.NewInMemoryStore(), nil
	}
	if store.DetectDSNType(sCfg.DSN) == "postgres" {
		return store.NewPostgresStore(storeOpts...)
	}
	return store.NewSQLiteStore(storeOpts...)
}
