package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/liamcoop/formlogic/conditions"
	"github.com/liamcoop/formlogic/forms"
	"github.com/liamcoop/formlogic/formula"
	"github.com/liamcoop/formlogic/internal/logger"
	"github.com/liamcoop/formlogic/options"
	_ "github.com/lib/pq"
)

type Server struct {
	db         *sql.DB
	registry   *forms.Registry
	formulas   *formula.Engine
	conditions *conditions.Engine
	resolver   *options.Resolver
	events     *options.EventBusNotifier
	loaded     atomic.Int64
	failed     atomic.Int64
	router     *chi.Mux
}

// NewServer connects to DATABASE_URL when set and builds the server.
func NewServer(cfg Config) (*Server, error) {
	if cfg.DatabaseURL == "" {
		return NewServerWithDB(nil, cfg)
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return NewServerWithDB(db, cfg)
}

// NewServerWithDB builds the server on an open database. With a nil db the
// option cache lives in memory and model sources are unavailable.
func NewServerWithDB(db *sql.DB, cfg Config) (*Server, error) {
	events, err := options.NewEventBusNotifier()
	if err != nil {
		return nil, err
	}

	cacheCfg := options.CacheConfig{TTL: cfg.CacheTTL, Now: time.Now}
	resolverCfg := options.ResolverConfig{
		Fetcher:  options.NewHTTPFetcher(options.HTTPConfig{Timeout: cfg.HTTPTimeout, RetryMax: cfg.HTTPRetries}),
		Notifier: options.MultiNotifier{events, options.LogNotifier{}},
	}
	if db != nil {
		resolverCfg.Cache = options.NewSQLCache(db, cacheCfg)
		resolverCfg.Querier = options.NewSQLModelQuerier(db, cfg.Models)
	} else {
		resolverCfg.Cache = options.NewMemoryCache(cacheCfg)
	}

	condEngine, err := conditions.NewEngine()
	if err != nil {
		return nil, fmt.Errorf("failed to create condition engine: %w", err)
	}

	s := &Server{
		db:         db,
		formulas:   formula.NewEngine(formula.DefaultOptions()),
		conditions: condEngine,
		resolver:   options.NewResolver(resolverCfg),
		events:     events,
	}

	s.registry, err = forms.NewRegistry(forms.RegistryConfig{
		Formulas:   s.formulas,
		Conditions: s.conditions,
		Resolver:   s.resolver,
	})
	if err != nil {
		return nil, err
	}

	s.events.Subscribe(options.EventOptionsLoaded, func(context.Context, options.Event) error {
		s.loaded.Add(1)
		return nil
	})
	s.events.Subscribe(options.EventOptionsFailed, func(context.Context, options.Event) error {
		s.failed.Add(1)
		return nil
	})

	if cfg.FormsFile != "" {
		if err := s.loadForms(cfg.FormsFile); err != nil {
			return nil, err
		}
	}

	s.setupRoutes()
	return s, nil
}

// loadForms reads a JSON array of form definitions into the registry.
func (s *Server) loadForms(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read forms file: %w", err)
	}

	var raw []map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to parse forms file: %w", err)
	}

	for i, item := range raw {
		form, err := forms.DecodeForm(item)
		if err != nil {
			return fmt.Errorf("form %d: %w", i, err)
		}
		if err := s.registry.Put(form); err != nil {
			return fmt.Errorf("form %q: %w", form.ID, err)
		}
	}
	logger.Info("forms loaded", "path", path, "count", len(raw))
	return nil
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/api/v1/health", s.handleHealth)

	r.Route("/api/v1/formulas", func(r chi.Router) {
		r.Post("/evaluate", s.handleEvaluateFormula)
		r.Post("/fields", s.handleFormulaFields)
	})

	r.Route("/api/v1/conditions", func(r chi.Router) {
		r.Post("/evaluate", s.handleEvaluateConditions)
		r.Get("/operators", s.handleOperatorTable)
		r.Get("/operators/{category}", s.handleOperators)
	})

	r.Route("/api/v1/forms", func(r chi.Router) {
		r.Get("/", s.handleListForms)

		r.Route("/{formId}", func(r chi.Router) {
			r.Put("/", s.handlePutForm)
			r.Get("/", s.handleGetForm)
			r.Delete("/", s.handleDeleteForm)
			r.Post("/evaluate", s.handleEvaluateForm)
			r.Get("/fields/{field}/options", s.handleFieldOptions)
			r.Delete("/fields/{field}/options/cache", s.handleInvalidateOptions)
		})
	})

	s.router = r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// requestLogger logs each request at debug level and feeds the 4xx/5xx
// counters.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		logger.CountHTTPStatus(status)
		logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"duration", time.Since(start).String(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func main() {
	cfg, err := ConfigFromEnv()
	if err != nil {
		logger.Fatal("invalid configuration", "error", err)
	}

	server, err := NewServer(cfg)
	if err != nil {
		logger.Fatal("failed to create server", "error", err)
	}
	if server.db != nil {
		defer server.db.Close()
	}

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      server,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 75 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "port", cfg.Port, "storage", server.storage())
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed to start", "error", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	if err := logger.Shutdown(ctx); err != nil {
		logger.Error("logger shutdown error", "error", err)
	}
	logger.Info("server stopped")
}
