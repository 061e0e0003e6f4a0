package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	_ "github.com/lib/pq"

	"github.com/crediflow/loanrules/internal/logger"
	"github.com/crediflow/loanrules/loanrules"
)

// Server exposes the classification engine over HTTP. The engine owns the
// compiled rule table; the store is only consulted at startup and on
// explicit reload.
type Server struct {
	engine *loanrules.Engine
	store  *loanrules.CachedStore
	db     *sql.DB
	router *chi.Mux
}

// NewServer loads the rule table from the store, compiles it, and wires the
// routes. Construction fails if the table is invalid: the server must not
// start classifying against a corrupt table.
func NewServer(store loanrules.RuleSetStore) (*Server, error) {
	cached := loanrules.NewCachedStore(store, loanrules.DefaultCacheConfig())

	rs, err := cached.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load rule set: %w", err)
	}

	engine, err := loanrules.NewEngine(rs)
	if err != nil {
		return nil, fmt.Errorf("failed to build engine: %w", err)
	}

	s := &Server{
		engine: engine,
		store:  cached,
	}
	s.setupRoutes()

	return s, nil
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/api/v1/health", s.handleHealth)
	r.Post("/api/v1/classify", s.handleClassify)
	r.Route("/api/v1/rules", func(r chi.Router) {
		r.Get("/", s.handleListRules)
		r.Post("/reload", s.handleReload)
	})

	s.router = r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		if err := s.db.Ping(); err != nil {
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unhealthy",
				"error":  err.Error(),
			})
			return
		}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"status":      "healthy",
		"ruleVersion": s.engine.RuleSet().Version,
		"rulesLoaded": len(s.engine.RuleSet().Rules),
	})
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	var req classifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	applicant, err := req.applicant()
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid application", err)
		return
	}

	result, err := s.engine.Classify(applicant)
	if err != nil {
		if errors.Is(err, loanrules.ErrInvalidInput) {
			respondError(w, http.StatusBadRequest, "invalid application", err)
			return
		}
		respondError(w, http.StatusInternalServerError, "classification failed", err)
		return
	}

	logger.Logger.Info("application classified",
		"decision", result.Decision,
		"ruleIndex", result.RuleIndex,
		"matched", result.Matched,
	)

	respondJSON(w, http.StatusOK, newClassifyResponse(result))
}

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, newRulesResponse(s.engine.RuleSet()))
}

// handleReload pulls the latest table from the store and swaps it into the
// engine. Requests in flight keep classifying against the old table until
// the swap completes; a table that fails validation changes nothing.
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	s.store.Invalidate()

	rs, err := s.store.Load()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load rule set", err)
		return
	}

	if err := s.engine.Reload(rs); err != nil {
		respondError(w, http.StatusUnprocessableEntity, "rule set rejected", err)
		return
	}

	logger.Logger.Info("rule set reloaded",
		"version", rs.Version,
		"rules", len(rs.Rules),
	)

	respondJSON(w, http.StatusOK, map[string]any{
		"status":      "reloaded",
		"ruleVersion": rs.Version,
		"rulesLoaded": len(rs.Rules),
	})
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string, err error) {
	response := map[string]string{
		"error": message,
	}
	if err != nil {
		response["details"] = err.Error()
	}
	respondJSON(w, status, response)
}

func main() {
	logger.Init("loanrules-server")

	var (
		store loanrules.RuleSetStore
		db    *sql.DB
	)

	if databaseURL := os.Getenv("DATABASE_URL"); databaseURL != "" {
		var err error
		db, err = sql.Open("postgres", databaseURL)
		if err != nil {
			logger.Logger.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		if err := db.Ping(); err != nil {
			logger.Logger.Error("failed to ping database", "error", err)
			os.Exit(1)
		}
		store = loanrules.NewPostgresStore(db)
		logger.Logger.Info("using PostgreSQL rule store")
	} else {
		rs, err := loanrules.DefaultRuleSet()
		if err != nil {
			logger.Logger.Error("embedded knowledge base is invalid", "error", err)
			os.Exit(1)
		}
		static, err := loanrules.NewStaticStore(rs)
		if err != nil {
			logger.Logger.Error("embedded knowledge base is invalid", "error", err)
			os.Exit(1)
		}
		store = static
		logger.Logger.Info("using embedded knowledge base", "rules", len(rs.Rules))
	}

	server, err := NewServer(store)
	if err != nil {
		logger.Logger.Error("failed to create server", "error", err)
		os.Exit(1)
	}
	server.db = db
	if db != nil {
		defer db.Close()
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      server,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Logger.Info("server starting", "port", port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Logger.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Logger.Error("server shutdown error", "error", err)
	}
	if err := logger.Shutdown(ctx); err != nil {
		logger.Logger.Error("logger shutdown error", "error", err)
	}

	logger.Logger.Info("server stopped")
}
