// Package server exposes the automation pipeline over HTTP: a submission
// endpoint, a health check and a payment webhook.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"formpilot/internal/automation"
	"formpilot/internal/config"
	"formpilot/internal/declaration"
	"formpilot/internal/logging"
	"formpilot/internal/store"
)

// Runner executes one automation run. Satisfied by automation.Orchestrator.
type Runner interface {
	Run(ctx context.Context, rec *declaration.Record, opts automation.Options) *automation.Result
}

// Server wires the router, the orchestrator and the record store.
type Server struct {
	httpServer *http.Server
	runner     Runner
	records    store.Store
	secret     []byte
	runSlots   *semaphore.Weighted
	log        *zap.Logger
}

// New builds a Server from the loaded configuration.
func New(cfg *config.Config, runner Runner, records store.Store, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		runner:   runner,
		records:  records,
		secret:   []byte(cfg.Server.WebhookSecret),
		runSlots: semaphore.NewWeighted(int64(cfg.Server.MaxConcurrentRuns)),
		log:      log,
	}

	router := mux.NewRouter()
	router.Use(s.logRequests)
	router.HandleFunc("/api/v1/submit", s.handleSubmit).Methods(http.MethodPost)
	router.HandleFunc("/api/v1/health", s.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/webhook/payment", s.handlePaymentWebhook).Methods(http.MethodPost)

	s.httpServer = &http.Server{
		Handler: router,
		Addr:    cfg.Server.Addr,
		// Submissions drive a real browser; the write timeout must cover a
		// full run budget, not a typical request.
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
	}
	return s
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// ListenAndServe blocks serving requests until Stop or a listener error.
func (s *Server) ListenAndServe() error {
	s.log.Info("server listening", zap.String("addr", s.httpServer.Addr))
	logging.Server("listening on %s", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Stop drains in-flight requests and shuts the server down.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := s.httpServer.Shutdown(ctx)
	if err != nil {
		s.log.Error("server shutdown", zap.Error(err))
	}
	return err
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}
