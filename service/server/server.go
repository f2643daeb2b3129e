package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/brojonat/txreview/service/config"
	"github.com/brojonat/txreview/service/metrics"
	natspkg "github.com/brojonat/txreview/service/nats"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// readLimitSlack covers the JSON envelope and escaping around an upload.
const readLimitSlack = 64 << 10

// Server represents the HTTP server for the review service.
type Server struct {
	addr      string
	cfg       *config.Config
	store     TransactionStore
	publisher natspkg.Publisher
	decoder   Decoder
	metrics   *metrics.Metrics
	logger    *slog.Logger
	server    *http.Server
}

// New creates a new HTTP server with the given dependencies.
// The publisher is optional - if nil, stored transactions are not announced.
// The metrics is optional - if nil, metrics endpoints won't be available.
func New(cfg *config.Config, store TransactionStore, publisher natspkg.Publisher, decoder Decoder, m *metrics.Metrics, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	s := &Server{
		addr:      cfg.ServerAddr,
		cfg:       cfg,
		store:     store,
		publisher: publisher,
		decoder:   decoder,
		metrics:   m,
		logger:    logger,
	}
	// Built up front so Shutdown never races Start.
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler builds the routed handler. Start serves it; tests mount it on httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	svc := &reviewService{
		store:          s.store,
		publisher:      s.publisher,
		decoder:        s.decoder,
		maxUploadBytes: s.cfg.MaxUploadBytes,
		metrics:        s.metrics,
		logger:         s.logger,
	}
	opts := sessionOptions{
		writeTimeout: s.cfg.WriteTimeout,
		pingInterval: s.cfg.PingInterval,
		// Escaping can double an upload's size on the wire.
		readLimit: 2*s.cfg.MaxUploadBytes + readLimitSlack,
	}

	// Review session
	mux.Handle("GET "+reviewEndpoint, s.instrument(reviewEndpoint, handleReviewSession(svc, opts, s.logger)))

	// Stored transactions
	mux.Handle("GET /api/v1/transactions", s.instrument("/api/v1/transactions", handleListTransactions(s.store, s.logger)))

	// Health check endpoint
	mux.Handle("GET /health", s.instrument("/health", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})))

	// Prometheus metrics endpoint (if metrics collector is configured)
	if s.metrics != nil {
		mux.Handle("GET /metrics", promhttp.Handler())
	}

	// Wrap mux with CORS middleware
	return corsMiddleware(mux)
}

func (s *Server) instrument(name string, h http.Handler) http.Handler {
	if s.metrics == nil {
		return h
	}
	return metrics.HTTPMetricsMiddleware(s.metrics, name)(h)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	if s.metrics != nil {
		s.logger.Info("Prometheus metrics endpoint enabled")
	}
	s.logger.Info("starting HTTP server",
		"addr", s.addr,
		"decoder", s.cfg.DecoderJQ,
		"max_upload_bytes", s.cfg.MaxUploadBytes,
	)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
// Hijacked websocket sessions are not tracked by http.Server; they end when
// their clients disconnect or the process exits.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	return s.server.Shutdown(ctx)
}

// corsMiddleware adds CORS headers to all responses and handles OPTIONS preflight requests.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Set CORS headers for all requests
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "3600")

		// Handle preflight OPTIONS requests
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		// Pass through to next handler
		next.ServeHTTP(w, r)
	})
}
