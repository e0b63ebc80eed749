package net

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ServerConfig holds the relay's HTTP settings.
type ServerConfig struct {
	Addr            string
	AllowedOrigins  []string
	SendBuffer      int
	ReadBufferSize  int
	WriteBufferSize int
}

// DefaultServerConfig listens on :8888 and accepts any origin.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:            ":8888",
		AllowedOrigins:  []string{"*"},
		SendBuffer:      DefaultSendBuffer,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
}

// Server exposes the router over HTTP: /ws for sessions, /health and /metrics
// for operators. Extra handlers can be mounted before serving.
type Server struct {
	cfg      ServerConfig
	router   *Router
	metrics  *Metrics
	upgrader websocket.Upgrader
	mux      *chi.Mux
	logger   *zap.Logger
}

// NewServer builds the relay routes around router.
func NewServer(cfg ServerConfig, router *Router, metrics *Metrics, logger *zap.Logger) *Server {
	s := &Server{
		cfg:     cfg,
		router:  router,
		metrics: metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin:     originChecker(cfg.AllowedOrigins),
		},
		logger: logger.Named("server"),
	}
	s.mux = s.routes()
	return s
}

func (s *Server) routes() *chi.Mux {
	mux := chi.NewRouter()
	mux.Use(chimiddleware.RequestID)
	mux.Use(chimiddleware.RealIP)
	mux.Use(chimiddleware.Recoverer)
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	mux.Get("/ws", s.HandleWebSocket)
	mux.Group(func(r chi.Router) {
		r.Use(requestLogger(s.logger))
		r.Get("/health", s.handleHealth)
		r.Handle("/metrics", s.metrics.Handler())
	})
	return mux
}

// Mount attaches h under pattern with request logging.
func (s *Server) Mount(pattern string, h http.Handler) {
	s.mux.With(requestLogger(s.logger)).Mount(pattern, h)
}

// Handler returns the relay's HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// HandleWebSocket upgrades the request and hands the connection to the router.
// Connections are not authenticated.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Failed to upgrade connection",
			zap.Error(err),
			zap.String("remoteAddr", r.RemoteAddr),
		)
		return
	}

	peer := NewPeer(conn, s.router, s.cfg.SendBuffer, s.metrics, s.logger)
	if err := peer.Start(); err != nil {
		s.logger.Warn("Router unavailable, connection refused", zap.Error(err))
		return
	}
	s.logger.Info("New WebSocket connection",
		zap.String("peerId", peer.ID()),
		zap.String("remoteAddr", r.RemoteAddr),
	)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	w.Header().Set("Content-Type", "application/json")
	stats, err := s.router.Stats(ctx)
	if err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	json.NewEncoder(w).Encode(map[string]any{
		"status": "ok",
		"peers":  stats.Peers,
		"rooms":  len(stats.Rooms),
	})
}

// ListenAndServe serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Relay listening", zap.String("addr", s.cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.logger.Info("Relay stopped")
	return nil
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 || slices.Contains(allowed, "*") {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(allowed, origin)
	}
}

func requestLogger(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info("HTTP Request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("requestID", chimiddleware.GetReqID(r.Context())),
			)
		})
	}
}
