package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/menta2k/food-analyzer/internal/config"
)

// Estimator turns a food photo into the JSON body returned to clients
type Estimator interface {
	Estimate(ctx context.Context, image []byte, mediaType string) (json.RawMessage, error)
}

type Server struct {
	httpServer *http.Server
	cfg        config.ServerConfig
	log        *zap.Logger
}

// New wires the analysis routes onto a chi router
func New(cfg config.ServerConfig, estimator Estimator, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}

	h := &handler{
		estimator: estimator,
		maxUpload: cfg.MaxUploadBytes,
		maxDim:    cfg.MaxImageDim,
		quality:   cfg.ThumbnailQuality,
		log:       log,
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	router.Use(requestLogger(log), cors)

	router.Get("/healthz", h.health)
	router.Route("/api", func(r chi.Router) {
		r.Post("/analyze", h.analyze)
	})

	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Addr(),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
			MaxHeaderBytes:    1 << 20,
		},
		cfg: cfg,
		log: log,
	}
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) Run() error {
	s.log.Info("Server is running", zap.String("address", s.httpServer.Addr))

	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down server")
	return s.httpServer.Shutdown(ctx)
}
