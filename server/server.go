// Package server exposes the training and inference pipelines over HTTP.
package server

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pharmalnet/dti/config"
	"github.com/pharmalnet/dti/dti"
	"github.com/pharmalnet/dti/pipeline"
	"github.com/pharmalnet/dti/pkg/errors"
	"github.com/pharmalnet/dti/pkg/log"
	"github.com/pharmalnet/dti/storage"
)

// API routes.
const (
	TrainPath   = "/pharmalnet/train/"
	PredictPath = "/pharmalnet/predict/"
)

// Server holds the HTTP engine and the pipelines it serves.
type Server struct {
	cfg       *config.Config
	engine    *gin.Engine
	trainer   *pipeline.Trainer
	predictor *pipeline.Predictor
	storage   storage.Storage
	logger    log.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithFactory replaces the model factory used for training.
func WithFactory(factory dti.Factory) Option {
	return func(s *Server) {
		s.trainer.Orchestrator = pipeline.NewOrchestrator(factory)
	}
}

// WithStorage replaces the artifact store.
func WithStorage(st storage.Storage) Option {
	return func(s *Server) {
		s.storage = st
	}
}

// New builds a Server from cfg.
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.EnsureDirs(); err != nil {
		return nil, err
	}

	predictor := pipeline.NewPredictor(cfg.Storage.WorkDir)
	predictor.Inspector.WeightsExt = cfg.Archive.WeightsExt
	predictor.Inspector.ConfigExt = cfg.Archive.ConfigExt

	s := &Server{
		cfg:       cfg,
		trainer:   pipeline.NewTrainer(cfg.Storage.WorkDir, nil),
		predictor: predictor,
		logger:    log.GetLoggerWithName("server"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.storage == nil {
		st, err := storage.New(cfg.Storage.MediaRoot, cfg.Storage.MediaURL)
		if err != nil {
			return nil, err
		}
		s.storage = st
	}

	s.engine = s.routes()
	return s, nil
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.MaxMultipartMemory = 32 << 20
	r.Use(recovery(s.logger), accessLogger(s.logger), corsMiddleware(s.cfg.CORS.AllowOrigins))

	r.GET("/healthy", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if s.cfg.Metrics.Enable {
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	r.Any(TrainPath, s.postOnly(s.train))
	r.Any(PredictPath, s.postOnly(s.predict))

	media := r.Group("/media")
	for _, kind := range []storage.Kind{storage.KindModel, storage.KindGraph} {
		media.GET("/"+string(kind), s.list(kind))
		media.GET("/"+string(kind)+"/:name", s.download(kind))
		media.DELETE("/"+string(kind)+"/:name", s.remove(kind))
	}
	return r
}

// Serve listens on the configured address until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Server.Host, strconv.Itoa(s.cfg.Server.Port))
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		s.logger.Info("Server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

// uploadLimit is the request body limit in bytes.
func (s *Server) uploadLimit() int64 {
	return s.cfg.Server.MaxUploadMB << 20
}
