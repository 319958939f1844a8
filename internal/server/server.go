// Package server exposes the judge over HTTP. The transport's only contract
// with the core is that attestation bundles round-trip losslessly: decision,
// signature, signer, and scheme id all survive the JSON boundary.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/trufnetwork/waterjudge/internal/attest"
	"github.com/trufnetwork/waterjudge/internal/config"
	"github.com/trufnetwork/waterjudge/internal/judge"
	"github.com/trufnetwork/waterjudge/internal/metrics"
)

// Version is overridden at build time with ldflags.
var Version = "dev"

// Server wires the producer, attestor, and verifier behind gin routes.
type Server struct {
	cfg      *config.Config
	router   *gin.Engine
	producer *judge.Producer
	attestor *attest.Attestor
	verifier *attest.Verifier
	signer   *attest.JudgeSigner
	recorder metrics.Recorder
	logger   *zap.Logger
}

// Deps carries the server's collaborators. All fields are required except
// Recorder, which defaults to a no-op.
type Deps struct {
	Producer *judge.Producer
	Attestor *attest.Attestor
	Verifier *attest.Verifier
	Signer   *attest.JudgeSigner
	Recorder metrics.Recorder
}

func New(cfg *config.Config, deps Deps, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Recorder == nil {
		deps.Recorder = metrics.NewNoOpRecorder()
	}
	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		cfg:      cfg,
		router:   router,
		producer: deps.Producer,
		attestor: deps.Attestor,
		verifier: deps.Verifier,
		signer:   deps.Signer,
		recorder: deps.Recorder,
		logger:   logger,
	}
	router.Use(s.requestLogger())
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.GET("/", s.handleInfo)
	s.router.GET("/healthz", s.handleHealth)

	v1 := s.router.Group("/v1")
	{
		v1.POST("/judge", s.handleJudge)
		v1.POST("/verify", s.handleVerify)
	}

	// Legacy paths from the original deployment; both map to the judge flow.
	s.router.POST("/judge", s.handleJudge)
	s.router.POST("/analyze", s.handleJudge)
}

// Run serves until ctx is canceled, then drains within the shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("water judge listening",
			zap.String("addr", s.cfg.ListenAddr),
			zap.String("judge_address", s.signer.Address()))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := uuid.NewString()
		c.Set("request_id", requestID)
		started := time.Now()

		c.Next()

		s.logger.Info("request",
			zap.String("request_id", requestID),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(started)))
	}
}
