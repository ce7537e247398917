// Package server exposes curriculum streaming, answer checking and learner
// sessions over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/abhisek/lessonstream/internal/config"
	"github.com/abhisek/lessonstream/internal/curriculum"
	"github.com/abhisek/lessonstream/internal/llm"
	"github.com/abhisek/lessonstream/internal/logger"
	"github.com/abhisek/lessonstream/internal/session"
	"github.com/abhisek/lessonstream/internal/store"
)

// Curriculum starts decoded streams and opens raw ones.
// *curriculum.Decoder implements it.
type Curriculum interface {
	session.Starter
	OpenRaw(ctx context.Context, topic string, total int) (<-chan llm.Chunk, error)
}

// Check is a named readiness probe, e.g. the store ping.
type Check struct {
	Name string
	Fn   func(ctx context.Context) error
}

// Deps are the collaborators of a Server. Events, Log and Checks may be
// empty.
type Deps struct {
	Curriculum Curriculum
	Grader     session.Grader
	Events     store.EventRepo
	Log        *logger.Logger
	Checks     []Check
}

type Server struct {
	Engine   *gin.Engine
	Registry *Registry

	cfg  *config.Config
	deps Deps
	log  *logger.Logger
}

func New(cfg *config.Config, deps Deps) *Server {
	log := deps.Log
	if log == nil {
		log = logger.Nop()
	}
	s := &Server{
		Registry: NewRegistry(cfg.Server.SessionTTL, log),
		cfg:      cfg,
		deps:     deps,
		log:      log.Named("http"),
	}
	s.Engine = s.router()
	return s
}

func (s *Server) router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(s.cfg.Tracing.ServiceName))
	r.Use(RequestLogger(s.log))
	r.Use(CORS(s.cfg.Server.AllowedOrigins))

	r.GET("/healthz", s.health)
	r.GET("/readyz", s.ready)

	api := r.Group("/api")
	{
		api.POST("/generate-curriculum", s.generateCurriculum)
		api.POST("/check-answer", s.checkAnswer)

		sessions := api.Group("/sessions")
		sessions.POST("", s.createSession)
		sessions.GET("/:id", s.getSession)
		sessions.DELETE("/:id", s.deleteSession)
		sessions.GET("/:id/events", s.sessionEvents)
		sessions.POST("/:id/answer", s.submitAnswer)
		sessions.POST("/:id/skip", s.skip)
		sessions.PUT("/:id/input", s.setInput)
	}
	return r
}

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go s.Registry.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	timeout := s.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	sctx, scancel := context.WithTimeout(context.Background(), timeout)
	defer scancel()
	s.log.Info("shutting down")
	return srv.Shutdown(sctx)
}

var _ Curriculum = (*curriculum.Decoder)(nil)
