package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/autocut/autocut-agent/internal/playback"
	"github.com/autocut/autocut-agent/internal/session"
	"github.com/autocut/autocut-agent/internal/tools"
	"github.com/autocut/autocut-agent/internal/video"
)

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// StillFunc renders one frame of a video as a JPEG.
type StillFunc func(ctx context.Context, path string, frame int, fps float64, width int) ([]byte, error)

// Defaults fill in request fields the client leaves empty.
type Defaults struct {
	Threshold   float64
	MinSceneLen int
	Container   string
	ClipPrefix  string
	ExportDir   string
}

type ServerConfig struct {
	Port       int
	Service    *session.Service
	Runner     *session.Runner
	Repository session.Repository
	Doctor     *tools.CachedDoctor
	Still      StillFunc
	Media      *playback.Streamer
	Defaults   Defaults
	Logger     *slog.Logger
	StartTime  time.Time
	DeviceID   string
	Version    string
}

func NewServer(cfg ServerConfig) *Server {
	if cfg.Still == nil {
		cfg.Still = video.Still
	}

	router := NewRouter(cfg)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("127.0.0.1:%d", cfg.Port),
			Handler:      LoopbackOnly(cfg.Logger)(router),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 0,
			IdleTimeout:  60 * time.Second,
		},
		logger: cfg.Logger,
	}
}

func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}
