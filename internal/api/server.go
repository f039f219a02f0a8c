// Package api exposes the analysis pipeline over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	gocache "github.com/patrickmn/go-cache"

	"github.com/crimson-sun/hazardscope/internal/engine"
	"github.com/crimson-sun/hazardscope/internal/logging"
	"github.com/crimson-sun/hazardscope/internal/model"
)

// Analyzer runs the pipeline on a file.
type Analyzer interface {
	AnalyzeFile(ctx context.Context, path, backend string) (engine.Report, error)
}

// ResultCache answers the read-only cache queries.
type ResultCache interface {
	Stats(ctx context.Context) (model.CacheStats, error)
	SimilarityAverages(ctx context.Context) (map[string]model.SimilarityAverage, error)
	CrossBackend(ctx context.Context, hash string) map[string]model.SimilarityPair
}

// Pinger reports storage health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures a Server.
type Options struct {
	ScratchDir     string        // upload staging directory, created if missing
	MaxUploadBytes int64         // request body limit; 0 disables it
	StatsTTL       time.Duration // how long stats responses are reused; 0 disables caching
	Metrics        http.Handler  // served at /metrics when set
	Health         Pinger        // consulted by /api/health when set
	Logger         *slog.Logger
}

// Server is the HTTP boundary of the pipeline.
type Server struct {
	echo     *echo.Echo
	analyzer Analyzer
	cache    ResultCache
	health   Pinger
	scratch  string
	stats    *gocache.Cache
	statsTTL time.Duration
	log      *slog.Logger
}

type errorResponse struct {
	Error string `json:"error"`
}

// New creates the server and registers its routes.
func New(a Analyzer, c ResultCache, opts Options) (*Server, error) {
	if opts.ScratchDir == "" {
		opts.ScratchDir = os.TempDir()
	}
	if err := os.MkdirAll(opts.ScratchDir, 0o755); err != nil {
		return nil, fmt.Errorf("api: scratch dir: %w", err)
	}

	s := &Server{
		echo:     echo.New(),
		analyzer: a,
		cache:    c,
		health:   opts.Health,
		scratch:  opts.ScratchDir,
		statsTTL: opts.StatsTTL,
		log:      logging.OrDefault(opts.Logger).With("component", "api"),
	}
	if s.statsTTL > 0 {
		s.stats = gocache.New(s.statsTTL, 2*s.statsTTL)
	}

	e := s.echo
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.handleError

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			level := slog.LevelInfo
			if v.Status >= http.StatusInternalServerError {
				level = slog.LevelWarn
			}
			attrs := []any{"method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency}
			if v.Error != nil {
				attrs = append(attrs, "error", v.Error)
			}
			s.log.Log(c.Request().Context(), level, "request", attrs...)
			return nil
		},
	}))

	g := e.Group("/api")
	if opts.MaxUploadBytes > 0 {
		g.POST("/analyze", s.analyze, middleware.BodyLimit(fmt.Sprintf("%dB", opts.MaxUploadBytes)))
	} else {
		g.POST("/analyze", s.analyze)
	}
	g.GET("/cache/stats", s.cacheStats)
	g.GET("/similarity/averages", s.similarityAverages)
	g.GET("/health", s.healthCheck)
	if opts.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(opts.Metrics))
	}
	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.echo }

// Start serves on addr until Shutdown. It returns nil after a clean shutdown.
func (s *Server) Start(addr string) error {
	s.log.Info("listening", "addr", addr)
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.stats != nil {
		s.stats.Flush()
	}
	return s.echo.Shutdown(ctx)
}

func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code := http.StatusInternalServerError
	msg := err.Error()
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		msg = fmt.Sprint(he.Message)
	}
	if jerr := c.JSON(code, errorResponse{Error: msg}); jerr != nil {
		s.log.Warn("writing error response", "error", jerr)
	}
}
