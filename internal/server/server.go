package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"reviewsentiment/internal/analysis"
	"reviewsentiment/internal/domain"
	"reviewsentiment/internal/spreadsheet"
)

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 100
)

type Service interface {
	AnalyzeFile(ctx context.Context, origin, name string, r io.Reader) (domain.AnalysisRun, error)
	RecentRuns(ctx context.Context, limit int) ([]domain.AnalysisRun, error)
	Run(ctx context.Context, id int64) (domain.AnalysisRun, error)
}

type Options struct {
	MaxUploadMB    int
	Provider       string
	Model          string
	MetricsHandler http.Handler
	Logger         *slog.Logger
}

type Server struct {
	Echo    *echo.Echo
	service Service
	opts    Options
	logger  *slog.Logger
}

// errorBody is the JSON error shape returned by every endpoint.
type errorBody struct {
	Detail string `json:"detail"`
}

func New(service Service, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		Echo:    echo.New(),
		service: service,
		opts:    opts,
		logger:  logger.With(slog.String("component", "http")),
	}
	s.Echo.HideBanner = true
	s.Echo.HidePort = true
	s.configureMiddleware()
	s.registerRoutes()
	return s
}

func (s *Server) configureMiddleware() {
	s.Echo.Use(middleware.Recover())
	s.Echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogMethod:   true,
		LogRemoteIP: true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			level := slog.LevelInfo
			switch {
			case v.Status >= 500:
				level = slog.LevelError
			case v.Status >= 400:
				level = slog.LevelWarn
			}
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("remote_ip", v.RemoteIP),
			}
			if v.Error != nil {
				attrs = append(attrs, slog.Any("error", v.Error))
			}
			s.logger.LogAttrs(c.Request().Context(), level, "http request", attrs...)
			return nil
		},
	}))
	if s.opts.MaxUploadMB > 0 {
		s.Echo.Use(middleware.BodyLimit(fmt.Sprintf("%dM", s.opts.MaxUploadMB)))
	}
}

func (s *Server) registerRoutes() {
	s.Echo.POST("/analyze", s.handleAnalyze)
	s.Echo.GET("/runs", s.handleListRuns)
	s.Echo.GET("/runs/:id", s.handleGetRun)
	s.Echo.GET("/healthz", s.handleHealth)
	if s.opts.MetricsHandler != nil {
		s.Echo.GET("/metrics", echo.WrapHandler(s.opts.MetricsHandler))
	}
}

func (s *Server) handleAnalyze(c echo.Context) error {
	file, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Detail: "No file uploaded"})
	}
	name := filepath.Base(file.Filename)
	if _, err := spreadsheet.Extension(name); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Detail: "Unsupported file type"})
	}

	src, err := file.Open()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, errorBody{Detail: err.Error()})
	}
	defer src.Close()

	run, err := s.service.AnalyzeFile(c.Request().Context(), domain.OriginUpload, name, src)
	if err != nil {
		var unsupported *domain.UnsupportedFormatError
		if errors.As(err, &unsupported) {
			return c.JSON(http.StatusBadRequest, errorBody{Detail: "Unsupported file type"})
		}
		s.logger.Warn("analysis failed", slog.String("file", name), slog.Any("error", err))
		return c.JSON(http.StatusInternalServerError, errorBody{Detail: err.Error()})
	}

	if run.ID > 0 {
		c.Response().Header().Set("X-Run-ID", strconv.FormatInt(run.ID, 10))
	}
	return c.JSON(http.StatusOK, run.Result)
}

func (s *Server) handleListRuns(c echo.Context) error {
	limit := defaultRunsLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return c.JSON(http.StatusBadRequest, errorBody{Detail: "limit must be a positive integer"})
		}
		limit = min(n, maxRunsLimit)
	}

	runs, err := s.service.RecentRuns(c.Request().Context(), limit)
	if err != nil {
		return s.historyError(c, err)
	}
	return c.JSON(http.StatusOK, runs)
}

func (s *Server) handleGetRun(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Detail: "run id must be an integer"})
	}

	run, err := s.service.Run(c.Request().Context(), id)
	if err != nil {
		return s.historyError(c, err)
	}
	return c.JSON(http.StatusOK, run)
}

func (s *Server) historyError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return c.JSON(http.StatusNotFound, errorBody{Detail: "Run not found"})
	case errors.Is(err, analysis.ErrHistoryDisabled):
		return c.JSON(http.StatusServiceUnavailable, errorBody{Detail: err.Error()})
	default:
		return c.JSON(http.StatusInternalServerError, errorBody{Detail: err.Error()})
	}
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":   "ok",
		"provider": s.opts.Provider,
		"model":    s.opts.Model,
	})
}

// Start serves until Shutdown is called. http.ErrServerClosed is not an error.
func (s *Server) Start(addr string) error {
	s.logger.Info("http server listening", slog.String("addr", addr))
	if err := s.Echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.Echo.Shutdown(ctx)
}
