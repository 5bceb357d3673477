// Package httpapi serves the read-only registry API plus a small
// basic-auth-protected admin surface for maintenance operations.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"horse.fit/movements/internal/auth"
	"horse.fit/movements/internal/contentdedup"
	"horse.fit/movements/internal/db"
	"horse.fit/movements/internal/globaltime"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// Catalog is the read surface the API serves from.
type Catalog interface {
	ListMovementSummaries(ctx context.Context, query string, limit, offset int) ([]db.MovementSummary, error)
	GetMovementDetail(ctx context.Context, slug string) (db.MovementDetail, bool, error)
	ListSourcesByMovement(ctx context.Context, movementID int64, limit, offset int) ([]db.SourceSummary, error)
	GetRegistryStats(ctx context.Context) (db.RegistryStats, error)
}

// Backfiller runs the content-hash backfill behind the admin endpoint.
type Backfiller interface {
	UpdateContentHashes(ctx context.Context, batchSize int) (contentdedup.BackfillStats, error)
}

type Options struct {
	Addr              string
	AdminUser         string
	AdminPasswordHash string
	AllowedOrigins    []string
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	ShutdownTimeout   time.Duration
}

type Server struct {
	catalog    Catalog
	backfiller Backfiller
	logger     zerolog.Logger
	opts       Options
}

func NewServer(catalog Catalog, backfiller Backfiller, logger zerolog.Logger, opts Options) *Server {
	if strings.TrimSpace(opts.Addr) == "" {
		opts.Addr = ":8080"
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 10 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 30 * time.Second
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}

	return &Server{
		catalog:    catalog,
		backfiller: backfiller,
		logger:     logger,
		opts:       opts,
	}
}

// Handler builds the routed echo instance. Split from Start so tests can
// drive it with httptest.
func (s *Server) Handler() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.httpErrorHandler

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: s.opts.AllowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		MaxAge:       3600,
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			event := s.logger.Info()
			if v.Error != nil {
				event = s.logger.Error().Err(v.Error)
			}
			event.
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("remote_ip", v.RemoteIP).
				Str("request_id", v.RequestID).
				Msg("http request")
			return nil
		},
	}))

	e.GET("/healthz", s.handleHealth)

	api := e.Group("/api/v1")
	api.GET("/movements", s.handleMovements)
	api.GET("/movements/:slug", s.handleMovementDetail)
	api.GET("/movements/:slug/sources", s.handleMovementSources)
	api.GET("/stats", s.handleStats)

	admin := api.Group("/admin")
	admin.Use(middleware.BasicAuth(func(user, password string, c echo.Context) (bool, error) {
		return auth.CheckAdmin(user, password, s.opts.AdminUser, s.opts.AdminPasswordHash), nil
	}))
	admin.POST("/hashes/backfill", s.handleHashBackfill)

	return e
}

func (s *Server) Start(ctx context.Context) error {
	if s == nil || s.catalog == nil {
		return fmt.Errorf("server is not initialized")
	}

	e := s.Handler()

	httpServer := &http.Server{
		Addr:         s.opts.Addr,
		Handler:      e,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		if shutdownErr := e.Shutdown(shutdownCtx); shutdownErr != nil {
			s.logger.Error().Err(shutdownErr).Msg("server shutdown failed")
		}
	}()

	s.logger.Info().Str("addr", s.opts.Addr).Msg("registry api started")

	if err := e.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("start server: %w", err)
	}
	s.logger.Info().Msg("registry api stopped")
	return nil
}

func (s *Server) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	message := "Internal server error"
	if he, ok := err.(*echo.HTTPError); ok {
		status = he.Code
		switch v := he.Message.(type) {
		case string:
			if strings.TrimSpace(v) != "" {
				message = v
			}
		default:
			if text := strings.TrimSpace(http.StatusText(status)); text != "" {
				message = text
			}
		}
	} else if err != nil {
		message = err.Error()
	}

	if status >= 500 {
		_ = internalError(c, "Internal server error")
		return
	}
	_ = fail(c, status, message, nil)
}

func (s *Server) handleHealth(c echo.Context) error {
	return success(c, map[string]any{
		"service": "movements",
		"time":    globaltime.UTC(),
	})
}

func (s *Server) handleMovements(c echo.Context) error {
	limit, offset, err := parsePaging(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	query := strings.TrimSpace(c.QueryParam("q"))
	items, err := s.catalog.ListMovementSummaries(c.Request().Context(), query, limit, offset)
	if err != nil {
		s.logger.Error().Err(err).Msg("list movements failed")
		return internalError(c, "Failed to list movements")
	}

	return success(c, map[string]any{
		"movements": items,
		"limit":     limit,
		"offset":    offset,
	})
}

func (s *Server) handleMovementDetail(c echo.Context) error {
	slug := strings.TrimSpace(c.Param("slug"))
	if slug == "" {
		return badRequest(c, "slug is required")
	}

	detail, found, err := s.catalog.GetMovementDetail(c.Request().Context(), slug)
	if err != nil {
		s.logger.Error().Err(err).Str("slug", slug).Msg("load movement failed")
		return internalError(c, "Failed to load movement")
	}
	if !found {
		return notFound(c, "Movement not found")
	}

	return success(c, detail)
}

func (s *Server) handleMovementSources(c echo.Context) error {
	slug := strings.TrimSpace(c.Param("slug"))
	if slug == "" {
		return badRequest(c, "slug is required")
	}
	limit, offset, err := parsePaging(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	detail, found, err := s.catalog.GetMovementDetail(c.Request().Context(), slug)
	if err != nil {
		s.logger.Error().Err(err).Str("slug", slug).Msg("load movement failed")
		return internalError(c, "Failed to load movement")
	}
	if !found {
		return notFound(c, "Movement not found")
	}

	sources, err := s.catalog.ListSourcesByMovement(c.Request().Context(), detail.MovementID, limit, offset)
	if err != nil {
		s.logger.Error().Err(err).Str("slug", slug).Msg("list sources failed")
		return internalError(c, "Failed to list sources")
	}

	return success(c, map[string]any{
		"movement_id": detail.MovementID,
		"slug":        detail.CanonicalSlug,
		"sources":     sources,
		"limit":       limit,
		"offset":      offset,
	})
}

func (s *Server) handleStats(c echo.Context) error {
	stats, err := s.catalog.GetRegistryStats(c.Request().Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("load stats failed")
		return internalError(c, "Failed to load stats")
	}
	return success(c, stats)
}

func (s *Server) handleHashBackfill(c echo.Context) error {
	if s.backfiller == nil {
		return fail(c, http.StatusServiceUnavailable, "Backfill is not available", nil)
	}

	batchSize := 200
	if raw := strings.TrimSpace(c.QueryParam("batch_size")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return badRequest(c, "batch_size must be a positive integer")
		}
		batchSize = parsed
	}

	stats, err := s.backfiller.UpdateContentHashes(c.Request().Context(), batchSize)
	if err != nil {
		s.logger.Error().Err(err).Msg("hash backfill failed")
		return internalError(c, "Hash backfill failed")
	}
	return success(c, stats)
}

func parsePaging(c echo.Context) (limit, offset int, err error) {
	limit = defaultPageSize
	if raw := strings.TrimSpace(c.QueryParam("limit")); raw != "" {
		parsed, convErr := strconv.Atoi(raw)
		if convErr != nil || parsed < 1 {
			return 0, 0, fmt.Errorf("limit must be a positive integer")
		}
		if parsed > maxPageSize {
			parsed = maxPageSize
		}
		limit = parsed
	}
	if raw := strings.TrimSpace(c.QueryParam("offset")); raw != "" {
		parsed, convErr := strconv.Atoi(raw)
		if convErr != nil || parsed < 0 {
			return 0, 0, fmt.Errorf("offset must be a non-negative integer")
		}
		offset = parsed
	}
	return limit, offset, nil
}
