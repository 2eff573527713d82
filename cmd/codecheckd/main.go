// Command codecheckd serves the building-code compliance engine over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"codecheck/internal/config"
	"codecheck/internal/domain"
	"codecheck/internal/interfaces"
	"codecheck/pkg/engine"
)

func main() {
	cfgPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	log := newLogger(cfg.Logging)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng, err := engine.Open(ctx, cfg, log)
	if err != nil {
		log.Error("start engine", "error", err)
		os.Exit(1)
	}
	defer eng.Close()

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
	}))

	h := &handlers{svc: eng.Service, log: log}
	api := e.Group("/api/v1")
	api.POST("/validate", h.validate)
	api.GET("/jurisdictions/resolve", h.resolveJurisdictions)
	api.GET("/requirements/search", h.searchRequirements)
	api.GET("/requirements", h.requirement)
	api.GET("/crossrefs", h.crossReferences)
	api.GET("/standards/:standard/versions", h.versions)
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	go func() {
		log.Info("server listening", "addr", cfg.Server.Addr)
		if err := e.Start(cfg.Server.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", "error", err)
	}
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

type handlers struct {
	svc interfaces.ComplianceService
	log *slog.Logger
}

func (h *handlers) validate(c echo.Context) error {
	var model domain.BuildingModel
	if err := c.Bind(&model); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}

	report, err := h.svc.Validate(c.Request().Context(), &model)
	switch {
	case errors.Is(err, domain.ErrIncompleteEvaluation):
		// Partial results are still useful; the report says it is incomplete.
		return c.JSON(http.StatusOK, report)
	case errors.Is(err, domain.ErrMalformedModel):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case err != nil:
		h.log.Error("validation failed", "building_id", model.BuildingID, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "validation failed")
	}
	return c.JSON(http.StatusOK, report)
}

func (h *handlers) resolveJurisdictions(c echo.Context) error {
	loc := domain.Location{
		Country: c.QueryParam("country"),
		State:   c.QueryParam("state"),
		County:  c.QueryParam("county"),
		City:    c.QueryParam("city"),
	}
	return c.JSON(http.StatusOK, h.svc.ResolveJurisdictions(&loc))
}

func (h *handlers) searchRequirements(c echo.Context) error {
	query := c.QueryParam("q")
	if query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing query parameter q")
	}
	limit := 20
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = n
	}
	filter := engine.SearchFilter{
		Standard: domain.CodeStandard(c.QueryParam("standard")),
		Category: domain.Category(c.QueryParam("category")),
	}
	if raw := c.QueryParam("mandatory"); raw != "" {
		mandatory, err := strconv.ParseBool(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "mandatory must be a boolean")
		}
		filter.Mandatory = &mandatory
	}
	hits := h.svc.SearchRequirements(query, filter, limit)
	if hits == nil {
		hits = []engine.SearchHit{}
	}
	return c.JSON(http.StatusOK, hits)
}

func (h *handlers) requirement(c echo.Context) error {
	standard := c.QueryParam("standard")
	section := c.QueryParam("section")
	if standard == "" || section == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing standard or section parameter")
	}
	req, err := h.svc.Requirement(domain.CodeStandard(standard), section, c.QueryParam("version"))
	if errors.Is(err, domain.ErrMissingReferenceData) {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "requirement lookup failed")
	}
	return c.JSON(http.StatusOK, req)
}

func (h *handlers) crossReferences(c echo.Context) error {
	standard := c.QueryParam("standard")
	section := c.QueryParam("section")
	if standard == "" || section == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing standard or section parameter")
	}
	refs := h.svc.CrossReferences(domain.CodeStandard(standard), section)
	if refs == nil {
		refs = []domain.CrossReference{}
	}
	return c.JSON(http.StatusOK, refs)
}

func (h *handlers) versions(c echo.Context) error {
	standard := domain.CodeStandard(c.Param("standard"))
	versions, active, err := h.svc.Versions(standard)
	if errors.Is(err, domain.ErrMissingReferenceData) {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "version lookup failed")
	}
	return c.JSON(http.StatusOK, map[string]any{
		"standard": standard,
		"versions": versions,
		"active":   active,
	})
}
