// Package httpapi exposes the stored observation table through a
// read-only JSON API. It only ever consumes what the ingestion pipeline
// produced; nothing here mutates the table.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"ObservationScanner/internal/infrastructure/storage"
	"ObservationScanner/internal/ports"
)

const (
	defaultPageSize = 10
	maxTargetsPage  = 500
)

// Server wraps the echo instance and the read-side repository.
type Server struct {
	echo        *echo.Echo
	reader      ports.ObservationReader
	maxPageSize int
	logger      *slog.Logger
}

// NewServer wires routes onto a fresh echo instance.
func NewServer(reader ports.ObservationReader, maxPageSize int, logger *slog.Logger) *Server {
	if maxPageSize < 1 {
		maxPageSize = 100
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	s := &Server{echo: e, reader: reader, maxPageSize: maxPageSize, logger: logger}

	e.GET("/", s.handleRoot)
	e.GET("/health", s.handleHealth)
	e.GET("/observations", s.handleListObservations)
	e.GET("/observations/latest", s.handleLatest)
	e.GET("/observations/random", s.handleRandom)
	e.GET("/observations/:id", s.handleGet)
	e.GET("/instruments", s.handleInstruments)
	e.GET("/targets", s.handleTargets)
	e.GET("/stats", s.handleStats)

	return s
}

// Start blocks serving HTTP until Shutdown or a listener error.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Handler exposes the underlying handler for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) handleRoot(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"name":        "Observation Archive API",
		"version":     "1.0.0",
		"description": "Read-only API over ingested astronomical observations",
		"endpoints": map[string]string{
			"observations": "/observations",
			"latest":       "/observations/latest",
			"random":       "/observations/random",
			"instruments":  "/instruments",
			"targets":      "/targets",
			"stats":        "/stats",
		},
	})
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleListObservations(c echo.Context) error {
	filter, err := s.parseFilter(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	observations, total, err := s.reader.List(c.Request().Context(), filter)
	if err != nil {
		s.logError("list observations", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "query failed")
	}

	results := make([]map[string]any, 0, len(observations))
	for _, obs := range observations {
		results = append(results, observationJSON(obs))
	}

	return c.JSON(http.StatusOK, map[string]any{
		"total":   total,
		"skip":    filter.Skip,
		"limit":   filter.Limit,
		"results": results,
	})
}

func (s *Server) handleGet(c echo.Context) error {
	obs, err := s.reader.Get(c.Request().Context(), c.Param("id"))
	if errors.Is(err, storage.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "observation not found")
	}
	if err != nil {
		s.logError("get observation", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "query failed")
	}
	return c.JSON(http.StatusOK, observationJSON(obs))
}

func (s *Server) handleLatest(c echo.Context) error {
	limit := s.parsePageSize(c.QueryParam("limit"), defaultPageSize)

	observations, err := s.reader.Latest(c.Request().Context(), limit)
	if err != nil {
		s.logError("latest observations", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "query failed")
	}

	results := make([]map[string]any, 0, len(observations))
	for _, obs := range observations {
		results = append(results, observationJSON(obs))
	}
	return c.JSON(http.StatusOK, map[string]any{
		"total":   len(results),
		"results": results,
	})
}

func (s *Server) handleRandom(c echo.Context) error {
	obs, err := s.reader.Random(c.Request().Context())
	if errors.Is(err, storage.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "no observations stored")
	}
	if err != nil {
		s.logError("random observation", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "query failed")
	}
	return c.JSON(http.StatusOK, observationJSON(obs))
}

func (s *Server) handleInstruments(c echo.Context) error {
	instruments, err := s.reader.Instruments(c.Request().Context())
	if err != nil {
		s.logError("instruments", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "query failed")
	}
	return c.JSON(http.StatusOK, map[string]any{"instruments": instruments})
}

func (s *Server) handleTargets(c echo.Context) error {
	limit := s.parsePageSize(c.QueryParam("limit"), 100)
	if limit > maxTargetsPage {
		limit = maxTargetsPage
	}

	targets, err := s.reader.Targets(c.Request().Context(), limit)
	if err != nil {
		s.logError("targets", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "query failed")
	}
	return c.JSON(http.StatusOK, map[string]any{
		"total":   len(targets),
		"targets": targets,
	})
}

func (s *Server) handleStats(c echo.Context) error {
	stats, err := s.reader.Stats(c.Request().Context())
	if err != nil {
		s.logError("stats", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "query failed")
	}

	payload := map[string]any{
		"total_observations": stats.Total,
		"by_instrument":      stats.ByInstrument,
		"by_dataproduct":     stats.ByProductType,
	}
	if stats.EarliestObs != nil && stats.LatestObs != nil {
		payload["date_range"] = map[string]string{
			"earliest": stats.EarliestObs.Format(time.RFC3339),
			"latest":   stats.LatestObs.Format(time.RFC3339),
		}
	}
	return c.JSON(http.StatusOK, payload)
}

func (s *Server) parseFilter(c echo.Context) (ports.ObservationFilter, error) {
	filter := ports.ObservationFilter{
		Instrument:      c.QueryParam("instrument"),
		Target:          c.QueryParam("target"),
		FilterName:      c.QueryParam("filter"),
		ProposalID:      c.QueryParam("proposal"),
		DataproductType: c.QueryParam("type"),
		Search:          c.QueryParam("q"),
		Limit:           s.parsePageSize(c.QueryParam("limit"), defaultPageSize),
	}

	if v := c.QueryParam("skip"); v != "" {
		skip, err := strconv.Atoi(v)
		if err != nil || skip < 0 {
			return filter, errors.New("skip must be a non-negative integer")
		}
		filter.Skip = skip
	}

	for _, p := range []struct {
		name string
		into **time.Time
	}{
		{"date_from", &filter.DateFrom},
		{"date_to", &filter.DateTo},
	} {
		v := c.QueryParam(p.name)
		if v == "" {
			continue
		}
		t, err := parseDate(v)
		if err != nil {
			return filter, errors.New(p.name + " must be an RFC3339 timestamp or YYYY-MM-DD date")
		}
		*p.into = &t
	}

	ra, dec, radius := c.QueryParam("ra"), c.QueryParam("dec"), c.QueryParam("radius")
	if ra != "" || dec != "" || radius != "" {
		if ra == "" || dec == "" || radius == "" {
			return filter, errors.New("cone search requires ra, dec and radius together")
		}
		values := make([]float64, 3)
		for i, v := range []string{ra, dec, radius} {
			parsed, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return filter, errors.New("ra, dec and radius must be decimal degrees")
			}
			values[i] = parsed
		}
		if values[2] <= 0 || values[2] > 10 {
			return filter, errors.New("radius must be between 0 and 10 degrees")
		}
		filter.RA, filter.Dec, filter.Radius = &values[0], &values[1], &values[2]
	}

	return filter, nil
}

func (s *Server) parsePageSize(value string, fallback int) int {
	if value == "" {
		return fallback
	}
	limit, err := strconv.Atoi(value)
	if err != nil || limit < 1 {
		return fallback
	}
	if limit > s.maxPageSize {
		return s.maxPageSize
	}
	return limit
}

func parseDate(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func (s *Server) logError(msg string, err error) {
	if s.logger != nil {
		s.logger.Error(msg, "error", err)
	}
}
