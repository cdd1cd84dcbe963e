// Package server exposes a sealed grouping index over a read-only HTTP API.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/mrsinham/dicomgroup/internal/report"
	"github.com/rs/zerolog"
)

// PatientSummary is one entry of GET /patients.
type PatientSummary struct {
	Index     int    `json:"index"`
	Name      string `json:"name"`
	ID        string `json:"id"`
	NumSlices int    `json:"num_slices"`
	NumFiles  int    `json:"num_files"`
	NumGroups int    `json:"num_groups"`
}

// GroupFiles is the response of GET /groups/:patient/:group/files.
type GroupFiles struct {
	Key   string   `json:"key"`
	Title string   `json:"title"`
	Files []string `json:"files"`
}

// Server serves one report snapshot. The snapshot never changes, so
// handlers need no locking.
type Server struct {
	echo   *echo.Echo
	report *report.Report
	logger zerolog.Logger
}

// New builds the server and registers its routes.
func New(r *report.Report, logger zerolog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(Recovery(logger))
	e.Use(RequestID())
	e.Use(Logger(logger))

	s := &Server{echo: e, report: r, logger: logger}
	s.RegisterRoutes(e)
	return s
}

// RegisterRoutes adds the API routes to e.
func (s *Server) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", s.Health)
	e.GET("/stats", s.Stats)
	e.GET("/patients", s.ListPatients)
	e.GET("/patients/:index/groups", s.ListGroups)
	e.GET("/groups/:patient/:group/files", s.GroupFiles)
}

// Handler returns the HTTP handler, mostly for tests.
func (s *Server) Handler() http.Handler { return s.echo }

// Start serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("starting server")
		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.logger.Info().Msg("server stopped")
	return nil
}

func (s *Server) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) Stats(c echo.Context) error {
	return c.JSON(http.StatusOK, s.report.Stats)
}

func (s *Server) ListPatients(c echo.Context) error {
	out := make([]PatientSummary, len(s.report.Patients))
	for i, p := range s.report.Patients {
		out[i] = PatientSummary{
			Index:     p.Index,
			Name:      p.Name,
			ID:        p.ID,
			NumSlices: p.NumSlices,
			NumFiles:  p.NumFiles,
			NumGroups: len(p.Groups),
		}
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) ListGroups(c echo.Context) error {
	p, err := s.patient(c.Param("index"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p.Groups)
}

func (s *Server) GroupFiles(c echo.Context) error {
	p, err := s.patient(c.Param("patient"))
	if err != nil {
		return err
	}
	gi, err := strconv.Atoi(c.Param("group"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "group index must be an integer")
	}
	if gi < 0 || gi >= len(p.Groups) {
		return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("group %d not found", gi))
	}
	g := p.Groups[gi]
	return c.JSON(http.StatusOK, GroupFiles{Key: g.Key, Title: g.Title, Files: g.Files})
}

func (s *Server) patient(param string) (*report.Patient, error) {
	pi, err := strconv.Atoi(param)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "patient index must be an integer")
	}
	if pi < 0 || pi >= len(s.report.Patients) {
		return nil, echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("patient %d not found", pi))
	}
	return &s.report.Patients[pi], nil
}
