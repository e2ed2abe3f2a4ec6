// Package httpapi exposes the pipeline over a small HTTP API.
package httpapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/answerd/internal/config"
	"github.com/fyrsmithlabs/answerd/internal/pipeline"
)

// Server provides the HTTP endpoints for answerd.
type Server struct {
	echo    *echo.Echo
	service *pipeline.Service
	config  config.ServerConfig
	logger  *zap.Logger
}

// NewServer creates an HTTP server in front of the pipeline service.
func NewServer(service *pipeline.Service, cfg config.ServerConfig, logger *zap.Logger) (*Server, error) {
	if service == nil {
		return nil, fmt.Errorf("pipeline service is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.ApplyDefaults()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.BodyLimit(fmt.Sprintf("%dM", cfg.MaxUploadMB)))
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return err
		}
	})

	s := &Server{
		echo:    e,
		service: service,
		config:  cfg,
		logger:  logger.Named("httpapi"),
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/healthz", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/v1")
	v1.POST("/documents", s.handleIndex)
	v1.GET("/documents", s.handleList)
	v1.DELETE("/documents/:name", s.handleDelete)
	v1.POST("/answers", s.handleAnswer)
}

// HealthResponse is the response body for GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// handleIndex ingests one PDF from a multipart "file" field.
func (s *Server) handleIndex(c echo.Context) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "multipart field 'file' is required")
	}

	f, err := fileHeader.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "cannot open uploaded file")
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "cannot read uploaded file")
	}

	result, err := s.service.Index(c.Request().Context(), data, fileHeader.Filename)
	if err != nil {
		s.logger.Error("indexing failed",
			zap.String("filename", fileHeader.Filename),
			zap.Error(err),
		)
		return echo.NewHTTPError(http.StatusInternalServerError, "indexing failed")
	}
	return c.JSON(http.StatusCreated, result)
}

// AnswerRequest is the request body for POST /v1/answers.
type AnswerRequest struct {
	Query   string              `json:"query"`
	History []pipeline.ChatTurn `json:"history,omitempty"`
	TopK    int                 `json:"top_k,omitempty"`
}

// handleAnswer answers a question over all indexed documents.
func (s *Server) handleAnswer(c echo.Context) error {
	var req AnswerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query field is required")
	}

	result, err := s.service.AnswerDetailed(c.Request().Context(), req.Query, req.History, req.TopK)
	if err != nil {
		s.logger.Error("answering failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "answering failed")
	}
	return c.JSON(http.StatusOK, result)
}

// ListResponse is the response body for GET /v1/documents.
type ListResponse struct {
	Documents []pipeline.DocumentInfo `json:"documents"`
}

func (s *Server) handleList(c echo.Context) error {
	docs, err := s.service.ListDocuments(c.Request().Context())
	if err != nil {
		s.logger.Error("listing documents failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "listing documents failed")
	}
	return c.JSON(http.StatusOK, ListResponse{Documents: docs})
}

// DeleteResponse is the response body for DELETE /v1/documents/:name.
type DeleteResponse struct {
	Deleted bool `json:"deleted"`
}

func (s *Server) handleDelete(c echo.Context) error {
	name := c.Param("name")
	deleted, err := s.service.Delete(c.Request().Context(), name)
	if err != nil {
		s.logger.Error("deleting document failed",
			zap.String("name", name),
			zap.Error(err),
		)
		return echo.NewHTTPError(http.StatusInternalServerError, "deleting document failed")
	}
	if !deleted {
		return c.JSON(http.StatusNotFound, DeleteResponse{Deleted: false})
	}
	return c.JSON(http.StatusOK, DeleteResponse{Deleted: true})
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
