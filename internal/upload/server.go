// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package upload

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Server receives multipart uploads and stores them in a directory. It stands in
// for the real destination during development.
type Server struct {
	srv    *http.Server
	logger *zap.Logger
}

// NewRouter returns the receiver routes: POST / and POST /upload store the
// "file" field under dir by its base name, GET /healthz answers ok.
func NewRouter(dir string, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	receive := func(c *gin.Context) {
		file, err := c.FormFile(FormField)
		if err != nil {
			logger.Warn("upload without file field", zap.String("client", c.ClientIP()), zap.Error(err))
			c.String(http.StatusBadRequest, "missing %q form field", FormField)
			return
		}

		name := filepath.Base(file.Filename)
		if name == "." || name == string(filepath.Separator) {
			c.String(http.StatusBadRequest, "invalid file name")
			return
		}

		dest := filepath.Join(dir, name)
		if err := c.SaveUploadedFile(file, dest); err != nil {
			logger.Error("store upload failed", zap.String("file", dest), zap.Error(err))
			c.String(http.StatusInternalServerError, "store failed")
			return
		}

		logger.Info("file upload success",
			zap.String("file", dest),
			zap.Int64("bytes", file.Size),
			zap.String("client", c.ClientIP()))
		c.Status(http.StatusOK)
	}
	r.POST("/", receive)
	r.POST("/upload", receive)

	return r
}

// NewServer creates a receiver listening on addr.
func NewServer(addr, dir string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(dir, logger),
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Start serves until Shutdown is called. It returns nil after a clean shutdown.
func (s *Server) Start() error {
	s.logger.Info("upload receiver listening", zap.String("addr", s.srv.Addr))
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
