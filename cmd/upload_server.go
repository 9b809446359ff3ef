// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Thermoquad/emitor/internal/upload"
)

var (
	uploadBind      string
	uploadDirectory string
)

var uploadServerCmd = &cobra.Command{
	Use:   "upload_server [port]",
	Short: "Run an HTTP receiver for extracted log files",
	Long: `Accept multipart uploads (form field "file") on / and /upload and save them
into a directory. Intended as a local target for "emitor extract --upload-url".

The port defaults to 8000.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runUploadServer,
}

func init() {
	rootCmd.AddCommand(uploadServerCmd)
	uploadServerCmd.Flags().StringVar(&uploadBind, "bind", "", "Address to bind (default all interfaces)")
	uploadServerCmd.Flags().StringVar(&uploadDirectory, "directory", ".", "Directory to save uploads into")
}

func runUploadServer(cmd *cobra.Command, args []string) error {
	port := 8000
	if len(args) == 1 {
		p, err := strconv.Atoi(args[0])
		if err != nil || p <= 0 || p > 65535 {
			return fmt.Errorf("invalid port %q", args[0])
		}
		port = p
	}

	info, err := os.Stat(uploadDirectory)
	if err != nil {
		return fmt.Errorf("upload directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("upload directory: %s is not a directory", uploadDirectory)
	}

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	addr := net.JoinHostPort(uploadBind, strconv.Itoa(port))
	srv := upload.NewServer(addr, uploadDirectory, logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down upload receiver", zap.String("addr", addr))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
