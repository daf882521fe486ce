/*
 * MIT License
 *
 * Copyright (c) 2026 Nguyen Thanh Phuong
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 */

package commands

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/zhamm/gpustatd/internal/cache"
	"github.com/zhamm/gpustatd/internal/collector"
	"github.com/zhamm/gpustatd/internal/config"
	"github.com/zhamm/gpustatd/internal/server"
	"github.com/zhamm/gpustatd/pkg/version"
)

var (
	// Serve command specific flags
	serveHost string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gpustatd HTTP service",
	Long: `Start the HTTP service exposing system metrics and the web dashboard.

Endpoints:
  GET /             Web dashboard
  GET /api/system   Current system snapshot (JSON)
  GET /api/version  Build information

Examples:
  # Start on the default port 8088
  gpustatd serve

  # Start on localhost only
  gpustatd serve --host 127.0.0.1 --port 3000`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveHost, "host", "", "HTTP server listen address (overrides config)")
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "HTTP server port (overrides config)")
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveHost != "" {
		cfg.Host = serveHost
	}
	if servePort != 0 {
		cfg.Port = servePort
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
	}

	logger := InitLogger(cfg.LogLevel, cfg.LogFile)
	return serve(cfg, logger, nil)
}

// serve runs the HTTP service until a termination signal or until ready is
// closed by a service manager stop request (nil for foreground runs).
func serve(cfg *config.Config, logger *slog.Logger, stop <-chan struct{}) error {
	logger.Info("Starting gpustatd",
		"version", version.Version,
		"config", cfg.String(),
	)

	manager := collector.NewManager(cfg, logger)
	snapCache := cache.New(manager.Collect, cfg.CacheTTL, logger)
	srv := server.NewServer(snapCache, logger)

	httpServer := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      srv,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	errChan := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", cfg.Addr())
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
			return
		}
		errChan <- nil
	}()

	select {
	case sig := <-sigChan:
		logger.Info("Received signal, initiating shutdown", "signal", sig)
	case <-stopOrNever(stop):
		logger.Info("Stop requested, initiating shutdown")
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	if err := <-errChan; err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	logger.Info("Server stopped")
	return nil
}

// stopOrNever turns a nil stop channel into one that never fires so the
// select above stays valid for foreground runs.
func stopOrNever(stop <-chan struct{}) <-chan struct{} {
	if stop != nil {
		return stop
	}
	return make(chan struct{})
}
