package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/comigor/thelp-go/internal/llm"
	"github.com/comigor/thelp-go/internal/logger"
	"github.com/comigor/thelp-go/internal/mcpserver"
	"github.com/comigor/thelp-go/internal/server"
	"github.com/comigor/thelp-go/internal/uploads"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the chat API over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger.SetFormat(cfg.Log.Format)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newAgent(ctx, cfg)
			if err != nil {
				return err
			}
			store, err := uploads.Open(cfg.Uploads.Dir, cfg.Uploads.DBPath)
			if err != nil {
				return err
			}
			defer store.Close()

			srv := &http.Server{
				Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
				Handler:           server.New(a, store, server.Options{MaxUploadBytes: cfg.Server.MaxUploadBytes}),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.L.Info("starting server", "address", srv.Addr)
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("server: %w", err)
				}
				return nil
			case <-ctx.Done():
			}

			logger.L.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
}

func newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the chat tools over MCP stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger.SetOutput(os.Stderr, cfg.Log.Format)

			a, err := newAgent(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			return mcpserver.New(a).ServeStdio()
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the provider and model availability as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger.SetOutput(os.Stderr, cfg.Log.Format)
			cfg.LLM.ProbeOnStart = false

			provider, err := newProvider(cmd.Context(), cfg.LLM)
			if err != nil {
				return err
			}

			out := map[string]any{"success": true, "provider": provider.Name(), "status": "Connected"}
			if reporter, ok := provider.(llm.StatusReporter); ok {
				st, err := reporter.Status(cmd.Context())
				if err != nil {
					return fmt.Errorf("checking provider status: %w", err)
				}
				out = map[string]any{"success": true, "status": st}
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
}
