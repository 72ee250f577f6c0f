package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/micro-nova/slidered/internal/api"
	"github.com/micro-nova/slidered/internal/auth"
	"github.com/micro-nova/slidered/internal/config"
	"github.com/micro-nova/slidered/internal/events"
	"github.com/micro-nova/slidered/internal/identity"
	"github.com/micro-nova/slidered/internal/maintenance"
	"github.com/micro-nova/slidered/internal/storage"
	"github.com/micro-nova/slidered/internal/watch"
	"github.com/micro-nova/slidered/internal/workspace"
	"github.com/micro-nova/slidered/internal/zeroconf"
)

func newServeCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the editor daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := o.loadConfig(cmd)
			if err != nil {
				return err
			}
			closer := setupLogging(cfg, o.errOut)
			defer closer.Close()

			// Graceful shutdown context
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return serve(ctx, cfg)
		},
	}
	cmd.Flags().StringVar(&o.addr, "addr", config.DefaultAddr, "HTTP listen address")
	return cmd
}

// serve runs the daemon until ctx is cancelled.
func serve(ctx context.Context, cfg config.Config) error {
	if cfg.BackupDir != "" {
		if err := os.MkdirAll(cfg.BackupDir, 0755); err != nil {
			return err
		}
	}

	fs := storage.NewOSFS(cfg.Root)
	bus := events.NewBus()

	// The watcher callback needs the registry and the registry needs the
	// watcher; reg is set before any file is watched.
	var reg *workspace.Registry
	opts := workspace.Options{
		Root:      cfg.Root,
		Pattern:   cfg.Pattern,
		BackupDir: cfg.BackupDir,
	}
	if cfg.Watch {
		w, err := watch.New(func(path string) {
			c, ok := reg.ByPath(path)
			if !ok {
				return
			}
			if err := c.ExternalChange(ctx); err != nil {
				slog.Warn("external change not applied", "uri", path, "err", err)
			}
		})
		if err != nil {
			slog.Warn("file watching unavailable", "err", err)
		} else {
			defer w.Close()
			opts.Watcher = w
		}
	}
	reg = workspace.New(fs, bus, opts)
	defer reg.CloseAll()

	// Periodic backups of unsaved edits
	maint := maintenance.New(reg, cfg.BackupDir, cfg.BackupInterval, cfg.BackupMaxAge)
	go maint.Start(ctx)

	// Zeroconf mDNS registration
	if cfg.Advertise {
		port := 80
		if _, p, err := net.SplitHostPort(cfg.Addr); err == nil {
			if n, err := strconv.Atoi(p); err == nil {
				port = n
			}
		}
		zc := zeroconf.New(identity.GetHostname(), port, zeroconf.TXT(identity.GetVersion(), cfg.Pattern))
		go func() {
			if err := zc.Start(ctx); err != nil {
				slog.Warn("zeroconf failed", "err", err)
			}
		}()
	}

	authSvc := auth.NewService(cfg.APIKey)
	router := api.NewRouter(reg, authSvc, bus, float64(cfg.MaxMessagesPerSec))

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // 0 = no timeout (needed for SSE and websockets)
		IdleTimeout:  120 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		slog.Info("slidered listening",
			"addr", cfg.Addr,
			"root", cfg.Root,
			"pattern", cfg.Pattern,
			"open_mode", authSvc.IsOpenMode(),
			"version", identity.GetVersion(),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	// Wait for shutdown signal
	select {
	case <-ctx.Done():
	case err := <-errc:
		if err != nil {
			return err
		}
	}
	slog.Info("shutting down...")

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutCancel()

	// Graceful HTTP shutdown
	if err := srv.Shutdown(shutCtx); err != nil {
		slog.Warn("server shutdown error", "err", err)
	}

	slog.Info("shutdown complete")
	return nil
}
