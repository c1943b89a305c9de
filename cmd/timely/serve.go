package main

import (
	"context"
	"errors"
	stdlog "log"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	appLog "timely/internal/log"
	"timely/internal/web"
)

var listenAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the background calendar refresh",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "HTTP listen address (overrides config)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if listenAddr != "" {
		cfg.Listen = listenAddr
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	refresh := func() {
		rctx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()
		if err := a.provider.Refresh(rctx); err != nil {
			appLog.Error("scheduled calendar refresh failed", err)
		}
	}

	cl := cronLogger{}
	sched := cron.New(
		cron.WithLocation(cfg.Location()),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	if _, err := sched.AddFunc(cfg.RefreshCron, refresh); err != nil {
		return err
	}
	sched.Start()
	defer func() {
		<-sched.Stop().Done()
	}()
	go refresh()

	if id, err := a.store.LastActivity(ctx); err != nil {
		appLog.Error("failed to read last activity", err)
	} else if id != "" {
		if _, err := a.planner.SelectActivity(ctx, id); err != nil {
			appLog.Warn("last activity not restored", "id", id, "err", err.Error())
		}
	}

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           web.NewServer(web.Deps{Config: cfg, Planner: a.planner, Calendar: a.provider, Local: a.local, Store: a.store, Metrics: a.metrics}).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          stdlog.New(appLog.Logger(), "", 0),
		// Streaming handlers end with the process context.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+cfg.Listen, "refresh", cfg.RefreshCron)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	appLog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.Error("HTTP shutdown failed", err)
	}
	appLog.Info("timely exiting")
	return nil
}

// cronLogger routes scheduler logs into the application logger. The
// scheduler's per-tick chatter goes to debug.
type cronLogger struct{}

func (cronLogger) Info(msg string, kv ...any) {
	appLog.Debug("cron: "+msg, kv...)
}

func (cronLogger) Error(err error, msg string, kv ...any) {
	appLog.Error("cron: "+msg, err, kv...)
}
