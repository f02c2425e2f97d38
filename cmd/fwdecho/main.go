// Command fwdecho is an HTTP echo service that reports how a request was
// forwarded to it.
//
// GET / answers with the client, the accepted Forwarded chain and the
// Forwarded value a proxy at this hop would send upstream. POST /upload
// lists the parts of a multipart body. Prometheus metrics are served on
// /metrics.
//
// Settings come from a .env file, FWDECHO_* environment variables and
// flags, in increasing priority.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"braces.dev/errtrace"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/phax/ph-web-sub004/internal/log"
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "fwdecho: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return errtrace.Wrap(err)
	}
	logger, err := log.New(cfg.LogFormat, os.Stdout, cfg.level)
	if err != nil {
		return errtrace.Wrap(err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newHandler(cfg, logger, reg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("fwdecho listening",
			slog.String("addr", cfg.Addr),
			slog.Int("trusted_proxies", len(cfg.trusted)),
		)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return errtrace.Wrap(err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		sctx, scancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer scancel()
		return errtrace.Wrap(srv.Shutdown(sctx))
	})
	g.Go(func() error {
		return errtrace.Wrap(stopSignalHandler(ctx, cancel, logger))
	})

	if err := g.Wait(); err != nil {
		logger.Error("fwdecho terminated", slog.Any("error", err))
		return errtrace.Wrap(err)
	}
	logger.Info("fwdecho stopped")
	return nil
}

func stopSignalHandler(ctx context.Context, cancel context.CancelFunc, logger *slog.Logger) error {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(c)

	select {
	case sig := <-c:
		logger.Info("fwdecho shutting down", slog.String("signal", sig.String()))
		cancel()
		return nil
	case <-ctx.Done():
		return nil
	}
}
