// Command iocdemo wires a small application through the container, resolves
// it from request scopes and prints the resulting binding table.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/pflag"

	"github.com/enorith/container/v2"
	"github.com/enorith/container/v2/diagnostics"
)

type config struct {
	logLevel  string
	requests  int
	metrics   bool
	listen    string
	callSites bool
}

func main() {
	var cfg config
	fs := pflag.NewFlagSet("iocdemo", pflag.ExitOnError)
	fs.StringVar(&cfg.logLevel, "log-level", "info", "log level: debug, info, warn or error")
	fs.IntVarP(&cfg.requests, "requests", "n", 2, "number of request scopes to create")
	fs.BoolVar(&cfg.metrics, "metrics", false, "print container metrics in Prometheus text format")
	fs.StringVar(&cfg.listen, "listen", "", "serve /metrics on this address until interrupted")
	fs.BoolVar(&cfg.callSites, "call-sites", true, "record binding call sites")
	_ = fs.Parse(os.Args[1:])

	if e := run(cfg, os.Stdout); e != nil {
		fmt.Fprintln(os.Stderr, e)
		os.Exit(1)
	}
}

func run(cfg config, out io.Writer) error {
	var level slog.Level
	if e := level.UnmarshalText([]byte(cfg.logLevel)); e != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.logLevel, e)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	reg := prometheus.NewRegistry()
	metrics, e := diagnostics.NewMetrics(reg)
	if e != nil {
		return e
	}

	opts := []container.Option{
		container.WithLogger(logger),
		container.WithObserver(diagnostics.Fanout(diagnostics.Logger(logger), metrics)),
	}
	if cfg.callSites {
		opts = append(opts, container.WithCallSites())
	}

	root, e := newApp(logger, opts...)
	if e != nil {
		return e
	}
	defer func() {
		if e := root.DisposeTree(); e != nil {
			logger.Error("dispose failed", "error", e)
		}
	}()

	var last *container.Container
	for i := 1; i <= cfg.requests; i++ {
		scope, e := root.Child().SetName(fmt.Sprintf("request-%d", i)).Build()
		if e != nil {
			return e
		}
		if e := handle(scope, out); e != nil {
			return e
		}
		if last != nil {
			if e := last.Dispose(); e != nil {
				return e
			}
		}
		last = scope
	}

	if last == nil {
		last = root
	}
	fmt.Fprintln(out)
	if e := diagnostics.Dump(out, last); e != nil {
		return e
	}

	if cfg.metrics {
		fmt.Fprintln(out)
		mfs, e := reg.Gather()
		if e != nil {
			return e
		}
		if e := writeMetrics(out, mfs); e != nil {
			return e
		}
	}

	if cfg.listen != "" {
		return serve(cfg.listen, reg, logger)
	}

	return nil
}

func handle(scope *container.Container, out io.Writer) error {
	svc, e := container.Resolve[Service](scope)
	if e != nil {
		return e
	}
	fmt.Fprintln(out, svc.Greet(scope.Name()))
	return nil
}

func writeMetrics(w io.Writer, mfs []*dto.MetricFamily) error {
	for _, mf := range mfs {
		if !strings.HasPrefix(mf.GetName(), "ioc_") {
			continue
		}
		if _, e := expfmt.MetricFamilyToText(w, mf); e != nil {
			return e
		}
	}
	return nil
}

func serve(addr string, reg *prometheus.Registry, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdown)
	}()

	logger.Info("serving metrics", "addr", addr)
	if e := srv.ListenAndServe(); e != nil && !errors.Is(e, http.ErrServerClosed) {
		return e
	}
	return nil
}
