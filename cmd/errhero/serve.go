package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/strongdm/errhero/pkg/errhero"
	"github.com/strongdm/errhero/pkg/errhero/bootstrap"
	"github.com/strongdm/errhero/pkg/errhero/config"
	"github.com/strongdm/errhero/pkg/errhero/render"
	"github.com/strongdm/errhero/pkg/errhero/sinks/zaplog"
)

func (c *cli) serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the demo application behind the middleware",
		Long: `Serves demo routes that raise every kind of condition:

  /          plain response
  /warning   promoted warning
  /excluded  excluded condition, request continues
  /panic     panic
  /fatal     fatal condition
  /error     returned error
  /metrics   Prometheus counters`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return c.serve(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	return cmd
}

func (c *cli) serve(ctx context.Context, addr string) error {
	f, err := config.Load(c.configPath)
	if err != nil {
		return err
	}

	renderer, err := render.New()
	if err != nil {
		return err
	}
	reg := prometheus.NewRegistry()
	metrics, err := errhero.NewMetrics(reg)
	if err != nil {
		return err
	}

	container := bootstrap.NewMapContainer()
	defer func() {
		if err := container.Close(); err != nil {
			c.logger.Warn("failed to close services", zap.Error(err))
		}
	}()
	container.Set(bootstrap.ServiceConfig, f)
	container.Set(bootstrap.ServiceRenderer, renderer)

	mw, err := bootstrap.NewMiddleware(ctx, container,
		bootstrap.WithLogger(c.logger),
		bootstrap.WithMetrics(metrics),
		bootstrap.WithSinks(zaplog.NewZapSink(c.logger)),
	)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/", mw.Handler(demoRoutes()))
	mux.Handle("/error", errorAdapter(mw.Wrap(failing)))
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		c.logger.Info("listening", zap.String("addr", addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	c.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func demoRoutes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		io.WriteString(w, "errhero demo: try /warning /excluded /panic /fatal /error\n")
	})
	mux.HandleFunc("/warning", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "this output is replaced\n")
		errhero.Report(r.Context(), errhero.TypeWarning, "division by zero")
		io.WriteString(w, "not reached\n")
	})
	mux.HandleFunc("/excluded", func(w http.ResponseWriter, r *http.Request) {
		errhero.Report(r.Context(), errhero.TypeUserDeprecated, "legacy endpoint")
		io.WriteString(w, "excluded conditions do not interrupt the request\n")
	})
	mux.HandleFunc("/panic", func(w http.ResponseWriter, r *http.Request) {
		var m map[string]int
		m["boom"]++
	})
	mux.HandleFunc("/fatal", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "partial output\n")
		errhero.Fatal(r.Context(), "allowed memory size exhausted")
	})
	return mux
}

func failing(w http.ResponseWriter, r *http.Request) error {
	return fmt.Errorf("load order %s: %w", r.URL.Query().Get("id"), errors.New("record not found"))
}

// errorAdapter answers errors that the middleware re-raises in display mode.
func errorAdapter(h errhero.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := h(w, r); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
}
