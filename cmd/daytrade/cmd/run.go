package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rustyeddy/daytrader/config"
	"github.com/rustyeddy/daytrader/hub"
	"github.com/rustyeddy/daytrader/internal/logger"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a trading session from a config file",
	Long: `Run an intraday session using settings from a configuration file.

The session reads snapshots from the configured feed, routes orders to the
paper venue and journals every fill. It stops when the feed ends, after
--max-ticks ticks, or on SIGINT/SIGTERM after the tick in progress.

Example:
  daytrade run -f session.yaml --max-ticks 500 --metrics-addr :9090`,
	RunE: runRun,
}

var (
	runConfigPath  string
	runMaxTicks    int64
	runMetricsAddr string
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runConfigPath, "file", "f", "", "path to config file (YAML or JSON) (required)")
	runCmd.Flags().Int64Var(&runMaxTicks, "max-ticks", 0, "stop after this many ticks (overrides session.max_ticks)")
	runCmd.Flags().StringVar(&runMetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	runCmd.MarkFlagRequired("file")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(runConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cmd.Flags().Changed("max-ticks") {
		cfg.Session.MaxTicks = runMaxTicks
	}
	if runMetricsAddr != "" {
		cfg.Metrics.Addr = runMetricsAddr
	}

	log, closer, err := logger.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sum, err := runSession(ctx, cfg, log)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, sum.String())
	fmt.Fprintf(out, "  win rate: %.1f%%\n", sum.WinRate()*100)
	for reason, n := range sum.ExitReasons {
		fmt.Fprintf(out, "  %-14s %d\n", reason, n)
	}
	return nil
}

// runSession runs one session alongside the optional metrics endpoint. The
// endpoint is shut down once the session returns.
func runSession(ctx context.Context, cfg *config.Config, log zerolog.Logger) (hub.Summary, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	s, err := buildSession(cfg, log, reg)
	if err != nil {
		return hub.Summary{}, err
	}
	defer func() {
		if err := s.Close(); err != nil {
			log.Warn().Err(err).Msg("close session")
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	done := make(chan struct{})

	var sum hub.Summary
	g.Go(func() error {
		defer close(done)
		var err error
		sum, err = s.hub.RunSession(gctx, s.feed, cfg.Session.MaxTicks)
		return err
	})

	if cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
		srv := &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		g.Go(func() error {
			log.Info().Str("addr", cfg.Metrics.Addr).Msg("metrics listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			select {
			case <-done:
			case <-gctx.Done():
			}
			shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutCtx)
		})
	}

	if err := g.Wait(); err != nil {
		return sum, err
	}
	return sum, nil
}
