package app

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"sports-arb-scanner/internal/instrumentation"
	"sports-arb-scanner/internal/scanner"
	"sports-arb-scanner/internal/scheduler"
)

// Run executes the long-running scan loop.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rt, err := a.openBackends(ctx, backendOptions{store: true, publish: true, metrics: a.Config.Metrics.Enabled})
	if err != nil {
		return err
	}
	defer rt.Close()

	scan, err := scanner.New(a.scannerOptions(rt), a.Logger)
	if err != nil {
		return err
	}

	if rt.metrics != nil {
		stop := a.serveMetrics(rt.metrics)
		defer stop()
	}

	sched := scheduler.New(scheduler.Options{
		Interval:       a.Config.Scheduler.Interval,
		AlignToStart:   a.Config.Scheduler.AlignToBucket,
		StartupDelay:   a.Config.Scheduler.StartupDelay,
		RunImmediately: true,
	}, a.Logger)

	a.Logger.Info().Strs("sports", a.Config.OddsAPI.Sports).Dur("interval", a.Config.Scheduler.Interval).Msg("starting scanner")
	err = sched.Run(ctx, scan.ProcessTick)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("scanner terminated with error")
		return err
	}

	a.Logger.Info().Msg("scanner stopped")
	return nil
}

func (a *App) serveMetrics(metrics *instrumentation.Metrics) func() {
	mux := http.NewServeMux()
	mux.Handle(a.Config.Metrics.Path, metrics.Handler())
	srv := &http.Server{
		Addr:              a.Config.Metrics.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		a.Logger.Info().Str("addr", srv.Addr).Str("path", a.Config.Metrics.Path).Msg("serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.Error().Err(err).Msg("metrics server failed")
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
