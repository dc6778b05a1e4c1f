// Package metrics exposes Prometheus instrumentation for the gift watcher.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Poll cycle results.
const (
	PollOK    = "ok"
	PollEmpty = "empty"
	PollError = "error"
)

// Purchase attempt results.
const (
	PurchaseOK     = "ok"
	PurchaseFailed = "failed"
)

var (
	// PollCycles counts feed poll cycles by outcome.
	PollCycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "giftwatch",
		Name:      "poll_cycles_total",
		Help:      "Feed poll cycles by result.",
	}, []string{"result"})

	// PurchaseAttempts counts gift purchase attempts by outcome.
	PurchaseAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "giftwatch",
		Name:      "purchase_attempts_total",
		Help:      "Gift purchase attempts by result.",
	}, []string{"result"})

	// PromotionsCompleted counts finished channel promotions by outcome.
	PromotionsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "giftwatch",
		Name:      "promotions_completed_total",
		Help:      "Channel promotion workflows finished, by outcome.",
	}, []string{"outcome"})
)

// Serve runs the /metrics HTTP listener until ctx is cancelled. An empty
// addr disables the listener and returns immediately.
func Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	if addr == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Metrics listener started", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Metrics listener shutdown error", "error", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
