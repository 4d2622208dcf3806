// ABOUTME: Cadence parsing and the ticker loop driving periodic reconciliation
// ABOUTME: Fires ReconcileCourses on the configured interval until the context ends

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/2389/spacesync/internal/reconcile"
)

// Cadence names a periodic sync schedule.
type Cadence string

const (
	CadenceDisabled    Cadence = "disabled"
	CadenceEveryMinute Cadence = "every_minute"
	CadenceHourly      Cadence = "hourly"
	CadenceTwiceDaily  Cadence = "twicedaily"
	CadenceDaily       Cadence = "daily"
)

// ParseCadence validates a cadence string from configuration.
func ParseCadence(s string) (Cadence, error) {
	switch c := Cadence(s); c {
	case CadenceDisabled, CadenceEveryMinute, CadenceHourly, CadenceTwiceDaily, CadenceDaily:
		return c, nil
	default:
		return "", fmt.Errorf("unknown cadence %q", s)
	}
}

// Interval returns the tick interval for the cadence. Disabled has no
// interval and returns zero.
func (c Cadence) Interval() time.Duration {
	switch c {
	case CadenceEveryMinute:
		return time.Minute
	case CadenceHourly:
		return time.Hour
	case CadenceTwiceDaily:
		return 12 * time.Hour
	case CadenceDaily:
		return 24 * time.Hour
	default:
		return 0
	}
}

// Scheduler ticks the periodic reconciler on a fixed cadence.
type Scheduler struct {
	reconciler courseReconciler
	cadence    Cadence
	logger     *slog.Logger
}

// courseReconciler is the slice of the reconciler the scheduler needs.
type courseReconciler interface {
	ReconcileCourses(ctx context.Context) error
}

// New creates a Scheduler.
func New(reconciler courseReconciler, cadence Cadence, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		reconciler: reconciler,
		cadence:    cadence,
		logger:     logger.With("component", "scheduler"),
	}
}

// Run ticks until the context is cancelled. With a disabled cadence it
// returns immediately. Tick errors are logged, never fatal: credentials may
// be configured later and the reconciler retries by design on the next tick.
func (s *Scheduler) Run(ctx context.Context) {
	if s.cadence == CadenceDisabled {
		s.logger.Info("periodic sync disabled")
		return
	}

	interval := s.cadence.Interval()
	s.logger.Info("periodic sync started", "cadence", string(s.cadence), "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("periodic sync stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	err := s.reconciler.ReconcileCourses(ctx)
	switch {
	case err == nil:
	case errors.Is(err, reconcile.ErrSyncInProgress), errors.Is(err, reconcile.ErrMissingCredentials):
		// Already logged by the reconciler with more context.
	default:
		s.logger.Error("sync tick failed", "error", err)
	}
}
