package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/rewired-gh/polytrend/internal/logger"
	"github.com/rewired-gh/polytrend/internal/metrics"
	"github.com/rewired-gh/polytrend/internal/models"
)

// SnapshotSource supplies one market snapshot per cycle.
type SnapshotSource func(ctx context.Context) (*models.MarketSnapshot, error)

// Dispatcher receives every decision emitted by a cycle.
type Dispatcher interface {
	Dispatch(ctx context.Context, d models.Decision) error
}

// CycleResult is reported to Loop.OnCycle after every cycle.
type CycleResult struct {
	Decisions []models.Decision
	Duration  time.Duration
	Err       error
}

// Loop drives the monitor: one snapshot, one decision pass and one dispatch
// round per cycle, then a fixed sleep. Cycles never overlap.
type Loop struct {
	source      SnapshotSource
	monitor     *Monitor
	dispatchers []Dispatcher
	interval    time.Duration

	// OnCycle, when set, is called synchronously after each cycle.
	OnCycle func(CycleResult)
}

func NewLoop(source SnapshotSource, mon *Monitor, interval time.Duration, dispatchers ...Dispatcher) *Loop {
	return &Loop{
		source:      source,
		monitor:     mon,
		dispatchers: dispatchers,
		interval:    interval,
	}
}

// RunCycle executes a single iteration. Dispatch failures are logged and do
// not fail the cycle. A panic inside the cycle is returned as an error.
func (l *Loop) RunCycle(ctx context.Context) (decisions []models.Decision, err error) {
	defer func() {
		if r := recover(); r != nil {
			decisions = nil
			err = fmt.Errorf("cycle panicked: %v", r)
		}
	}()

	snap, err := l.source(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}

	for _, asset := range l.monitor.Assets() {
		logger.Info("%s", PriceLine(snap, asset))
	}

	decisions = l.monitor.ProcessSnapshot(snap)
	for _, d := range decisions {
		metrics.DecisionsTotal.WithLabelValues(d.Asset, d.Action.Kind.String()).Inc()
		for _, dispatcher := range l.dispatchers {
			if err := dispatcher.Dispatch(ctx, d); err != nil {
				logger.Error("Failed to dispatch %s for %s: %v", d.Action.Kind, d.Asset, err)
			}
		}
	}
	return decisions, nil
}

// Run repeats cycles until ctx is cancelled. The sleep starts after a cycle
// finishes, so a slow cycle delays the next one instead of overlapping it.
func (l *Loop) Run(ctx context.Context) {
	for {
		start := time.Now()
		decisions, err := l.RunCycle(ctx)
		duration := time.Since(start)

		metrics.CycleDuration.Observe(duration.Seconds())
		if err != nil {
			metrics.CyclesTotal.WithLabelValues("error").Inc()
			if ctx.Err() == nil {
				logger.Error("Cycle failed: %v", err)
			}
		} else {
			metrics.CyclesTotal.WithLabelValues("ok").Inc()
			logger.Debug("Cycle completed in %v with %d decisions", duration, len(decisions))
		}

		if ctx.Err() != nil {
			return
		}
		if l.OnCycle != nil {
			l.OnCycle(CycleResult{Decisions: decisions, Duration: duration, Err: err})
		}

		timer := time.NewTimer(l.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}
