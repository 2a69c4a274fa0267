// Package execution routes trade decisions either to the simulation log or to
// a live order executor.
package execution

import (
	"context"
	"errors"
	"fmt"

	"github.com/rewired-gh/polytrend/internal/logger"
	"github.com/rewired-gh/polytrend/internal/models"
)

// Mode selects whether decisions are only logged or also executed.
type Mode string

const (
	Simulation Mode = "simulation"
	Live       Mode = "live"
)

// ErrNoExecutor is returned in live mode when no order executor is wired in.
var ErrNoExecutor = errors.New("no order executor configured")

// Executor places an order for a decision.
type Executor interface {
	Execute(ctx context.Context, d models.Decision) error
}

// Dispatcher logs every decision and, in live mode, forwards it to the executor.
type Dispatcher struct {
	mode     Mode
	executor Executor
}

func NewDispatcher(mode Mode, executor Executor) *Dispatcher {
	return &Dispatcher{mode: mode, executor: executor}
}

func (d *Dispatcher) Mode() Mode {
	return d.mode
}

func (d *Dispatcher) Dispatch(ctx context.Context, decision models.Decision) error {
	if d.mode != Live {
		logger.Info("%s", FormatAction("[SIM]", decision))
		return nil
	}

	logger.Info("%s", FormatAction("[LIVE]", decision))
	if d.executor == nil {
		return ErrNoExecutor
	}
	if err := d.executor.Execute(ctx, decision); err != nil {
		return fmt.Errorf("failed to execute %s for %s: %w", decision.Action.Kind, decision.Asset, err)
	}
	return nil
}

// FormatAction renders an action line, e.g. "[SIM] BUY UP   | ETH | price=0.5300 | shares=6".
func FormatAction(tag string, d models.Decision) string {
	var verb string
	switch d.Action.Kind {
	case models.BuyUp:
		verb = "BUY UP  "
	case models.BuyDown:
		verb = "BUY DOWN"
	case models.SellUp:
		verb = "SELL UP "
	case models.SellDown:
		verb = "SELL DOWN"
	default:
		verb = "NO ACTION"
	}
	return fmt.Sprintf("%s %s | %s | price=%.4f | shares=%g", tag, verb, d.Asset, d.Action.Price, d.Action.Shares)
}
