package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/arguiot/arbitrage-bot-sub000/internal/domain"
)

// Watcher bridges the signal bus to the notifier: every decision published by
// the coordinator becomes an operator alert, filtered by the configured event
// list.
type Watcher struct {
	notifier *Notifier
	bus      domain.SignalBus
	logger   *slog.Logger
}

func NewWatcher(notifier *Notifier, bus domain.SignalBus, logger *slog.Logger) *Watcher {
	return &Watcher{
		notifier: notifier,
		bus:      bus,
		logger:   logger.With(slog.String("component", "notify-watcher")),
	}
}

// Run consumes decision events until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	msgs, cancel, err := w.bus.Subscribe(ctx, domain.EventDecision)
	if err != nil {
		return fmt.Errorf("notify: subscribe decisions: %w", err)
	}
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case data, ok := <-msgs:
			if !ok {
				return nil
			}
			var event domain.DecisionEvent
			if err := json.Unmarshal(data, &event); err != nil {
				w.logger.Warn("bad decision payload", slog.Any("error", err))
				continue
			}
			title, message := formatDecision(&event)
			if err := w.notifier.Notify(ctx, string(event.Status), title, message); err != nil {
				w.logger.Warn("notification failed", slog.Any("error", err))
			}
		}
	}
}

// formatDecision renders a decision as a short operator-facing alert.
func formatDecision(event *domain.DecisionEvent) (title, message string) {
	var b strings.Builder

	switch event.Status {
	case domain.DecisionExecuting:
		title = "Execution started"
	case domain.DecisionExecuted:
		title = "Trade executed"
	case domain.DecisionFailed:
		title = "Trade failed"
	default:
		title = "Opportunity skipped"
	}

	if event.Opportunity != nil {
		fmt.Fprintf(&b, "Route: %s\n", event.Opportunity.Route.String())
		if event.Opportunity.Profit != nil {
			fmt.Fprintf(&b, "Expected profit: %s %s\n", event.Opportunity.Profit, event.Opportunity.StartToken().Name)
		}
	}
	if event.Reason != "" {
		fmt.Fprintf(&b, "Reason: %s\n", event.Reason)
	}
	for _, r := range event.Receipts {
		fmt.Fprintf(&b, "Fill %s: %s %s -> %s %s (%s)\n",
			r.MarketName, r.AmountIn, r.TokenIn.Name, r.AmountOut, r.TokenOut.Name, r.TxHash)
	}
	return title, strings.TrimRight(b.String(), "\n")
}
