// Package notify delivers engine events to operator channels. Notifications
// fan out to every registered sender and are filtered by event type so
// operators receive only the alerts they care about.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/solsweep/sweepbot/internal/domain"
)

// Sender is one notification channel.
type Sender interface {
	// Send delivers a notification with the given title and message body.
	Send(ctx context.Context, title, message string) error
	// Name returns a human-readable identifier for the sender (e.g. "telegram").
	Name() string
}

// Notifier dispatches notifications to one or more Senders, filtered by an
// allowed set of event types. An empty set allows everything.
type Notifier struct {
	senders []Sender
	events  map[string]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier delivering to the given senders. Only events
// whose type appears in events are forwarded; an empty list allows all.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		allowed[strings.TrimSpace(e)] = true
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Notify sends a notification to all senders when the event type is allowed.
func (n *Notifier) Notify(ctx context.Context, event, title, message string) error {
	if len(n.events) > 0 && !n.events[event] {
		return nil
	}
	return n.dispatch(ctx, title, message)
}

func (n *Notifier) dispatch(ctx context.Context, title, message string) error {
	var firstErr error
	for _, sender := range n.senders {
		if err := sender.Send(ctx, title, message); err != nil {
			n.logger.Warn("notification delivery failed",
				slog.String("sender", sender.Name()),
				slog.String("error", err.Error()),
			)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Sink adapts the Notifier to domain.EventSink. Delivery happens on a
// background goroutine with its own timeout so the engine never blocks.
func (n *Notifier) Sink() domain.EventSink {
	return domain.EventSinkFunc(func(event domain.Event) {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			title, message := formatEvent(event)
			_ = n.Notify(ctx, string(event.Type), title, message)
		}()
	})
}

// formatEvent renders an engine event into a short operator message.
func formatEvent(event domain.Event) (title, message string) {
	switch event.Type {
	case domain.EventOpportunityDetected:
		opp := event.Opportunity
		return "Opportunity detected", fmt.Sprintf(
			"%s %.4f%% move, confidence %.0f, potential %.6f",
			opp.Pair.Symbol(), opp.PercentChange, opp.Confidence, opp.PotentialProfit,
		)
	case domain.EventTradeSettled:
		trade := event.Trade
		status := "settled"
		if trade.Indeterminate {
			status = "settled (indeterminate)"
		}
		return "Trade " + status, fmt.Sprintf(
			"%s -> %s, in %.6f out %.6f, tx %s",
			trade.InputAsset, trade.OutputAsset, trade.InputAmount, trade.OutputAmount, trade.TxID,
		)
	case domain.EventConsolidationCompleted:
		task := event.Consolidation
		return "Consolidation completed", fmt.Sprintf(
			"swept %.6f %s back to base", task.Amount, task.Asset,
		)
	case domain.EventThresholdAdjusted:
		change := event.Threshold
		return "Threshold adjusted", fmt.Sprintf(
			"%.4f%% -> %.4f%% (rolling hour %.6f)",
			change.Previous, change.Current, change.RollingHour,
		)
	default:
		return string(event.Type), ""
	}
}
