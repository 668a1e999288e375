package domain

import "time"

// EventType enumerates the structured events the engine emits.
type EventType string

const (
	EventOpportunityDetected    EventType = "opportunity_detected"
	EventTradeSettled           EventType = "trade_settled"
	EventConsolidationCompleted EventType = "consolidation_completed"
	EventThresholdAdjusted      EventType = "threshold_adjusted"
)

// Event carries one engine occurrence for logging/dashboard consumers.
// Exactly one of the payload pointers is set, matching Type.
type Event struct {
	Type          EventType          `json:"type"`
	At            time.Time          `json:"at"`
	Opportunity   *Opportunity       `json:"opportunity,omitempty"`
	Trade         *TradeResult       `json:"trade,omitempty"`
	Consolidation *ConsolidationTask `json:"consolidation,omitempty"`
	Threshold     *ThresholdChange   `json:"threshold,omitempty"`
}

// ThresholdChange records one adaptive-threshold adjustment.
type ThresholdChange struct {
	Previous    float64 `json:"previous"`
	Current     float64 `json:"current"`
	RollingHour float64 `json:"rolling_hour_profit"`
}

// EventSink receives engine events. Delivery is best-effort: implementations
// must never block the engine and no response is expected.
type EventSink interface {
	Emit(event Event)
}

// EventSinkFunc adapts a function to the EventSink interface.
type EventSinkFunc func(Event)

// Emit implements EventSink.
func (f EventSinkFunc) Emit(event Event) { f(event) }

// NopSink discards all events.
var NopSink EventSink = EventSinkFunc(func(Event) {})
