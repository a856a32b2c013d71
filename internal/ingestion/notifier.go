package ingestion

import (
	"log"
	"time"

	"github.com/google/uuid"

	"SynthSettle/internal/event"
	"SynthSettle/internal/observability"
)

// EventNotifier bridges the engine's fire-and-forget notifications onto
// the outbound publisher channel. Sends never block: the engine runs
// under the shell's lock, and a slow publisher must not stall settlement,
// so events are dropped when the channel is full.
type EventNotifier struct {
	out     chan<- PublishableEvent
	metrics *observability.Metrics
}

func NewEventNotifier(out chan<- PublishableEvent, metrics *observability.Metrics) *EventNotifier {
	return &EventNotifier{out: out, metrics: metrics}
}

func (n *EventNotifier) CollateralChanged(delta int64) {
	n.send(event.TypeCollateralChanged, event.CollateralChanged{Delta: delta})
}

func (n *EventNotifier) PositionChanged(account uuid.UUID, newPosition int64) {
	n.send(event.TypePositionChanged, event.PositionChanged{
		Account:     account,
		NewPosition: newPosition,
	})
}

// CycleSettled is called by the shell after each completed cycle.
func (n *EventNotifier) CycleSettled(summary event.CycleSettled) {
	n.send(event.TypeCycleSettled, summary)
}

// PositionLiquidated is called by the shell for each position the
// liquidation pass reduced.
func (n *EventNotifier) PositionLiquidated(notice event.PositionLiquidated) {
	n.send(event.TypePositionLiquidated, notice)
}

func (n *EventNotifier) send(eventType string, payload interface{}) {
	evt := PublishableEvent{
		EventType: eventType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}

	select {
	case n.out <- evt:
	default:
		if n.metrics != nil {
			n.metrics.PublishDrops.Inc()
		}
		log.Printf("WARN: outbound event channel full, dropping %s", eventType)
	}
}
