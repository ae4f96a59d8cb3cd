package events

import (
	"context"
	"time"

	"alpacabot/internal/models"
)

const (
	TypeRunCompleted = "run_completed"
	TypeRunError     = "run_error"
	TypeTick         = "tick"

	DefaultChannel = "bot_events"
)

// Event is the JSON envelope published for every run outcome and tick.
type Event struct {
	Type       string              `json:"type"`
	At         time.Time           `json:"at"`
	StrategyID string              `json:"strategy_id,omitempty"`
	RunID      string              `json:"run_id,omitempty"`
	Status     string              `json:"status,omitempty"`
	Run        *models.StrategyRun `json:"run,omitempty"`
	Data       map[string]any      `json:"data,omitempty"`
}

// RunEvent builds the completion event for a finalized run.
func RunEvent(run models.StrategyRun) Event {
	typ := TypeRunCompleted
	if run.Status == models.RunStatusError {
		typ = TypeRunError
	}
	at := time.Now().UTC()
	if run.FinishedAt != nil {
		at = *run.FinishedAt
	}
	return Event{
		Type:       typ,
		At:         at,
		StrategyID: run.StrategyID,
		RunID:      run.ID,
		Status:     run.Status,
		Run:        &run,
	}
}

// Publisher delivers events best-effort. Publish never returns an error and
// must not block the caller for long.
type Publisher interface {
	Publish(ctx context.Context, ev Event)
}

// Source streams raw JSON events, e.g. to websocket clients.
type Source interface {
	Subscribe(ctx context.Context) (<-chan []byte, func(), error)
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) {}

// Multi publishes to every non-nil publisher in order.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, ev Event) {
	for _, p := range m {
		if p != nil {
			p.Publish(ctx, ev)
		}
	}
}
