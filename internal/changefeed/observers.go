package changefeed

import (
	"context"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/rs/zerolog"

	"dispatch/internal/domain"
)

// Invalidator drops derived state.
type Invalidator interface {
	Invalidate(ctx context.Context)
}

// PoolWatcher invalidates the pool listing whenever orders or deliveries change.
type PoolWatcher struct {
	hub  *Hub
	pool Invalidator
	log  zerolog.Logger
}

// NewPoolWatcher creates a new PoolWatcher.
func NewPoolWatcher(hub *Hub, pool Invalidator, log zerolog.Logger) *PoolWatcher {
	return &PoolWatcher{hub: hub, pool: pool, log: log.With().Str("component", "pool-watcher").Logger()}
}

// Run consumes events until ctx is done or the hub closes.
func (w *PoolWatcher) Run(ctx context.Context) error {
	events, unsubscribe := w.hub.Subscribe("", Tables(domain.TableOrders, domain.TableDeliveries))
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			w.log.Debug().Str("table", ev.Table).Str("type", string(ev.Type)).Str("id", ev.ID).Msg("invalidating pool listing")
			w.pool.Invalidate(ctx)
		}
	}
}

// CustomEventType is the New Relic event type for change events.
const CustomEventType = "DispatchChange"

// EventRecorder records events as New Relic custom events.
type EventRecorder interface {
	RecordCustomEvent(eventType string, params map[string]interface{})
}

var _ EventRecorder = (*newrelic.Application)(nil)

// Recorder forwards every change to New Relic.
type Recorder struct {
	hub *Hub
	app EventRecorder
}

// NewRecorder creates a new Recorder.
func NewRecorder(hub *Hub, app EventRecorder) *Recorder {
	return &Recorder{hub: hub, app: app}
}

// Run consumes events until ctx is done or the hub closes.
func (r *Recorder) Run(ctx context.Context) error {
	events, unsubscribe := r.hub.Subscribe("", nil)
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			params := map[string]interface{}{
				"table": ev.Table,
				"type":  string(ev.Type),
				"id":    ev.ID,
			}
			if riderID := rowRiderID(ev.Row); riderID != "" {
				params["riderId"] = riderID
			}
			r.app.RecordCustomEvent(CustomEventType, params)
		}
	}
}
