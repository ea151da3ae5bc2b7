package changefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog"

	"dispatch/internal/domain"
)

// Channel is the NOTIFY channel the schema triggers publish on.
const Channel = "dispatch_changes"

const (
	minReconnect = 10 * time.Second
	maxReconnect = time.Minute
	pingInterval = 90 * time.Second
)

// Publisher receives decoded events.
type Publisher interface {
	Publish(ev domain.ChangeEvent)
}

// PostgresSource forwards row changes announced through LISTEN/NOTIFY.
type PostgresSource struct {
	dsn string
	out Publisher
	log zerolog.Logger
}

// NewPostgresSource creates a source listening with its own connection to dsn.
func NewPostgresSource(dsn string, out Publisher, log zerolog.Logger) *PostgresSource {
	return &PostgresSource{
		dsn: dsn,
		out: out,
		log: log.With().Str("component", "pg-listener").Logger(),
	}
}

// Run listens until ctx is done. The listener reconnects on its own; every
// reconnect is announced downstream as a RESYNC event.
func (s *PostgresSource) Run(ctx context.Context) error {
	listener := pq.NewListener(s.dsn, minReconnect, maxReconnect, s.onEvent)
	defer listener.Close()

	if err := listener.Listen(Channel); err != nil {
		return fmt.Errorf("listen %s: %w", Channel, err)
	}
	s.log.Info().Str("channel", Channel).Msg("listening for changes")

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case n := <-listener.Notify:
			if n == nil {
				// Sent after a reconnect; notifications may have been lost.
				s.out.Publish(domain.ChangeEvent{Type: domain.ChangeResync})
				continue
			}
			ev, err := decode(n.Extra)
			if err != nil {
				s.log.Warn().Err(err).Msg("undecodable change notification")
				continue
			}
			s.out.Publish(ev)
		case <-ticker.C:
			go func() {
				if err := listener.Ping(); err != nil {
					s.log.Warn().Err(err).Msg("listener ping failed")
				}
			}()
		}
	}
}

func (s *PostgresSource) onEvent(ev pq.ListenerEventType, err error) {
	switch ev {
	case pq.ListenerEventConnected:
		s.log.Debug().Msg("listener connected")
	case pq.ListenerEventDisconnected:
		s.log.Warn().Err(err).Msg("listener disconnected")
	case pq.ListenerEventReconnected:
		s.log.Info().Msg("listener reconnected")
	case pq.ListenerEventConnectionAttemptFailed:
		s.log.Error().Err(err).Msg("listener connection attempt failed")
	}
}

func decode(payload string) (domain.ChangeEvent, error) {
	var ev domain.ChangeEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return ev, err
	}
	if ev.Table == "" || ev.Type == "" {
		return ev, fmt.Errorf("incomplete change event %q", payload)
	}
	return ev, nil
}
