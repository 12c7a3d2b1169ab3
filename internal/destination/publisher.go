// Package destination dispatches profile deltas to downstream
// consumers over NATS: connection setup, reconnect policy, and
// structured logging of connection state, repurposed here for
// profile-delta publication rather than lifecycle events.
package destination

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/tracardi/tracker-core/internal/logger"
)

// Config holds the NATS connection configuration.
type Config struct {
	URL      string
	User     string
	Password string
}

// Delta is what gets published: a profile id, the keys that changed,
// and the new values at those keys (Supplemented Feature 4 — a
// structural diff, not just "changed: true").
type Delta struct {
	ProfileID  string         `json:"profile_id"`
	ChangedKeys []string      `json:"changed_keys"`
	Values     map[string]any `json:"values"`
}

// Subject is the NATS subject a delta is published on. The tracker
// publishes every profile delta on one subject, "tracker.profile.delta".
type Subject string

// Publisher publishes profile deltas to one or more destinations. A
// disabled Publisher (NATS unreachable at startup) degrades to a
// no-op so the tracking pipeline never blocks on dispatch.
type Publisher struct {
	conn    *nats.Conn
	enabled bool
}

// NewPublisher connects to NATS. If cfg.URL is empty or the broker is
// unreachable, it returns a disabled Publisher rather than an error —
// destination dispatch is best-effort, never load-bearing for the
// track response.
func NewPublisher(cfg Config) (*Publisher, error) {
	log := logger.Destination()

	if cfg.URL == "" {
		log.Warn().Msg("NATS_URL not configured, destination dispatch disabled")
		return &Publisher{enabled: false}, nil
	}

	opts := []nats.Option{
		nats.Name("tracker-core-destination"),
		nats.ReconnectWait(2 * time.Second),
		nats.MaxReconnects(10),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("destination publisher disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("destination publisher reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("destination publisher error")
		}),
	}

	if cfg.User != "" {
		opts = append(opts, nats.UserInfo(cfg.User, cfg.Password))
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		log.Warn().Err(err).Str("url", cfg.URL).Msg("failed to connect destination publisher to NATS, dispatch disabled")
		return &Publisher{enabled: false}, nil
	}

	log.Info().Str("url", conn.ConnectedUrl()).Msg("destination publisher connected")
	return &Publisher{conn: conn, enabled: true}, nil
}

// IsEnabled reports whether dispatch is actually wired to a broker.
func (p *Publisher) IsEnabled() bool {
	return p.enabled
}

// Publish sends a Delta on subject. A no-op, successfully, when the
// publisher is disabled.
func (p *Publisher) Publish(ctx context.Context, subject Subject, delta Delta) error {
	if !p.enabled {
		return nil
	}

	data, err := json.Marshal(delta)
	if err != nil {
		return fmt.Errorf("encoding delta for profile %s: %w", delta.ProfileID, err)
	}

	if err := p.conn.Publish(string(subject), data); err != nil {
		return fmt.Errorf("publishing delta for profile %s to %s: %w", delta.ProfileID, subject, err)
	}
	return nil
}

// Close drains and closes the NATS connection.
func (p *Publisher) Close() {
	if p.conn != nil {
		p.conn.Drain()
		p.conn.Close()
	}
}
