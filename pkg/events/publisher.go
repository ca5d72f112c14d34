package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"golang.org/x/exp/slog"
)

// Envelope wraps every published payload
type Envelope struct {
	Subject    string          `json:"subject"`
	OccurredAt time.Time       `json:"occurredAt"`
	Data       json.RawMessage `json:"data"`
}

// NATSPublisher publishes domain events to NATS core subjects
type NATSPublisher struct {
	nc     *nats.Conn
	prefix string
}

// Connect dials the NATS server
func Connect(url, prefix, name string) (*NATSPublisher, error) {
	opts := []nats.Option{
		nats.Name(name),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				slog.Error("NATS disconnected with error", "error", err)
			} else {
				slog.Warn("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("NATS reconnected")
		}),
	}
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	slog.Info("Connected to NATS", "url", url)
	return &NATSPublisher{nc: nc, prefix: prefix}, nil
}

// Subject joins the prefix and the event name
func Subject(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return strings.TrimSuffix(prefix, ".") + "." + name
}

// Encode builds the wire form of an event
func Encode(subject string, payload any, now time.Time) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", subject, err)
	}
	return json.Marshal(Envelope{Subject: subject, OccurredAt: now, Data: data})
}

// Publish sends payload as JSON on the prefixed subject
func (p *NATSPublisher) Publish(ctx context.Context, subject string, payload any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	full := Subject(p.prefix, subject)
	msg, err := Encode(full, payload, time.Now().UTC())
	if err != nil {
		return err
	}
	if err := p.nc.Publish(full, msg); err != nil {
		return fmt.Errorf("publish %s: %w", full, err)
	}
	return nil
}

// Close flushes pending messages and closes the connection
func (p *NATSPublisher) Close() {
	if err := p.nc.Drain(); err != nil {
		slog.Warn("NATS drain failed", "error", err)
		p.nc.Close()
	}
}
