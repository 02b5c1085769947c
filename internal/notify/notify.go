// Package notify publishes delivery outcomes to downstream integrations.
// Publishing is best effort; callers log failures and move on.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// DeliveryNotice summarizes one forwarded event.
type DeliveryNotice struct {
	TenantID         string    `json:"tenantId"`
	EventID          string    `json:"eventId"`
	EventType        string    `json:"eventType"`
	Status           string    `json:"status"`
	ForwardedTo      []string  `json:"forwardedTo"`
	LastResponseCode int       `json:"lastResponseCode"`
	RetryCount       int       `json:"retryCount"`
	At               time.Time `json:"at"`
}

type Notifier interface {
	Notify(ctx context.Context, n DeliveryNotice) error
	Close() error
}

// Noop drops every notice. Used when no broker is configured.
type Noop struct{}

func (Noop) Notify(context.Context, DeliveryNotice) error { return nil }
func (Noop) Close() error                                 { return nil }

type publisher interface {
	Publish(subject string, data []byte) error
}

// NATSNotifier publishes notices as JSON on <subject>.<tenantId>.
type NATSNotifier struct {
	pub     publisher
	conn    *nats.Conn
	subject string
}

type Config struct {
	URL           string
	Subject       string
	Name          string
	MaxReconnects int
	ReconnectWait time.Duration
	Timeout       time.Duration
}

func NewNATSNotifier(cfg Config) (*NATSNotifier, error) {
	if cfg.URL == "" {
		cfg.URL = nats.DefaultURL
	}
	if cfg.Name == "" {
		cfg.Name = "hookgate"
	}
	if cfg.ReconnectWait <= 0 {
		cfg.ReconnectWait = 2 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.MaxReconnects == 0 {
		cfg.MaxReconnects = -1
	}
	conn, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.Timeout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	n := newNATSNotifier(conn, cfg.Subject)
	n.conn = conn
	return n, nil
}

func newNATSNotifier(pub publisher, subject string) *NATSNotifier {
	if subject == "" {
		subject = "hookgate.deliveries"
	}
	return &NATSNotifier{pub: pub, subject: subject}
}

func (n *NATSNotifier) Notify(ctx context.Context, notice DeliveryNotice) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(notice)
	if err != nil {
		return fmt.Errorf("marshal notice: %w", err)
	}
	return n.pub.Publish(n.subject+"."+notice.TenantID, data)
}

func (n *NATSNotifier) Close() error {
	if n.conn == nil {
		return nil
	}
	return n.conn.Drain()
}
