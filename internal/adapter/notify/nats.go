package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// Defaults for the NATS wake-up channel.
const (
	DefaultSubject    = "commit-reports.enqueued"
	DefaultQueueGroup = "report-workers"
)

// NATSConfig holds the connection settings for the NATS notifier.
type NATSConfig struct {
	URL           string
	ClientID      string
	Subject       string
	QueueGroup    string
	MaxReconnects int
}

type enqueuedEvent struct {
	JobID string `json:"job_id"`
}

// NATSNotifier implements port.JobNotifier over a NATS subject. Subscribers
// join a queue group so each enqueue wakes one worker process.
type NATSNotifier struct {
	conn *nats.Conn
	cfg  NATSConfig
}

// NewNATSNotifier connects to NATS with reconnection logic.
func NewNATSNotifier(cfg NATSConfig) (*NATSNotifier, error) {
	if cfg.Subject == "" {
		cfg.Subject = DefaultSubject
	}
	if cfg.QueueGroup == "" {
		cfg.QueueGroup = DefaultQueueGroup
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "commit-reporter"
	}

	opts := []nats.Option{
		nats.Name(cfg.ClientID),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				slog.Warn("NATS disconnected", "error", err)
			} else {
				slog.Info("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			if err := nc.LastError(); err != nil {
				slog.Error("NATS connection closed", "error", err)
			}
		}),
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	slog.Info("connected to NATS", "url", cfg.URL, "subject", cfg.Subject)

	return &NATSNotifier{conn: conn, cfg: cfg}, nil
}

// Notify publishes an enqueue event for jobID.
func (n *NATSNotifier) Notify(_ context.Context, jobID string) error {
	data, err := json.Marshal(enqueuedEvent{JobID: jobID})
	if err != nil {
		return fmt.Errorf("marshal enqueue event: %w", err)
	}
	if err := n.conn.Publish(n.cfg.Subject, data); err != nil {
		return fmt.Errorf("publish enqueue event: %w", err)
	}
	slog.Debug("published enqueue event", "subject", n.cfg.Subject, "job_id", jobID)
	return nil
}

// Subscribe joins the worker queue group and calls fn per event.
func (n *NATSNotifier) Subscribe(fn func(jobID string)) (func(), error) {
	sub, err := n.conn.QueueSubscribe(n.cfg.Subject, n.cfg.QueueGroup, func(msg *nats.Msg) {
		var ev enqueuedEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			slog.Error("failed to unmarshal enqueue event", "subject", msg.Subject, "error", err)
			return
		}
		fn(ev.JobID)
	})
	if err != nil {
		return nil, fmt.Errorf("queue subscribe to %s: %w", n.cfg.Subject, err)
	}

	return func() {
		if err := sub.Unsubscribe(); err != nil {
			slog.Warn("NATS unsubscribe failed", "error", err)
		}
	}, nil
}

// Close drains pending messages before closing the connection.
func (n *NATSNotifier) Close() {
	if err := n.conn.Drain(); err != nil {
		slog.Warn("error draining NATS connection", "error", err)
		n.conn.Close()
	}
}
