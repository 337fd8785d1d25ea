package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"
)

// AuditConsumer listens to the account and message queues and appends one
// line per event to an audit log file.
type AuditConsumer struct {
	URL  string
	Path string // defaults to logs/audit.log
	Log  *slog.Logger

	mu sync.Mutex
}

func NewAuditConsumer(url string, log *slog.Logger) *AuditConsumer {
	return &AuditConsumer{URL: url, Path: filepath.Join("logs", "audit.log"), Log: log}
}

// Run connects to RabbitMQ and consumes until ctx is cancelled, reconnecting
// with exponential backoff (capped at 30s) when the broker goes away.
func (c *AuditConsumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.URL)
		if err != nil {
			c.Log.Warn("audit-consumer: dial failed", slog.Any("err", err), slog.Duration("retry_in", backoff))
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.Log.Warn("audit-consumer: consume loop ended, reconnecting", slog.Any("err", err))
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *AuditConsumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return errors.Wrap(err, "channel open")
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.Log.Warn("audit-consumer: set QoS failed", slog.Any("err", err))
	}

	deliveries := make(chan amqp.Delivery)
	for _, q := range []string{AccountEventsQueue, MessageSentQueue} {
		if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
			return errors.Wrapf(err, "queue declare %s", q)
		}
		msgs, err := ch.Consume(q, "", false, false, false, false, nil)
		if err != nil {
			return errors.Wrapf(err, "queue consume %s", q)
		}
		go func(msgs <-chan amqp.Delivery) {
			for d := range msgs {
				select {
				case deliveries <- d:
				case <-ctx.Done():
					return
				}
			}
		}(msgs)
	}

	closed := conn.NotifyClose(make(chan *amqp.Error, 1))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case amqpErr := <-closed:
			return errors.Errorf("connection closed: %v", amqpErr)
		case d := <-deliveries:
			if err := c.Handle(d.RoutingKey, d.Body); err != nil {
				c.Log.Warn("audit-consumer: handle message failed", slog.Any("err", err))
				_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// Handle decodes one event from queue and appends its audit line.
func (c *AuditConsumer) Handle(queue string, body []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(c.Path), 0o755); err != nil {
		return errors.Wrap(err, "mkdir logs")
	}
	f, err := os.OpenFile(c.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrap(err, "open audit log")
	}
	defer f.Close()
	return WriteAuditLine(f, queue, body)
}

// WriteAuditLine renders a single-line, human-friendly record of an event.
func WriteAuditLine(w io.Writer, queue string, body []byte) error {
	var line string
	switch queue {
	case AccountEventsQueue:
		var ev AccountEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return errors.Wrap(err, "unmarshal account event")
		}
		line = fmt.Sprintf("[%s] %s | account_id=%s | email=%q | role=%s\n",
			ev.At, ev.Type, ev.AccountID, ev.Email, ev.Role)
	case MessageSentQueue:
		var ev MessageSentEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return errors.Wrap(err, "unmarshal message event")
		}
		line = fmt.Sprintf("[%s] message.sent | message_id=%d | sender_id=%s | recipient_id=%s | length=%d\n",
			ev.SentAt, ev.MessageID, ev.SenderID, ev.RecipientID, ev.Length)
	default:
		return errors.Errorf("unknown queue %q", queue)
	}
	_, err := io.WriteString(w, line)
	return errors.Wrap(err, "write audit line")
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
