package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"gopherai-chat/internal/model"
)

var errMissingMessageID = errors.New("publish message failed: missing id")

// DefaultPublishTimeout bounds a publish whose context carries no deadline.
const DefaultPublishTimeout = 5 * time.Second

// MessagePublisher sends messages to a durable queue for asynchronous
// persistence. The queue is declared on first use.
type MessagePublisher struct {
	conn      *amqp.Connection
	queueName string
	timeout   time.Duration

	mu       sync.Mutex
	declared bool
}

func NewMessagePublisher(conn *amqp.Connection, queueName string) *MessagePublisher {
	return &MessagePublisher{
		conn:      conn,
		queueName: queueName,
		timeout:   DefaultPublishTimeout,
	}
}

func (p *MessagePublisher) Publish(ctx context.Context, msg model.Message) error {
	publishing, err := newPublishing(msg, time.Now())
	if err != nil {
		return err
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open rabbitmq channel failed: %w", err)
	}
	defer ch.Close()

	if err := p.declare(ch); err != nil {
		return err
	}

	if err := ch.PublishWithContext(ctx, "", p.queueName, false, false, publishing); err != nil {
		return fmt.Errorf("publish message %s failed: %w", msg.ID, err)
	}
	return nil
}

func (p *MessagePublisher) declare(ch *amqp.Channel) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.declared {
		return nil
	}
	if _, err := ch.QueueDeclare(p.queueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue failed: %w", err)
	}
	p.declared = true
	return nil
}

// newPublishing encodes msg as a persistent delivery. The message id and role
// ride in the properties so consumers can log and route without decoding.
func newPublishing(msg model.Message, now time.Time) (amqp.Publishing, error) {
	if msg.ID == "" {
		return amqp.Publishing{}, errMissingMessageID
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("marshal message payload failed: %w", err)
	}

	ts := msg.CreatedAt
	if ts.IsZero() {
		ts = now
	}
	headers := amqp.Table{}
	if msg.ParentID != "" {
		headers["parent_id"] = msg.ParentID
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		MessageId:    msg.ID,
		Type:         msg.Role,
		Timestamp:    ts,
		Headers:      headers,
		Body:         payload,
		DeliveryMode: amqp.Persistent,
	}, nil
}
