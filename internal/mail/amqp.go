package mail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/me/hireflow/pkg/model"
)

// DefaultQueue is the queue invitations are published to.
const DefaultQueue = "interview_invitations"

const publishTimeout = 5 * time.Second

// AMQPMailer hands invitations to a mail worker through a durable queue.
// The channel runs in confirm mode; a hand-off succeeds only once the
// broker acks the message.
type AMQPMailer struct {
	conn      *amqp.Connection
	mu        sync.Mutex
	channel   *amqp.Channel
	publisher publisher
	queue     string
	logger    *slog.Logger
}

// confirmation is the broker's pending answer to one publish.
type confirmation interface {
	WaitContext(ctx context.Context) (bool, error)
}

type publisher interface {
	publish(ctx context.Context, queue string, msg amqp.Publishing) (confirmation, error)
}

type channelPublisher struct {
	ch *amqp.Channel
}

func (c channelPublisher) publish(ctx context.Context, queue string, msg amqp.Publishing) (confirmation, error) {
	dc, err := c.ch.PublishWithDeferredConfirmWithContext(ctx,
		"",    // exchange
		queue, // routing key
		false, // mandatory
		false, // immediate
		msg,
	)
	if err != nil {
		return nil, err
	}
	if dc == nil {
		return nil, errors.New("channel is not in confirm mode")
	}
	return dc, nil
}

// NewAMQPMailer dials url, declares queue and puts the channel in confirm
// mode.
func NewAMQPMailer(url, queue string, logger *slog.Logger) (*AMQPMailer, error) {
	if queue == "" {
		queue = DefaultQueue
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	q, err := ch.QueueDeclare(
		queue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare queue %s: %w", queue, err)
	}
	if err := ch.Confirm(false); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable publisher confirms: %w", err)
	}

	return &AMQPMailer{
		conn:      conn,
		channel:   ch,
		publisher: channelPublisher{ch: ch},
		queue:     q.Name,
		logger:    logger.With("component", "mail", "transport", "amqp", "queue", q.Name),
	}, nil
}

// SendInvitation publishes the rendered invitation as a persistent message.
func (m *AMQPMailer) SendInvitation(ctx context.Context, email string, p *model.InvitationPayload) error {
	msg, err := NewMessage(email, p)
	if err != nil {
		return err
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	m.mu.Lock()
	defer m.mu.Unlock()
	msgID := uuid.New().String()
	conf, err := m.publisher.publish(ctx, m.queue, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    msgID,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish invitation: %w", err)
	}
	acked, err := conf.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("await broker confirm: %w", err)
	}
	if !acked {
		return fmt.Errorf("broker nacked invitation %s", msgID)
	}
	m.logger.Debug("published", "job_id", p.JobID, "candidate_id", p.CandidateID, "message_id", msgID)
	return nil
}

// Close closes the channel and the connection.
func (m *AMQPMailer) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.channel.Close(); err != nil {
		m.conn.Close()
		return err
	}
	return m.conn.Close()
}
