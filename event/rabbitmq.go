package event

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

const ActionHeader string = "x-action"

const (
	// QueueEvents receives the domain events this service publishes.
	QueueEvents = "messenger.events"
	// QueueCommands is consumed by this service.
	QueueCommands = "messenger.commands"
)

const (
	ActionChatCreated    = "chat.created"
	ActionMessageCreated = "message.created"
	ActionMessageDeleted = "message.deleted"
	ActionContactAdded   = "contact.added"
	ActionContactRemoved = "contact.removed"
	ActionUserStatus     = "user.status"

	ActionSendMessage = "message.send"
	ActionJoinChat    = "chat.join"
)

type Publisher interface {
	Publish(ctx context.Context, action string, payload interface{}) error
}

// Nop discards events. Used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, string, interface{}) error { return nil }

type Envelope struct {
	Action string
	Data   []byte
}

type Handler func(ctx context.Context, env Envelope) error

type Options struct {
	URL     string
	Queues  []string
	Journal *Journal
}

type Bus struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	journal *Journal
	log     *logrus.Logger

	// amqp channels must not interleave publishes
	mu sync.Mutex
}

func URL(user, password, host, port string) string {
	return fmt.Sprintf("amqp://%s:%s@%s:%s/", user, password, host, port)
}

// Dial connects to RabbitMQ and declares the queues.
func Dial(opt Options, log *logrus.Logger) (*Bus, error) {
	conn, err := amqp.Dial(opt.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	log.Info("Connection opened to RabbitMQ server")

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a RabbitMQ channel: %w", err)
	}

	for _, name := range opt.Queues {
		_, err := channel.QueueDeclare(
			name,  // name
			true,  // durable
			false, // delete when unused
			false, // exclusive
			false, // no-wait
			nil,   // arguments
		)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to declare RabbitMQ queue %s: %w", name, err)
		}
		log.WithField("queue", name).Info("Declared RabbitMQ queue")
	}

	return &Bus{conn: conn, channel: channel, journal: opt.Journal, log: log}, nil
}

// Publish sends payload as JSON to the events queue.
func (b *Bus) Publish(ctx context.Context, action string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	b.mu.Lock()
	err = b.channel.PublishWithContext(
		ctx,
		"",          // exchange
		QueueEvents, // routing key
		false,       // mandatory
		false,       // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			MessageId:    uuid.NewString(),
			Timestamp:    time.Now(),
			Headers: amqp.Table{
				ActionHeader: action,
			},
			Body: data,
		},
	)
	b.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", action, err)
	}

	b.journal.Out(QueueEvents, action, data)
	return nil
}

// Subscribe consumes queue and hands every delivery to handler. Deliveries
// whose handler fails are dropped, not requeued.
func (b *Bus) Subscribe(queue string, handler Handler) error {
	msgs, err := b.channel.Consume(
		queue, // queue
		"",    // consumer
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("failed to register a consumer on %s: %w", queue, err)
	}
	b.log.WithField("queue", queue).Info("Subscribed to RabbitMQ queue")

	go func() {
		for msg := range msgs {
			action, _ := msg.Headers[ActionHeader].(string)
			b.journal.In(queue, action, msg.Body)

			err := handler(context.Background(), Envelope{Action: action, Data: msg.Body})
			if err != nil {
				b.log.WithError(err).WithFields(logrus.Fields{
					"queue":  queue,
					"action": action,
				}).Warn("Event handler failed")
				_ = msg.Nack(false, false)
				continue
			}
			_ = msg.Ack(false)
		}
	}()

	return nil
}

func (b *Bus) Close() error {
	if err := b.channel.Close(); err != nil {
		b.conn.Close()
		return err
	}
	if err := b.conn.Close(); err != nil {
		return err
	}
	return b.journal.Close()
}
