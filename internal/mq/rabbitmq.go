package mq

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/safeher/apiserver/config"
	"github.com/safeher/apiserver/internal/logging"
)

const rabbitAppID = "safeher"

// ErrDeliveriesClosed is returned by Subscribe when the broker closes the
// consumer. Callers are expected to reconnect.
var ErrDeliveriesClosed = errors.New("rabbitmq delivery channel closed")

// RabbitMQClient publishes to and consumes from named queues on the default
// exchange.
type RabbitMQClient struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	cfg     config.RabbitMQConfig
}

func NewRabbitMQClient(cfg config.RabbitMQConfig) (*RabbitMQClient, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("rabbitmq url is required")
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}
	if cfg.PrefetchCount > 0 {
		if err := ch.Qos(cfg.PrefetchCount, 0, false); err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return nil, fmt.Errorf("set rabbitmq qos: %w", err)
		}
	}

	return &RabbitMQClient{conn: conn, channel: ch, cfg: cfg}, nil
}

// Publish declares the queue and sends one message to it. Messages are
// persistent when the queue is durable.
func (r *RabbitMQClient) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if err := r.ensureQueue(channel); err != nil {
		return "", err
	}

	msg := amqp.Publishing{
		AppId:        rabbitAppID,
		ContentType:  "application/json",
		DeliveryMode: amqp.Transient,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		Body:         data,
	}
	if r.cfg.QueueDurable {
		msg.DeliveryMode = amqp.Persistent
	}
	if len(attrs) > 0 {
		msg.Headers = make(amqp.Table, len(attrs))
		for key, value := range attrs {
			msg.Headers[key] = value
		}
	}

	if err := r.channel.PublishWithContext(ctx, "", channel, false, false, msg); err != nil {
		return "", fmt.Errorf("publish to %s: %w", channel, err)
	}
	return msg.MessageId, nil
}

// Subscribe blocks consuming the queue until ctx is done or the broker
// closes the consumer.
func (r *RabbitMQClient) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if err := r.ensureQueue(channel); err != nil {
		return err
	}

	tag := rabbitAppID + "-" + uuid.NewString()
	deliveries, err := r.channel.Consume(channel, tag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", channel, err)
	}
	defer func() {
		_ = r.channel.Cancel(tag, false)
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-deliveries:
			if !ok {
				return ErrDeliveriesClosed
			}
			r.dispatch(ctx, channel, delivery, handler)
		}
	}
}

// dispatch runs the handler and settles the delivery. A failed message is
// requeued once and rejected on its second failure.
func (r *RabbitMQClient) dispatch(ctx context.Context, channel string, delivery amqp.Delivery, handler Handler) {
	err := handler(ctx, Message{
		ID:         delivery.MessageId,
		Data:       delivery.Body,
		Attributes: headersToAttributes(delivery.Headers),
	})
	if err == nil {
		_ = delivery.Ack(false)
		return
	}

	logging.Logger.WithFields(logrus.Fields{
		"source":      "rabbitmq",
		"queue":       channel,
		"message_id":  delivery.MessageId,
		"redelivered": delivery.Redelivered,
	}).WithError(err).Warn("message handler failed")
	_ = delivery.Nack(false, !delivery.Redelivered)
}

func (r *RabbitMQClient) Close() error {
	if r.channel != nil {
		_ = r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

func (r *RabbitMQClient) ensureQueue(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("rabbitmq channel is required")
	}
	if _, err := r.channel.QueueDeclare(name, r.cfg.QueueDurable, r.cfg.QueueAutoDelete, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", name, err)
	}
	return nil
}

// headersToAttributes flattens AMQP headers to strings.
func headersToAttributes(headers amqp.Table) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	attrs := make(map[string]string, len(headers))
	for key, value := range headers {
		switch typed := value.(type) {
		case string:
			attrs[key] = typed
		case []byte:
			attrs[key] = string(typed)
		default:
			attrs[key] = fmt.Sprint(value)
		}
	}
	return attrs
}
