package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"taskmaster/internal/mail"

	amqp "github.com/rabbitmq/amqp091-go"
)

type RabbitMQClient struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   amqp.Queue
}

func New(urlForConn string, queueName string) (*RabbitMQClient, error) {
	const op = "rabbitmq.New"

	conn, err := amqp.Dial(urlForConn)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	q, err := ch.QueueDeclare(
		queueName, true, false, false, false, nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &RabbitMQClient{
		conn:    conn,
		channel: ch,
		queue:   q,
	}, nil
}

// SendOTP publishes msg for the mail sender. A publish failure is
// returned to the caller as is; there is no retry.
func (r *RabbitMQClient) SendOTP(ctx context.Context, msg mail.Message) error {
	const op = "rabbitmq.SendOTP"

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	err = r.channel.PublishWithContext(
		ctx,
		"",
		r.queue.Name,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Consume delivers queued messages to handle until ctx is done or the
// channel closes. A message is acked when handle succeeds and dropped
// (nack without requeue) when it fails.
func (r *RabbitMQClient) Consume(ctx context.Context, handle func(ctx context.Context, msg mail.Message) error) error {
	const op = "rabbitmq.Consume"

	if err := r.channel.Qos(1, 0, false); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	deliveries, err := r.channel.Consume(r.queue.Name, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("%s: delivery channel closed", op)
			}

			if err := HandleDelivery(ctx, d.Body, handle); err != nil {
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// HandleDelivery decodes a raw delivery body and passes it to handle.
func HandleDelivery(ctx context.Context, body []byte, handle func(ctx context.Context, msg mail.Message) error) error {
	const op = "rabbitmq.HandleDelivery"

	var msg mail.Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if msg.To == "" || msg.Code == "" {
		return fmt.Errorf("%s: incomplete message", op)
	}

	if err := handle(ctx, msg); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *RabbitMQClient) Close() {
	_ = r.channel.Close()
	_ = r.conn.Close()
}
