package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"
)

type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPNotifier publishes reset events to a topic exchange for an external
// mailer to consume.
type AMQPNotifier struct {
	conn     *amqp.Connection
	ch       publisher
	exchange string
}

func NewAMQPNotifier(url, exchange string) (*AMQPNotifier, error) {
	url = strings.TrimSpace(url)
	exchange = strings.TrimSpace(exchange)
	if url == "" {
		return nil, fmt.Errorf("amqp url is required")
	}
	if exchange == "" {
		return nil, fmt.Errorf("amqp exchange is required")
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &AMQPNotifier{conn: conn, ch: ch, exchange: exchange}, nil
}

func (n *AMQPNotifier) PasswordResetRequested(ctx context.Context, r Reset) error {
	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode reset event: %w", err)
	}
	err = n.ch.PublishWithContext(ctx, n.exchange, RoutingKeyPasswordResetRequested, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish reset event: %w", err)
	}
	return nil
}

func (n *AMQPNotifier) Close() error {
	if c, ok := n.ch.(interface{ Close() error }); ok {
		_ = c.Close()
	}
	if n.conn != nil {
		return n.conn.Close()
	}
	return nil
}
