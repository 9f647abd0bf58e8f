// Package amqp fans change notifications out to every running instance
// through a RabbitMQ fanout exchange.
package amqp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"pocketledger/internal/logger"
)

const (
	publishTimeout = 5 * time.Second
	maxBackoff     = 30 * time.Second
)

// ErrEmptyTopics is returned when Publish is called without topics.
var ErrEmptyTopics = errors.New("no topics to publish")

type Client struct {
	conn         *amqp091.Connection
	channel      *amqp091.Channel
	exchangeName string
	queueName    string
	origin       string
}

// NewClient dials url and binds a private, auto-deleted queue for origin to
// exchangeName. Each instance sees every message published to the exchange.
func NewClient(url, exchangeName, origin string) (*Client, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	client := &Client{
		conn:         conn,
		channel:      channel,
		exchangeName: exchangeName,
		origin:       origin,
	}

	if err := client.setup(); err != nil {
		client.Close()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
	}

	return client, nil
}

func (c *Client) setup() error {
	err := c.channel.ExchangeDeclare(
		c.exchangeName, // name
		"fanout",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	// Server-named queue that disappears with the connection. Messages
	// published while disconnected are lost; callers resync after a redial.
	q, err := c.channel.QueueDeclare(
		"",    // name
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	c.queueName = q.Name

	err = c.channel.QueueBind(
		c.queueName,    // queue name
		"",             // routing key (ignored by fanout)
		c.exchangeName, // exchange
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	return nil
}

// Origin returns the instance id stamped on published messages.
func (c *Client) Origin() string {
	return c.origin
}

// Publish broadcasts topics to every instance bound to the exchange.
func (c *Client) Publish(ctx context.Context, topics []string) error {
	if len(topics) == 0 {
		return ErrEmptyTopics
	}

	msg := NewChangeMessage(c.origin, topics)
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = c.channel.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		"",             // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Transient,
			Timestamp:    msg.Timestamp,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}

	logger.Named("amqp").Debugw("published change message",
		"topics", topics,
		"exchange", c.exchangeName)

	return nil
}

// Consume hands every change message to handler until ctx is cancelled or
// the broker closes the delivery channel.
func (c *Client) Consume(ctx context.Context, handler func(*ChangeMessage) error) error {
	log := logger.Named("amqp")

	msgs, err := c.channel.Consume(
		c.queueName, // queue
		"",          // consumer
		false,       // auto-ack (we want manual ack)
		true,        // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	log.Infow("started consuming change messages", "queue", c.queueName)

	for {
		select {
		case <-ctx.Done():
			log.Infow("stopping message consumption", "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel closed")
			}

			msg, err := ChangeMessageFromJSON(delivery.Body)
			if err != nil {
				log.Errorw("failed to unmarshal message", "error", err)
				delivery.Nack(false, false) // reject and don't requeue
				continue
			}

			if err := handler(msg); err != nil {
				log.Errorw("failed to handle message", "error", err, "origin", msg.Origin, "topics", msg.Topics)
				delivery.Nack(false, true) // reject and requeue
				continue
			}

			delivery.Ack(false)
		}
	}
}

func (c *Client) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// ConsumeWithRetry redials and resumes consuming after connection failures,
// waiting exponentialBackoff between attempts. dial is called for every
// attempt after the first; it is also the place to resync local state, since
// nothing published during the outage is redelivered.
func ConsumeWithRetry(ctx context.Context, client *Client, dial func() (*Client, error), handler func(*ChangeMessage) error) error {
	log := logger.Named("amqp")
	attempt := 0

	for {
		err := client.Consume(ctx, handler)
		client.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil && !isConnectionError(err) {
			return err
		}

		for {
			wait := exponentialBackoff(attempt)
			log.Warnw("AMQP connection lost, reconnecting", "error", err, "attempt", attempt+1, "wait", wait)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			attempt++

			next, dialErr := dial()
			if dialErr != nil {
				err = dialErr
				continue
			}
			client = next
			attempt = 0
			break
		}
	}
}

// exponentialBackoff returns 1s, 2s, 4s... capped at 30s.
func exponentialBackoff(attempt int) time.Duration {
	if attempt >= 5 {
		return maxBackoff
	}
	d := time.Second << uint(attempt)
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp091.ErrClosed) {
		return true
	}
	msg := err.Error()
	for _, s := range []string{
		"message channel closed",
		"connection refused",
		"connection reset",
		"connection closed",
		"unexpected EOF",
		"broken pipe",
		"use of closed network connection",
		"dial AMQP",
	} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
