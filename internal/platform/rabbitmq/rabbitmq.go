package rabbitmq

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	dialTimeout = 5 * time.Second
	heartbeat   = 10 * time.Second
)

// New dials the broker and proves it usable by opening a channel. A later
// broker-side close is logged; consumers and publishers see it through their
// own channels.
func New(ctx context.Context, url, connectionName string, logger *zap.Logger) (*amqp.Connection, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	type result struct {
		conn *amqp.Connection
		err  error
	}
	done := make(chan result, 1)
	go func() {
		props := amqp.NewConnectionProperties()
		props.SetClientConnectionName(connectionName)
		conn, err := amqp.DialConfig(url, amqp.Config{
			Heartbeat:  heartbeat,
			Properties: props,
			Dial:       amqp.DefaultDial(dialTimeout),
		})
		done <- result{conn: conn, err: err}
	}()

	var conn *amqp.Connection
	select {
	case <-ctx.Done():
		go func() {
			if r := <-done; r.conn != nil {
				_ = r.conn.Close()
			}
		}()
		return nil, fmt.Errorf("dial rabbitmq canceled: %w", ctx.Err())
	case r := <-done:
		if r.err != nil {
			return nil, fmt.Errorf("dial rabbitmq failed: %w", r.err)
		}
		conn = r.conn
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open rabbitmq channel failed: %w", err)
	}
	_ = ch.Close()

	closed := conn.NotifyClose(make(chan *amqp.Error, 1))
	go func() {
		if amqpErr, ok := <-closed; ok && amqpErr != nil {
			logger.Error("rabbitmq connection closed", zap.String("reason", amqpErr.Reason), zap.Int("code", amqpErr.Code))
		}
	}()

	logger.Info("rabbitmq connected", zap.String("connection_name", connectionName))
	return conn, nil
}
