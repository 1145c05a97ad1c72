package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"studybot/internal/platform/rabbitmq"
)

// ErrDiscard tells the consumer to drop a delivery without requeueing it.
var ErrDiscard = errors.New("discard delivery")

type Handler func(ctx context.Context, body []byte) error

// Consumer drains one queue with a fixed number of goroutines. A handler
// error nacks the delivery and requeues it once; ErrDiscard drops it. Work
// cut short by Close is always requeued.
type Consumer struct {
	conn        *amqp.Connection
	ch          *amqp.Channel
	queueName   string
	concurrency int
	handler     Handler
	logger      *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewConsumer(conn *amqp.Connection, queueName string, concurrency int, handler Handler, logger *zap.Logger) *Consumer {
	if concurrency <= 0 {
		concurrency = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Consumer{
		conn:        conn,
		queueName:   queueName,
		concurrency: concurrency,
		handler:     handler,
		logger:      logger.With(zap.String("queue", queueName)),
	}
}

func (c *Consumer) Start(ctx context.Context) error {
	if c.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	ch, err := c.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}
	if err := rabbitmq.DeclareQueue(ch, c.queueName); err != nil {
		_ = ch.Close()
		cancel()
		return err
	}
	if err := ch.Qos(c.concurrency, 0, false); err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("set worker prefetch failed: %w", err)
	}

	deliveries, err := ch.Consume(
		c.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	c.ch = ch
	for i := 0; i < c.concurrency; i++ {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			for {
				select {
				case <-workerCtx.Done():
					return
				case d, ok := <-deliveries:
					if !ok {
						return
					}
					c.dispatch(workerCtx, d)
				}
			}
		}()
	}

	c.logger.Info("worker started", zap.Int("concurrency", c.concurrency))
	return nil
}

func (c *Consumer) dispatch(ctx context.Context, d amqp.Delivery) {
	err := c.handler(ctx, d.Body)
	switch {
	case err == nil:
		_ = d.Ack(false)
	case errors.Is(err, ErrDiscard):
		c.logger.Warn("worker dropped delivery", zap.Error(err))
		_ = d.Nack(false, false)
	case ctx.Err() != nil:
		c.logger.Info("worker stopping, requeue delivery", zap.Error(err))
		_ = d.Nack(false, true)
	default:
		requeue := !d.Redelivered
		c.logger.Error("worker handle delivery failed", zap.Error(err), zap.Bool("requeue", requeue))
		_ = d.Nack(false, requeue)
	}
}

func (c *Consumer) Close() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	if c.ch != nil {
		_ = c.ch.Close()
	}
}
