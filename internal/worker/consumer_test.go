package worker

import (
	"context"
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
)

type ackRecord struct {
	acked    bool
	nacked   bool
	requeued bool
}

func (a *ackRecord) Ack(uint64, bool) error { a.acked = true; return nil }

func (a *ackRecord) Nack(_ uint64, _ bool, requeue bool) error {
	a.nacked = true
	a.requeued = requeue
	return nil
}

func (a *ackRecord) Reject(_ uint64, requeue bool) error {
	a.nacked = true
	a.requeued = requeue
	return nil
}

func TestConsumerDispatch(t *testing.T) {
	canceled, cancel := context.WithCancel(context.Background())
	cancel()

	cases := []struct {
		name        string
		ctx         context.Context
		err         error
		redelivered bool
		want        ackRecord
	}{
		{name: "success acks", ctx: context.Background(), want: ackRecord{acked: true}},
		{name: "discard drops", ctx: context.Background(), err: ErrDiscard, want: ackRecord{nacked: true}},
		{name: "first failure requeues", ctx: context.Background(), err: errors.New("db down"), want: ackRecord{nacked: true, requeued: true}},
		{name: "second failure drops", ctx: context.Background(), err: errors.New("db down"), redelivered: true, want: ackRecord{nacked: true}},
		{name: "shutdown requeues redelivered work", ctx: canceled, err: context.Canceled, redelivered: true, want: ackRecord{nacked: true, requeued: true}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := &ackRecord{}
			c := NewConsumer(nil, "q", 1, func(context.Context, []byte) error { return tc.err }, nil)
			c.dispatch(tc.ctx, amqp.Delivery{Acknowledger: rec, DeliveryTag: 1, Redelivered: tc.redelivered})
			assert.Equal(t, tc.want, *rec)
		})
	}
}
