package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/boddenberg/zenith-finance-go/internal/domain"
	"github.com/boddenberg/zenith-finance-go/internal/port"
)

var (
	_ port.EventPublisher = (*Publisher)(nil)
	_ port.EventPublisher = Noop{}
)

type published struct {
	exchange, key string
	msg           amqp091.Publishing
}

type fakeChannel struct {
	exchangeKind string
	publishErr   error
	published    []published
	bound        string
	deliveries   chan amqp091.Delivery
	closed       bool
}

func (f *fakeChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error {
	f.exchangeKind = kind
	return nil
}

func (f *fakeChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp091.Table) (amqp091.Queue, error) {
	return amqp091.Queue{Name: "amq.gen-1"}, nil
}

func (f *fakeChannel) QueueBind(name, key, exchange string, noWait bool, args amqp091.Table) error {
	f.bound = key
	return nil
}

func (f *fakeChannel) Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp091.Table) (<-chan amqp091.Delivery, error) {
	return f.deliveries, nil
}

func (f *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, published{exchange: exchange, key: key, msg: msg})
	return nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func TestPublish(t *testing.T) {
	ch := &fakeChannel{}
	p, err := newPublisher(ch, "zenith.ledger", "ledger", zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "topic", ch.exchangeKind)

	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, p.Publish(context.Background(), domain.LedgerEvent{
		Kind: domain.EventAccountDeleted, EntityID: "a1", At: at,
	}))

	require.Len(t, ch.published, 1)
	got := ch.published[0]
	assert.Equal(t, "zenith.ledger", got.exchange)
	assert.Equal(t, "ledger.account.deleted", got.key)
	assert.Equal(t, amqp091.Persistent, got.msg.DeliveryMode)

	var ev domain.LedgerEvent
	require.NoError(t, json.Unmarshal(got.msg.Body, &ev))
	assert.Equal(t, "a1", ev.EntityID)
	assert.True(t, at.Equal(ev.At))
}

func TestPublish_Error(t *testing.T) {
	ch := &fakeChannel{publishErr: errors.New("channel closed")}
	p, err := newPublisher(ch, "x", "ledger", zap.NewNop())
	require.NoError(t, err)

	err = p.Publish(context.Background(), domain.LedgerEvent{Kind: domain.EventTransactionCreated})
	assert.ErrorContains(t, err, "transaction.created")
}

func TestTail(t *testing.T) {
	ch := &fakeChannel{deliveries: make(chan amqp091.Delivery, 2)}
	p, err := newPublisher(ch, "x", "ledger", zap.NewNop())
	require.NoError(t, err)

	ch.deliveries <- amqp091.Delivery{Body: []byte("garbage")}
	ch.deliveries <- amqp091.Delivery{Body: []byte(`{"kind":"transaction.updated","entity_id":"t1","at":"2024-05-01T10:00:00Z"}`)}

	ctx, cancel := context.WithCancel(context.Background())
	var got []domain.LedgerEvent
	err = p.Tail(ctx, func(ev domain.LedgerEvent) {
		got = append(got, ev)
		cancel()
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "ledger.#", ch.bound)
	require.Len(t, got, 1)
	assert.Equal(t, domain.EventTransactionUpdated, got[0].Kind)
}

func TestClose(t *testing.T) {
	ch := &fakeChannel{}
	p, err := newPublisher(ch, "x", "ledger", zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, p.Close())
	assert.True(t, ch.closed)
}
