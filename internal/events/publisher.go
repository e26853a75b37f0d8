// Package events streams confirmed ledger changes to Kafka.
package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/abbasifarasat36-dev/globaldragon/internal/domain"
	"github.com/abbasifarasat36-dev/globaldragon/internal/logger"
	"github.com/abbasifarasat36-dev/globaldragon/internal/metrics"

	"github.com/segmentio/kafka-go"
)

const (
	queueSize    = 1024
	writeTimeout = 5 * time.Second
)

// MessageWriter is the part of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher queues events and writes them from a single goroutine so the
// ledger never waits on the broker. When the queue is full events are
// dropped and counted.
type Publisher struct {
	w     MessageWriter
	queue chan domain.LedgerEvent
	done  chan struct{}
	once  sync.Once
}

// NewKafkaWriter builds the writer for brokers and topic.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		WriteTimeout: 10 * time.Second,
	}
}

func NewPublisher(w MessageWriter) *Publisher {
	p := &Publisher{
		w:     w,
		queue: make(chan domain.LedgerEvent, queueSize),
		done:  make(chan struct{}),
	}
	go p.run()
	return p
}

// Publish implements reward.EventSink. Events are keyed by user id so one
// user's events stay ordered within a partition.
func (p *Publisher) Publish(_ context.Context, ev domain.LedgerEvent) {
	if p == nil {
		return
	}
	select {
	case p.queue <- ev:
	default:
		metrics.EventsDropped.Inc()
		logger.Warn("ledger event queue full, dropping", "type", ev.Type, "user_id", ev.UserID)
	}
}

func (p *Publisher) run() {
	defer close(p.done)
	for ev := range p.queue {
		body, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err = p.w.WriteMessages(ctx, kafka.Message{Key: []byte(ev.UserID), Value: body, Time: ev.At})
		cancel()
		if err != nil {
			metrics.EventsDropped.Inc()
			logger.Error("publish ledger event failed", "type", ev.Type, "user_id", ev.UserID, "error", err)
			continue
		}
		metrics.EventsPublished.WithLabelValues(ev.Type).Inc()
	}
}

// Close drains the queue, then closes the writer.
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	p.once.Do(func() { close(p.queue) })
	<-p.done
	return p.w.Close()
}
