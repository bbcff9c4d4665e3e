package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

var ErrPublisherClosed = errors.New("publisher closed")

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher hands events to a background writer goroutine through a
// buffered inbox, so request handlers never wait on the broker. Close drains
// the inbox before closing the writer; events still queued when its context
// ends are dropped and counted in the log.
type KafkaPublisher struct {
	w        messageWriter
	producer string
	logger   *zap.Logger
	now      func() time.Time

	mu     sync.RWMutex
	closed bool
	inbox  chan kafka.Message
	done   chan struct{}

	writeCtx     context.Context
	cancelWrites context.CancelFunc

	closeOnce sync.Once
	closeErr  error
}

func NewKafkaPublisher(brokers []string, topic, producer string, buffer int, logger *zap.Logger) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 5 * time.Second,
		MaxAttempts:  3,
	}
	return newKafkaPublisher(w, producer, buffer, logger)
}

func newKafkaPublisher(w messageWriter, producer string, buffer int, logger *zap.Logger) *KafkaPublisher {
	if buffer <= 0 {
		buffer = 1
	}

	writeCtx, cancel := context.WithCancel(context.Background())

	p := &KafkaPublisher{
		w:            w,
		producer:     producer,
		logger:       logger,
		now:          time.Now,
		inbox:        make(chan kafka.Message, buffer),
		done:         make(chan struct{}),
		writeCtx:     writeCtx,
		cancelWrites: cancel,
	}

	go p.run()

	return p
}

func (p *KafkaPublisher) run() {
	defer close(p.done)

	dropped := 0
	for m := range p.inbox {
		if p.writeCtx.Err() != nil {
			dropped++
			continue
		}
		if err := p.w.WriteMessages(p.writeCtx, m); err != nil {
			p.logger.Warn("write order event",
				zap.String("key", string(m.Key)),
				zap.Error(err))
		}
	}

	if dropped > 0 {
		p.logger.Warn("dropped order events on close", zap.Int("count", dropped))
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event OrderEvent) error {
	env, err := NewEnvelope(p.producer, event, p.now())
	if err != nil {
		return err
	}

	value, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(strconv.FormatInt(event.OrderID, 10)),
		Value: value,
		Time:  env.OccurredAt,
		Headers: []kafka.Header{
			{Key: "x-event-type", Value: []byte(event.Type)},
			{Key: "x-event-version", Value: []byte(strconv.Itoa(envelopeVersion))},
		},
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPublisherClosed
	}

	select {
	case p.inbox <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *KafkaPublisher) Close(ctx context.Context) error {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.inbox)
		p.mu.Unlock()

		var drainErr error
		select {
		case <-p.done:
		case <-ctx.Done():
			drainErr = fmt.Errorf("drain order events: %w", ctx.Err())
			p.cancelWrites()
			<-p.done
		}
		p.cancelWrites()

		p.closeErr = errors.Join(drainErr, p.w.Close())
	})
	return p.closeErr
}
