package events

import (
	"context"
	"errors"
	"time"

	"resale-market/internal/domain"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

var ErrProducerBusy = errors.New("kafka producer buffer full")

// messageWriter is the subset of *kafka.Writer the producer needs
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaProducer writes events to a topic keyed by recipient, so one user's
// events stay ordered within a partition. Publish only enqueues; a single
// goroutine drains the buffer.
type KafkaProducer struct {
	w       messageWriter
	inbox   chan kafka.Message
	closeCh chan struct{}
	logger  *zap.Logger
}

// NewKafkaProducer creates a producer; call Start before publishing
func NewKafkaProducer(brokers []string, topic string, buf int, logger *zap.Logger) *KafkaProducer {
	return newKafkaProducer(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
	}, buf, logger)
}

func newKafkaProducer(w messageWriter, buf int, logger *zap.Logger) *KafkaProducer {
	return &KafkaProducer{
		w:       w,
		inbox:   make(chan kafka.Message, buf),
		closeCh: make(chan struct{}),
		logger:  logger,
	}
}

// Start runs the write loop until ctx is cancelled, then flushes what is left
func (p *KafkaProducer) Start(ctx context.Context) {
	go func() {
		defer close(p.closeCh)
		for {
			select {
			case <-ctx.Done():
				p.drain()
				return
			case m := <-p.inbox:
				p.write(m)
			}
		}
	}()
}

func (p *KafkaProducer) drain() {
	for {
		select {
		case m := <-p.inbox:
			p.write(m)
		default:
			if err := p.w.Close(); err != nil {
				p.logger.Warn("Failed to close kafka writer", zap.Error(err))
			}
			return
		}
	}
}

func (p *KafkaProducer) write(m kafka.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := p.w.WriteMessages(ctx, m); err != nil {
		p.logger.Warn("Failed to write kafka message",
			zap.ByteString("key", m.Key),
			zap.Error(err),
		)
	}
}

// Message builds the kafka record for an event
func Message(event domain.Event) (kafka.Message, error) {
	body, err := Encode(event)
	if err != nil {
		return kafka.Message{}, err
	}

	return kafka.Message{
		Key:   []byte(event.UserID.String()),
		Value: body,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
			{Key: "event_id", Value: []byte(event.ID.String())},
		},
	}, nil
}

// Publish enqueues without blocking; a full buffer is reported as an error
func (p *KafkaProducer) Publish(ctx context.Context, event domain.Event) error {
	m, err := Message(event)
	if err != nil {
		return err
	}

	select {
	case p.inbox <- m:
		return nil
	default:
		return ErrProducerBusy
	}
}

// WaitClosed blocks until the write loop has flushed and exited
func (p *KafkaProducer) WaitClosed() { <-p.closeCh }
