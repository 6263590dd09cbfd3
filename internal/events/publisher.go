// Package events publishes message lifecycle events to Kafka for
// downstream consumers (notification fan-out, analytics). Publishing is
// always best-effort: chat operations never fail because a broker is
// unreachable.
package events

import (
	"context"
	"encoding/json"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/ayushgupta1777/f-vite-backend/internal/models"
)

type Publisher struct {
	writer *kafkago.Writer
	log    *zap.SugaredLogger
}

func NewPublisher(brokers []string, topic string, log *zap.SugaredLogger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafkago.RequireOne,
		Async:        true,
	}
	return &Publisher{writer: w, log: log}
}

func (p *Publisher) MessageSent(ctx context.Context, m *models.Message) {
	if p == nil {
		return
	}
	b, err := json.Marshal(m)
	if err != nil {
		return
	}
	msg := kafkago.Message{
		Key:   []byte(m.ConversationID),
		Value: b,
		Time:  time.Now(),
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.log.Warnf("kafka publish: %v", err)
	}
}

func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	return p.writer.Close()
}
