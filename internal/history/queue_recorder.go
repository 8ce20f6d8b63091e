package history

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"groundedchat/internal/rag"
)

const publishTimeout = 3 * time.Second

// QueueRecorder publishes history records to a durable queue; PersistWorker
// stores them.
type QueueRecorder struct {
	conn      *amqp.Connection
	queueName string
}

func NewQueueRecorder(conn *amqp.Connection, queueName string) *QueueRecorder {
	return &QueueRecorder{conn: conn, queueName: queueName}
}

func (p *QueueRecorder) RecordHistory(ctx context.Context, rec rag.HistoryRecord) error {
	payload, err := Encode(rec)
	if err != nil {
		return err
	}

	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open rabbitmq channel failed: %w", err)
	}
	defer ch.Close()

	// Publishing outlives request cancellation.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := ch.PublishWithContext(pubCtx, "", p.queueName, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		Type:         "chat.history",
		Body:         payload,
	}); err != nil {
		return fmt.Errorf("publish history record failed: %w", err)
	}
	return nil
}
