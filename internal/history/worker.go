package history

import (
	"context"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"groundedchat/internal/platform/logger"
)

// PersistWorker consumes queued history records and writes them to the database.
type PersistWorker struct {
	conn      *amqp.Connection
	recorder  *DBRecorder
	queueName string
	prefetch  int
	log       *logger.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewPersistWorker(conn *amqp.Connection, recorder *DBRecorder, queueName string, log *logger.Logger) *PersistWorker {
	if log == nil {
		log = logger.Nop()
	}
	return &PersistWorker{
		conn:      conn,
		recorder:  recorder,
		queueName: queueName,
		prefetch:  16,
		log:       log.With("component", "history.PersistWorker", "queue", queueName),
	}
}

func (w *PersistWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	ch, err := w.conn.Channel()
	if err != nil {
		return fmt.Errorf("open worker channel failed: %w", err)
	}
	if _, err := ch.QueueDeclare(w.queueName, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return fmt.Errorf("declare worker queue failed: %w", err)
	}
	if err := ch.Qos(w.prefetch, 0, false); err != nil {
		_ = ch.Close()
		return fmt.Errorf("set worker qos failed: %w", err)
	}
	deliveries, err := ch.Consume(w.queueName, "", false, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					w.log.Warn("delivery channel closed")
					return
				}
				w.handle(workerCtx, d)
			}
		}
	}()

	w.log.Info("history persist worker started")
	return nil
}

func (w *PersistWorker) handle(ctx context.Context, d amqp.Delivery) {
	rec, err := Decode(d.Body)
	if err != nil {
		w.log.Warn("drop undecodable history record", "error", err, "message_id", d.MessageId)
		_ = d.Nack(false, false)
		return
	}
	if err := w.recorder.RecordHistory(ctx, rec); err != nil {
		// One retry through the broker, then drop.
		requeue := !d.Redelivered
		w.log.Error("persist history record failed", "error", err, "message_id", d.MessageId, "requeue", requeue)
		_ = d.Nack(false, requeue)
		return
	}
	_ = d.Ack(false)
}

func (w *PersistWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
