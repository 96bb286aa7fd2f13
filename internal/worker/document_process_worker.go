// Package worker consumes queued document processing jobs.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"founderos-api/internal/platform/rabbitmq"
)

// Processor runs the document pipeline for one id. Pipeline failures are
// recorded on the document row; a returned error means infrastructure
// trouble and the delivery is requeued.
type Processor interface {
	Process(ctx context.Context, documentID uuid.UUID) error
}

type DocumentProcessWorker struct {
	conn      *amqp.Connection
	processor Processor
	queueName string

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewDocumentProcessWorker(conn *amqp.Connection, processor Processor, queueName string) *DocumentProcessWorker {
	return &DocumentProcessWorker{
		conn:      conn,
		processor: processor,
		queueName: queueName,
	}
}

func (w *DocumentProcessWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}

	_, err = ch.QueueDeclare(
		w.queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("declare worker queue failed: %w", err)
	}

	// One document at a time; extraction and embedding are heavy.
	if err := ch.Qos(1, 0, false); err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("set worker qos failed: %w", err)
	}

	deliveries, err := ch.Consume(
		w.queueName,
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
					return
				}

				var task rabbitmq.ProcessTask
				if err := json.Unmarshal(d.Body, &task); err != nil {
					log.Printf("worker decode process task failed: %v", err)
					_ = d.Nack(false, false)
					continue
				}

				if err := w.processor.Process(workerCtx, task.DocumentID); err != nil {
					log.Printf("worker process document %s failed: %v", task.DocumentID, err)
					_ = d.Nack(false, true)
					continue
				}

				_ = d.Ack(false)
			}
		}
	}()

	return nil
}

func (w *DocumentProcessWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
