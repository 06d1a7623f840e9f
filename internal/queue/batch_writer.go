package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// MessageHandler processes one consumed message. Returning an error skips the
// commit so the message is redelivered.
type MessageHandler func(msg kafka.Message) error

// messageSource is the consumer surface the batch writer needs. Satisfied by
// *Consumer.
type messageSource interface {
	Consume(ctx context.Context) (kafka.Message, error)
	Commit(ctx context.Context, msg kafka.Message) error
}

// BatchWriter consumes one topic and hands messages to a handler in batches,
// committing offsets after successful processing. Used by the persistence
// service for each of the reading, alert and control-log streams.
type BatchWriter struct {
	name          string
	consumer      messageSource
	handler       MessageHandler
	batchSize     int
	flushInterval time.Duration
	stopCh        chan struct{}
	cancel        context.CancelFunc
	wg            sync.WaitGroup
}

// NewBatchWriter creates a batch writer for one stream.
func NewBatchWriter(name string, consumer messageSource, handler MessageHandler, batchSize int, flushInterval time.Duration) *BatchWriter {
	return &BatchWriter{
		name:          name,
		consumer:      consumer,
		handler:       handler,
		batchSize:     batchSize,
		flushInterval: flushInterval,
		stopCh:        make(chan struct{}),
	}
}

// Start begins consuming and processing.
func (bw *BatchWriter) Start(ctx context.Context) {
	ctx, bw.cancel = context.WithCancel(ctx)

	msgChan := make(chan kafka.Message, 10)
	bw.wg.Add(2)
	go bw.consumeLoop(ctx, msgChan)
	go bw.run(msgChan)
}

// Stop stops the batch writer gracefully, flushing any pending batch. The
// consume context is cancelled so the fetch goroutine unblocks and exits
// instead of staying parked in the broker read.
func (bw *BatchWriter) Stop() {
	close(bw.stopCh)
	if bw.cancel != nil {
		bw.cancel()
	}
	bw.wg.Wait()
}

func (bw *BatchWriter) consumeLoop(ctx context.Context, msgChan chan<- kafka.Message) {
	defer bw.wg.Done()

	for {
		msg, err := bw.consumer.Consume(ctx)
		if err != nil {
			select {
			case <-bw.stopCh:
				return
			default:
				fmt.Printf("[%s] Consumer error: %v\n", bw.name, err)
				continue
			}
		}
		select {
		case msgChan <- msg:
		case <-bw.stopCh:
			return
		}
	}
}

func (bw *BatchWriter) run(msgChan <-chan kafka.Message) {
	defer bw.wg.Done()

	var batch []kafka.Message
	ticker := time.NewTicker(bw.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-bw.stopCh:
			// Drain what the consume loop already handed off, then flush.
			for {
				select {
				case msg := <-msgChan:
					batch = append(batch, msg)
					continue
				default:
				}
				break
			}
			if len(batch) > 0 {
				bw.flush(context.Background(), batch)
			}
			return

		case <-ticker.C:
			if len(batch) > 0 {
				bw.flush(context.Background(), batch)
				batch = nil
			}

		case msg := <-msgChan:
			batch = append(batch, msg)
			if len(batch) >= bw.batchSize {
				bw.flush(context.Background(), batch)
				batch = nil
			}
		}
	}
}

func (bw *BatchWriter) flush(ctx context.Context, batch []kafka.Message) {
	successCount := 0
	for _, msg := range batch {
		if err := bw.handler(msg); err != nil {
			fmt.Printf("[%s] Failed to process message: %v\n", bw.name, err)
			continue
		}
		successCount++

		// Commit offset after successful processing
		if err := bw.consumer.Commit(ctx, msg); err != nil {
			fmt.Printf("[%s] Failed to commit offset: %v\n", bw.name, err)
		}
	}

	fmt.Printf("[%s] Flushed batch of %d messages\n", bw.name, successCount)
}
