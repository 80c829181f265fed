package queue

import (
	"context"
	"errors"
	"log"
	"time"
)

type Transport interface {
	PopBatch(ctx context.Context, n int) ([]string, error)
	Requeue(ctx context.Context, bodies []string) error
	DeadLetter(ctx context.Context, body string) error
}

type Archiver interface {
	Store(ctx context.Context, receivedAt time.Time, body []byte) (string, error)
}

type ConsumerConfig struct {
	BatchSize    int
	PollInterval time.Duration
	RequeueDelay time.Duration
}

// Consumer polls the notification feed and feeds batches to the dispatcher.
type Consumer struct {
	transport  Transport
	dispatcher *Dispatcher
	archive    Archiver // optional
	cfg        ConsumerConfig
}

func NewConsumer(transport Transport, dispatcher *Dispatcher, archive Archiver, cfg ConsumerConfig) *Consumer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	return &Consumer{transport: transport, dispatcher: dispatcher, archive: archive, cfg: cfg}
}

// Run polls until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) {
	for {
		if err := c.poll(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("[consumer] poll error: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(c.cfg.PollInterval):
		}
	}
}

func (c *Consumer) poll(ctx context.Context) error {
	bodies, err := c.transport.PopBatch(ctx, c.cfg.BatchSize)
	if err != nil {
		return err
	}
	if len(bodies) == 0 {
		return nil
	}

	if c.archive != nil {
		now := time.Now()
		for _, b := range bodies {
			if _, err := c.archive.Store(ctx, now, []byte(b)); err != nil {
				log.Printf("[consumer] archive failed: %v", err)
			}
		}
	}

	records := make([]Record, len(bodies))
	for i, b := range bodies {
		records[i] = Record{Body: b}
	}

	err = c.dispatcher.HandleBatch(ctx, records)
	if err == nil {
		return nil
	}

	var decodeErr *DecodeError
	if errors.As(err, &decodeErr) {
		// Poison record: park it and redeliver only what came after it.
		log.Printf("[consumer] dead-lettering record: %v", decodeErr)
		if dlqErr := c.transport.DeadLetter(ctx, bodies[decodeErr.Index]); dlqErr != nil {
			log.Printf("[consumer] dead letter failed, re-queueing instead: %v", dlqErr)
			return c.transport.Requeue(ctx, bodies[decodeErr.Index:])
		}
		if rest := bodies[decodeErr.Index+1:]; len(rest) > 0 {
			return c.transport.Requeue(ctx, rest)
		}
		return nil
	}

	// Reconciliation defect: redeliver the failed record and everything after
	// it, after a pause so a broken upstream is not hammered.
	log.Printf("[consumer] batch failed, re-queueing: %v", err)
	failedFrom := 0
	var recordErr *RecordError
	if errors.As(err, &recordErr) {
		failedFrom = recordErr.Index
	}
	if requeueErr := c.transport.Requeue(ctx, bodies[failedFrom:]); requeueErr != nil {
		return requeueErr
	}
	if c.cfg.RequeueDelay > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(c.cfg.RequeueDelay):
		}
	}
	return nil
}
