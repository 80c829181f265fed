package queue

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"

	"mandate-reconciler/internal/domain"
)

// Record is one opaque message pulled off the notification feed.
type Record struct {
	Body string
}

// DecodeError marks a record whose body is not a valid event payload. The
// consumer routes such records to the dead letter list instead of redelivering
// them forever.
type DecodeError struct {
	Index int
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode record %d: %v", e.Index, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// RecordError marks the record whose reconciliation failed, so the consumer
// can redeliver from that point.
type RecordError struct {
	Index int
	Err   error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("record %d: %v", e.Index, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }

type Handler interface {
	Reconcile(ctx context.Context, event domain.MandateEvent, raw []byte) error
}

// Dispatcher decodes batched records and routes each to the reconciler,
// strictly in order. The first failing record aborts the batch; later records
// stay unprocessed so the transport can redeliver them.
type Dispatcher struct {
	handler Handler
}

func NewDispatcher(handler Handler) *Dispatcher {
	return &Dispatcher{handler: handler}
}

func (d *Dispatcher) HandleBatch(ctx context.Context, records []Record) error {
	for i, rec := range records {
		raw := []byte(rec.Body)

		var event domain.MandateEvent
		if err := json.Unmarshal(raw, &event); err != nil {
			return &DecodeError{Index: i, Err: err}
		}
		if err := d.handler.Reconcile(ctx, event, raw); err != nil {
			return &RecordError{Index: i, Err: err}
		}
	}
	return nil
}
