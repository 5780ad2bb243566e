// Where: internal/trigger/dispatcher.go
// What: Maps object-created notifications to Ledger Handler invocations.
// Why: Apply the subscription filter and keep each record's failure local to that record.
package trigger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/poruru-code/invoice-autorecord/internal/domain/event"
	"github.com/poruru-code/invoice-autorecord/internal/domain/invoice"
	"github.com/poruru-code/invoice-autorecord/internal/handler"
	"github.com/poruru-code/invoice-autorecord/internal/logging"
)

// Dispatcher is stateless: no ordering, locking or retry happens here.
// Redelivery is the notification substrate's job.
type Dispatcher struct {
	Filter  event.Filter
	Handler handler.Handler
	Logger  *slog.Logger
}

// NewDispatcher wires a filter to a handler.
func NewDispatcher(filter event.Filter, h handler.Handler, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Dispatcher{Filter: filter, Handler: h, Logger: logger}
}

// Result summarizes one dispatch.
type Result struct {
	Received int
	Admitted int
	Failed   int
}

// Dispatch invokes the handler once per admitted record. Records the filter
// rejects are dropped without a trace. Failures are joined and returned so
// the delivery substrate retries the batch.
func (d *Dispatcher) Dispatch(ctx context.Context, payload events.S3Event) error {
	_, err := d.DispatchWithResult(ctx, payload, requestID(ctx))
	return err
}

// DispatchWithResult is Dispatch with an explicit request id and counters.
func (d *Dispatcher) DispatchWithResult(ctx context.Context, payload events.S3Event, reqID string) (Result, error) {
	if d == nil || d.Handler == nil {
		return Result{}, errors.New("dispatcher has no handler")
	}
	result := Result{Received: len(payload.Records)}
	var errs []error
	for i, record := range payload.Records {
		n, err := event.FromS3Record(record)
		if err != nil {
			if !d.admitsRaw(record) {
				continue
			}
			result.Failed++
			errs = append(errs, invoice.Permanent(record.S3.Object.Key, fmt.Sprintf("record %d malformed", i), err))
			continue
		}
		if !d.Filter.Admit(n) {
			continue
		}
		result.Admitted++
		inv := handler.Invocation{
			Bucket:    n.Bucket,
			Key:       n.Key,
			EventTime: n.EventTime,
			RequestID: reqID,
		}
		if err := d.Handler.Handle(ctx, inv); err != nil {
			result.Failed++
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return result, nil
	}
	// S3 sends one record per event; returning it unjoined keeps its type
	// name as the Lambda errorType.
	joined := errs[0]
	if len(errs) > 1 {
		joined = errors.Join(errs...)
	}
	d.Logger.ErrorContext(ctx, "dispatch failed",
		slog.Int("received", result.Received),
		slog.Int("admitted", result.Admitted),
		slog.Int("failed", result.Failed),
		slog.String("kind", string(invoice.Classify(joined))),
	)
	return result, joined
}

// admitsRaw applies the filter to a record that could not be decoded, using
// the key as sent. Records it rejects are dropped like any other.
func (d *Dispatcher) admitsRaw(record events.S3EventRecord) bool {
	return event.IsObjectCreated(record.EventName) && d.Filter.MatchKey(record.S3.Object.Key)
}

// HandleLambda is the function passed to lambda.Start.
func (d *Dispatcher) HandleLambda(ctx context.Context, payload events.S3Event) error {
	return d.Dispatch(ctx, payload)
}

func requestID(ctx context.Context) string {
	if lc, ok := lambdacontext.FromContext(ctx); ok {
		return lc.AwsRequestID
	}
	return ""
}
