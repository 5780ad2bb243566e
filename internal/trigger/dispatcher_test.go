package trigger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/poruru-code/invoice-autorecord/internal/domain/event"
	"github.com/poruru-code/invoice-autorecord/internal/domain/invoice"
	"github.com/poruru-code/invoice-autorecord/internal/handler"
)

type recordingHandler struct {
	mu    sync.Mutex
	calls []handler.Invocation
	fail  map[string]error
}

func (r *recordingHandler) Handle(_ context.Context, inv handler.Invocation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, inv)
	return r.fail[inv.Key]
}

var pdfFilter = event.Filter{Suffix: ".pdf"}

func payload(keys ...string) events.S3Event {
	at := time.Date(2024, 1, 31, 9, 0, 0, 0, time.UTC)
	var out events.S3Event
	for _, key := range keys {
		out.Records = append(out.Records, event.NewS3Record("himawari-accounting", key, 10, at))
	}
	return out
}

func TestDispatchInvokesOncePerAdmittedRecord(t *testing.T) {
	h := &recordingHandler{}
	d := NewDispatcher(pdfFilter, h, nil)

	if err := d.Dispatch(context.Background(), payload("invoices/2024-01-acme.pdf")); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if len(h.calls) != 1 {
		t.Fatalf("expected one invocation, got %d", len(h.calls))
	}
	got := h.calls[0]
	if got.Key != "invoices/2024-01-acme.pdf" || got.Bucket != "himawari-accounting" {
		t.Fatalf("unexpected invocation: %+v", got)
	}
	if got.EventTime.IsZero() {
		t.Fatalf("expected event time to be carried")
	}
}

func TestDispatchDropsNonMatchingSilently(t *testing.T) {
	h := &recordingHandler{}
	d := NewDispatcher(pdfFilter, h, nil)

	result, err := d.DispatchWithResult(context.Background(), payload("readme.txt", "scan.PDF"), "")
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if len(h.calls) != 0 {
		t.Fatalf("expected zero invocations, got %d", len(h.calls))
	}
	if result.Received != 2 || result.Admitted != 0 || result.Failed != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestDispatchDecodesKeys(t *testing.T) {
	h := &recordingHandler{}
	d := NewDispatcher(pdfFilter, h, nil)
	record := event.NewS3Record("b", "x", 1, time.Now())
	record.S3.Object.Key = "invoices/20240131_Acme+Corp_100.pdf"

	if err := d.Dispatch(context.Background(), events.S3Event{Records: []events.S3EventRecord{record}}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if h.calls[0].Key != "invoices/20240131_Acme Corp_100.pdf" {
		t.Fatalf("unexpected key: %q", h.calls[0].Key)
	}
}

func TestDispatchKeepsFailuresLocal(t *testing.T) {
	boom := invoice.Transient("fetch", "a.pdf", errors.New("gone"))
	h := &recordingHandler{fail: map[string]error{"a.pdf": boom}}
	d := NewDispatcher(pdfFilter, h, nil)

	result, err := d.DispatchWithResult(context.Background(), payload("a.pdf", "b.pdf"), "")
	if err == nil {
		t.Fatalf("expected error")
	}
	if len(h.calls) != 2 {
		t.Fatalf("expected both records handled, got %d", len(h.calls))
	}
	if result.Failed != 1 || result.Admitted != 2 {
		t.Fatalf("unexpected result: %+v", result)
	}
	var transient *invoice.TransientError
	if !errors.As(err, &transient) {
		t.Fatalf("expected the handler error to be returned unjoined, got %T", err)
	}
}

func TestDispatchJoinsMultipleFailures(t *testing.T) {
	h := &recordingHandler{fail: map[string]error{
		"a.pdf": invoice.Transient("fetch", "a.pdf", errors.New("gone")),
		"b.pdf": invoice.Permanent("b.pdf", "not a PDF", nil),
	}}
	d := NewDispatcher(pdfFilter, h, nil)

	err := d.Dispatch(context.Background(), payload("a.pdf", "b.pdf"))
	if !invoice.IsTransient(err) || !invoice.IsPermanent(err) {
		t.Fatalf("expected both kinds in the joined error, got %v", err)
	}
}

func TestDispatchRejectsRecordWithoutBucket(t *testing.T) {
	h := &recordingHandler{}
	d := NewDispatcher(pdfFilter, h, nil)
	record := event.NewS3Record("", "a.pdf", 1, time.Now())

	err := d.Dispatch(context.Background(), events.S3Event{Records: []events.S3EventRecord{record}})
	if !invoice.IsPermanent(err) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if len(h.calls) != 0 {
		t.Fatalf("handler must not be called")
	}
}

func TestDispatchDropsUndecodableKeyOutsideFilter(t *testing.T) {
	h := &recordingHandler{}
	d := NewDispatcher(pdfFilter, h, nil)
	record := event.NewS3Record("b", "x", 1, time.Now())
	record.S3.Object.Key = "notes%zz.txt"

	result, err := d.DispatchWithResult(context.Background(), events.S3Event{Records: []events.S3EventRecord{record}}, "")
	if err != nil {
		t.Fatalf("non-matching record must be dropped, got %v", err)
	}
	if result.Failed != 0 || len(h.calls) != 0 {
		t.Fatalf("unexpected result: %+v calls=%d", result, len(h.calls))
	}

	record.S3.Object.Key = "bad%zz.pdf"
	if err := d.Dispatch(context.Background(), events.S3Event{Records: []events.S3EventRecord{record}}); !invoice.IsPermanent(err) {
		t.Fatalf("expected permanent error for a matching key, got %v", err)
	}
}

func TestDispatchDropsRecordWithoutEventName(t *testing.T) {
	h := &recordingHandler{}
	d := NewDispatcher(pdfFilter, h, nil)
	record := event.NewS3Record("b", "x.pdf", 1, time.Now())
	record.EventName = ""

	if err := d.Dispatch(context.Background(), events.S3Event{Records: []events.S3EventRecord{record}}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if len(h.calls) != 0 {
		t.Fatalf("expected zero invocations, got %d", len(h.calls))
	}
}

func TestHandleLambdaPassesRequestID(t *testing.T) {
	h := &recordingHandler{}
	d := NewDispatcher(pdfFilter, h, nil)
	ctx := lambdacontext.NewContext(context.Background(), &lambdacontext.LambdaContext{AwsRequestID: "req-42"})

	if err := d.HandleLambda(ctx, payload("a.pdf")); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if h.calls[0].RequestID != "req-42" {
		t.Fatalf("unexpected request id: %q", h.calls[0].RequestID)
	}
}

func TestDispatchWithoutHandlerFails(t *testing.T) {
	var d *Dispatcher
	if _, err := d.DispatchWithResult(context.Background(), payload("a.pdf"), ""); err == nil {
		t.Fatalf("expected error")
	}
}
