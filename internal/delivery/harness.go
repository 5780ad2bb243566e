// Where: internal/delivery/harness.go
// What: Fake notification substrate with at-least-once, unordered delivery.
// Why: Exercise handler idempotency under the redelivery and reordering the real substrate may produce.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/google/uuid"
	"github.com/poruru-code/invoice-autorecord/internal/domain/event"
	"github.com/poruru-code/invoice-autorecord/internal/domain/invoice"
	"github.com/poruru-code/invoice-autorecord/internal/logging"
	"golang.org/x/sync/errgroup"
)

// DefaultMaxAttempts matches asynchronous Lambda invocation: one attempt plus
// two retries.
const DefaultMaxAttempts = 3

// Target receives one event payload per attempt. Dispatcher.HandleLambda
// satisfies it.
type Target func(ctx context.Context, payload events.S3Event) error

// Harness delivers payloads the way the notification substrate is allowed
// to: every payload at least once, copies possibly duplicated, in any order,
// concurrently, and retried until MaxAttempts before it is dead-lettered.
type Harness struct {
	Target Target
	// MaxAttempts per delivered copy, including the first. Zero means DefaultMaxAttempts.
	MaxAttempts int
	// Duplicates is the number of extra copies of each payload.
	Duplicates int
	// Shuffle randomizes delivery order using Seed.
	Shuffle bool
	Seed    uint64
	// Concurrency bounds parallel deliveries. Zero or less means sequential.
	Concurrency int
	// StopOnPermanent dead-letters a copy on its first permanent failure.
	// Lambda itself retries regardless of error type; this models a
	// destination that inspects errorType.
	StopOnPermanent bool
	// RetryDelay is slept between attempts.
	RetryDelay time.Duration
	Logger     *slog.Logger
}

// DeadLetter is a copy that exhausted its attempts.
type DeadLetter struct {
	Payload  events.S3Event
	Keys     []string
	Copy     int
	Attempts int
	Kind     invoice.Kind
	Err      error
}

// Report summarizes a Deliver run.
type Report struct {
	Copies      int
	Attempts    int
	Succeeded   int
	Retried     int
	DeadLetters []DeadLetter
}

type copyRef struct {
	payload events.S3Event
	index   int
	copy    int
}

// Deliver runs every payload through Target and returns what happened. The
// error is non-nil only when ctx ends the run early.
func (h *Harness) Deliver(ctx context.Context, payloads []events.S3Event) (Report, error) {
	if h == nil || h.Target == nil {
		return Report{}, errors.New("harness has no target")
	}
	logger := h.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	copies := h.plan(payloads)
	var (
		mu     sync.Mutex
		report = Report{Copies: len(copies)}
	)

	group, gctx := errgroup.WithContext(ctx)
	limit := h.Concurrency
	if limit <= 0 {
		limit = 1
	}
	group.SetLimit(limit)

	for _, ref := range copies {
		group.Go(func() error {
			attempts, err := h.deliverCopy(gctx, ref, logger)
			if ctxErr := gctx.Err(); ctxErr != nil {
				return ctxErr
			}
			mu.Lock()
			defer mu.Unlock()
			report.Attempts += attempts
			if attempts > 1 {
				report.Retried++
			}
			if err == nil {
				report.Succeeded++
				return nil
			}
			report.DeadLetters = append(report.DeadLetters, DeadLetter{
				Payload:  ref.payload,
				Keys:     payloadKeys(ref.payload),
				Copy:     ref.copy,
				Attempts: attempts,
				Kind:     invoice.Classify(err),
				Err:      err,
			})
			logger.WarnContext(gctx, "dead-lettered",
				slog.Any("keys", payloadKeys(ref.payload)),
				slog.Int("attempts", attempts),
				slog.Any("error", err),
			)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return report, fmt.Errorf("delivery interrupted: %w", err)
	}
	sort.Slice(report.DeadLetters, func(i, j int) bool {
		a, b := report.DeadLetters[i], report.DeadLetters[j]
		if fmt.Sprint(a.Keys) != fmt.Sprint(b.Keys) {
			return fmt.Sprint(a.Keys) < fmt.Sprint(b.Keys)
		}
		return a.Copy < b.Copy
	})
	return report, nil
}

func (h *Harness) plan(payloads []events.S3Event) []copyRef {
	dup := h.Duplicates
	if dup < 0 {
		dup = 0
	}
	copies := make([]copyRef, 0, len(payloads)*(dup+1))
	for i, payload := range payloads {
		for c := 0; c <= dup; c++ {
			copies = append(copies, copyRef{payload: payload, index: i, copy: c})
		}
	}
	if h.Shuffle {
		rng := rand.New(rand.NewPCG(h.Seed, h.Seed^0x9e3779b97f4a7c15))
		rng.Shuffle(len(copies), func(i, j int) { copies[i], copies[j] = copies[j], copies[i] })
	}
	return copies
}

func (h *Harness) deliverCopy(ctx context.Context, ref copyRef, logger *slog.Logger) (int, error) {
	maxAttempts := h.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return attempt - 1, err
		}
		reqCtx := lambdacontext.NewContext(ctx, &lambdacontext.LambdaContext{AwsRequestID: uuid.NewString()})
		lastErr = h.Target(reqCtx, ref.payload)
		if lastErr == nil {
			return attempt, nil
		}
		logger.DebugContext(ctx, "attempt failed",
			slog.Int("payload", ref.index),
			slog.Int("copy", ref.copy),
			slog.Int("attempt", attempt),
			slog.Any("error", lastErr),
		)
		if h.StopOnPermanent && invoice.Classify(lastErr) == invoice.KindPermanent {
			return attempt, lastErr
		}
		if attempt < maxAttempts && h.RetryDelay > 0 {
			timer := time.NewTimer(h.RetryDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return attempt, ctx.Err()
			case <-timer.C:
			}
		}
	}
	return maxAttempts, lastErr
}

func payloadKeys(payload events.S3Event) []string {
	keys := make([]string, 0, len(payload.Records))
	for _, r := range payload.Records {
		key, err := event.DecodeKey(r.S3.Object.Key)
		if err != nil {
			key = r.S3.Object.Key
		}
		keys = append(keys, key)
	}
	return keys
}

// Single wraps one record as its own payload, the way S3 sends them.
func Single(records ...events.S3EventRecord) []events.S3Event {
	out := make([]events.S3Event, 0, len(records))
	for _, r := range records {
		out = append(out, events.S3Event{Records: []events.S3EventRecord{r}})
	}
	return out
}
