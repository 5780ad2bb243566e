// Where: internal/handler/handler.go
// What: Ledger Handler contract and its invoice-recording implementation.
// Why: Record each uploaded invoice exactly once even when notifications repeat or reorder.
package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/poruru-code/invoice-autorecord/internal/domain/invoice"
	"github.com/poruru-code/invoice-autorecord/internal/infra/ledger"
	"github.com/poruru-code/invoice-autorecord/internal/infra/objectstore"
	"github.com/poruru-code/invoice-autorecord/internal/logging"
	"github.com/poruru-code/invoice-autorecord/internal/meta"
)

// Invocation names one object to process. EventTime is informational only.
type Invocation struct {
	Bucket    string
	Key       string
	EventTime time.Time
	RequestID string
}

// Handler processes one invocation. Returned errors are either
// *invoice.TransientError or *invoice.PermanentError.
type Handler interface {
	Handle(ctx context.Context, inv Invocation) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, inv Invocation) error

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, inv Invocation) error { return f(ctx, inv) }

// Config controls optional behaviour of LedgerHandler.
type Config struct {
	// LedgerKey is the object key of the ledger file kept in the bucket, if any.
	// Events for it are ignored.
	LedgerKey string
	// Processor is written to the processor column of each record.
	Processor string
	// TagProcessed marks recorded objects with meta.ProcessedTagKey.
	TagProcessed bool
}

// LedgerHandler fetches the current object, checks it is a PDF, and upserts
// its ledger record keyed by object key.
type LedgerHandler struct {
	Objects objectstore.Store
	Ledger  ledger.Store
	Config  Config
	Logger  *slog.Logger
	Now     func() time.Time
}

// New returns a LedgerHandler with defaults applied.
func New(objects objectstore.Store, store ledger.Store, cfg Config, logger *slog.Logger) *LedgerHandler {
	if cfg.Processor == "" {
		cfg.Processor = meta.DefaultProcessor
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &LedgerHandler{
		Objects: objects,
		Ledger:  store,
		Config:  cfg,
		Logger:  logger,
		Now:     time.Now,
	}
}

// Handle implements Handler.
func (h *LedgerHandler) Handle(ctx context.Context, inv Invocation) error {
	if h == nil || h.Objects == nil || h.Ledger == nil {
		return invoice.Transient("handle", inv.Key, errors.New("handler is not configured"))
	}
	log := h.Logger.With(
		slog.String("bucket", inv.Bucket),
		slog.String("key", inv.Key),
		slog.String("request_id", inv.RequestID),
	)
	if h.Config.LedgerKey != "" && inv.Key == h.Config.LedgerKey {
		log.DebugContext(ctx, "skip ledger object")
		return nil
	}

	obj, err := h.Objects.Fetch(ctx, inv.Bucket, inv.Key, invoice.HeaderWindow)
	if err != nil {
		log.WarnContext(ctx, "fetch failed", slog.Any("error", err))
		return invoice.Transient("fetch", inv.Key, err)
	}
	if obj.Size == 0 && len(obj.Head) == 0 {
		err := invoice.Permanent(inv.Key, "object is empty", nil)
		log.ErrorContext(ctx, "rejected", slog.Any("error", err))
		return err
	}
	if err := invoice.CheckPDF(obj.Head); err != nil {
		perm := invoice.Permanent(inv.Key, "not a PDF", err)
		log.ErrorContext(ctx, "rejected", slog.Any("error", perm))
		return perm
	}

	parsed := invoice.ParseName(inv.Key)
	if !parsed.Recognized {
		log.WarnContext(ctx, "file name outside naming convention", slog.String("memo", parsed.Memo))
	}
	record := invoice.NewRecord(inv.Bucket, inv.Key, parsed, obj.ETag, h.now(), h.Config.Processor)

	outcome, err := h.Ledger.Upsert(ctx, record)
	if err != nil {
		log.WarnContext(ctx, "ledger upsert failed", slog.Any("error", err))
		return invoice.Transient("upsert", inv.Key, err)
	}

	// Tagging merges the same tag set, so redeliveries of an existing record
	// tag again and finish what a failed attempt left undone.
	if h.Config.TagProcessed && (outcome == ledger.OutcomeCreated || outcome == ledger.OutcomeExisting) {
		tags := map[string]string{meta.ProcessedTagKey: meta.ProcessedTagValue}
		if err := h.Objects.Tag(ctx, inv.Bucket, inv.Key, tags); err != nil {
			log.WarnContext(ctx, "tag failed", slog.Any("error", err))
			return invoice.Transient("tag", inv.Key, fmt.Errorf("tag processed object: %w", err))
		}
	}

	log.InfoContext(ctx, "recorded",
		slog.String("outcome", string(outcome)),
		slog.String("invoice_id", record.InvoiceID),
		slog.String("etag", record.ETag),
	)
	return nil
}

func (h *LedgerHandler) now() time.Time {
	if h.Now == nil {
		return time.Now()
	}
	return h.Now()
}
