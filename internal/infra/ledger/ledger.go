// Where: internal/infra/ledger/ledger.go
// What: Ledger store port and outcomes.
// Why: The handler's only safeguard against double recording is a key-scoped idempotent upsert.
package ledger

import (
	"context"

	"github.com/poruru-code/invoice-autorecord/internal/domain/invoice"
)

// Outcome reports what an upsert did.
type Outcome string

const (
	// OutcomeCreated means a new record was written.
	OutcomeCreated Outcome = "created"
	// OutcomeExisting means a record for the source key already existed and
	// nothing was changed.
	OutcomeExisting Outcome = "existing"
)

// Store records invoices. Upsert must be safe to call concurrently and
// repeatedly for the same SourceKey: at most one record may result.
type Store interface {
	Upsert(ctx context.Context, record invoice.Record) (Outcome, error)
}

// Lister is implemented by stores that can enumerate their records.
type Lister interface {
	List(ctx context.Context) ([]invoice.Record, error)
}
