// Where: internal/infra/ledger/memory.go
// What: In-memory ledger store.
// Why: Back simulations and tests with the same idempotency contract as the real stores.
package ledger

import (
	"context"
	"sync"

	"github.com/poruru-code/invoice-autorecord/internal/domain/invoice"
)

// Memory keeps records keyed by source key, in insertion order.
type Memory struct {
	mu      sync.Mutex
	order   []string
	records map[string]invoice.Record
}

// NewMemory returns an empty ledger.
func NewMemory() *Memory {
	return &Memory{records: map[string]invoice.Record{}}
}

// Upsert implements Store.
func (m *Memory) Upsert(_ context.Context, record invoice.Record) (Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[record.SourceKey]; ok {
		return OutcomeExisting, nil
	}
	m.records[record.SourceKey] = record
	m.order = append(m.order, record.SourceKey)
	return OutcomeCreated, nil
}

// List implements Lister.
func (m *Memory) List(_ context.Context) ([]invoice.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]invoice.Record, 0, len(m.order))
	for _, key := range m.order {
		out = append(out, m.records[key])
	}
	return out, nil
}

// Count returns how many records exist for a source key (0 or 1).
func (m *Memory) Count(sourceKey string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[sourceKey]; ok {
		return 1
	}
	return 0
}
