package sales

import (
	"context"
	"sort"
	"sync"
)

// Storage is the main interface for our sales storage layer.
// Implementations own record lifetime; the service only proposes creation.
type Storage interface {
	// Create persists record under record.ID and returns the store-assigned ID.
	Create(ctx context.Context, record *SaleRecord) (string, error)
	// List returns one page ordered by SaleDate descending and the total record count.
	List(ctx context.Context, q ListQuery) (*Page, error)
}

// LocalStorage provides an in-memory implementation for storing sales.
// Ties on SaleDate keep insertion order.
type LocalStorage struct {
	mu      sync.RWMutex
	records []SaleRecord
	ids     map[string]struct{}
}

// NewLocalStorage instantiates a new LocalStorage for sales with an empty set.
func NewLocalStorage() *LocalStorage {
	return &LocalStorage{
		ids: map[string]struct{}{},
	}
}

// Create stores a copy of record.
// Returns ErrEmptyID if the sale has an empty ID.
func (l *LocalStorage) Create(_ context.Context, record *SaleRecord) (string, error) {
	if record.ID == "" {
		return "", ErrEmptyID
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.ids[record.ID]; ok {
		return "", ErrDuplicateID
	}
	l.ids[record.ID] = struct{}{}
	l.records = append(l.records, *record)
	return record.ID, nil
}

// List returns a page sorted by SaleDate descending.
func (l *LocalStorage) List(_ context.Context, q ListQuery) (*Page, error) {
	l.mu.RLock()
	sorted := make([]SaleRecord, len(l.records))
	copy(sorted, l.records)
	l.mu.RUnlock()

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].SaleDate.After(sorted[j].SaleDate)
	})

	page := &Page{Records: []SaleRecord{}, Total: len(sorted)}
	if q.Offset >= len(sorted) {
		return page, nil
	}
	end := q.Offset + q.Limit
	if end > len(sorted) {
		end = len(sorted)
	}
	page.Records = append(page.Records, sorted[q.Offset:end]...)
	return page, nil
}
