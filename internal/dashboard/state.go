// Package dashboard serves the sales dashboard: listing, search, daily stats and sale detail.
package dashboard

import (
	"slices"
	"sync"
	"time"

	"api_ventas/internal/sales"
)

// Phase of the dashboard load cycle.
type Phase int

const (
	Idle Phase = iota
	Loading
	Loaded
	Errored
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	case Errored:
		return "errored"
	}
	return "unknown"
}

// View is a consistent copy of the state at one instant.
type View struct {
	Phase    Phase
	Records  []sales.SaleRecord // filtered by Term
	All      int                // size of the full record set
	Term     string
	Limit    int
	Err      string
	LoadedAt time.Time
}

// State owns the record set shared by every request. Search terms are per request and never
// stored here. Loads are sequenced by generation: only the most recently issued load may update
// the state.
type State struct {
	mu sync.Mutex

	phase        Phase
	issued       uint64
	pendingLimit int

	records  []sales.SaleRecord
	limit    int
	err      string
	loadedAt time.Time

	dateFrom, dateTo string
}

// NewState returns an Idle state with no records.
func NewState() *State {
	return &State{}
}

// BeginLoad enters Loading and returns the token the matching CompleteLoad or FailLoad must present.
func (s *State) BeginLoad(limit int) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued++
	s.phase = Loading
	s.pendingLimit = limit
	return s.issued
}

// CompleteLoad replaces the record set.
// It reports false, changing nothing, when gen is not the latest issued token.
func (s *State) CompleteLoad(gen uint64, records []sales.SaleRecord, at time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.issued {
		return false
	}
	s.records = records
	s.phase = Loaded
	s.err = ""
	s.limit = s.pendingLimit
	s.loadedAt = at
	return true
}

// FailLoad enters Errored with err's message and keeps the previous records.
func (s *State) FailLoad(gen uint64, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.issued {
		return false
	}
	s.phase = Errored
	s.err = err.Error()
	s.limit = s.pendingLimit
	return true
}

// RangeChanged records the date range of the date controls and reports whether it differs
// from the last one seen. A change is a reload trigger like the refresh button.
func (s *State) RangeChanged(from, to string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dateFrom == from && s.dateTo == to {
		return false
	}
	s.dateFrom, s.dateTo = from, to
	return true
}

// NeedsLoad reports whether a page request must fetch: first visit, a limit change or an explicit refresh.
func (s *State) NeedsLoad(limit int, refresh bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return refresh || s.phase == Idle || s.limit != limit
}

// Find looks id up in the full record set.
func (s *State) Find(id string) (sales.SaleRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if r.ID == id {
			return r, true
		}
	}
	return sales.SaleRecord{}, false
}

// Snapshot returns a copy of the current state with the full record set and no term.
func (s *State) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return View{
		Phase:    s.phase,
		Records:  slices.Clone(s.records),
		All:      len(s.records),
		Limit:    s.limit,
		Err:      s.err,
		LoadedAt: s.loadedAt,
	}
}
