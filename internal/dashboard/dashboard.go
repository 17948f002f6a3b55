package dashboard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"api_ventas/internal/sales"
)

// ErrSuperseded is returned by LoadSales when a newer load was issued before this one finished.
var ErrSuperseded = errors.New("load superseded by a newer request")

// Dashboard drives the load cycle over a Source.
type Dashboard struct {
	state  *State
	source Source
	loc    *time.Location
	now    func() time.Time
	logger *zap.Logger
}

// New creates a Dashboard whose calendar day is defined in loc.
func New(source Source, loc *time.Location, logger *zap.Logger) *Dashboard {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dashboard{
		state:  NewState(),
		source: source,
		loc:    loc,
		now:    time.Now,
		logger: logger,
	}
}

// LoadSales fetches limit records and replaces the record set. On failure the state moves to
// Errored and keeps the records of the previous load.
func (d *Dashboard) LoadSales(ctx context.Context, limit int) error {
	gen := d.state.BeginLoad(limit)

	records, err := d.source.FetchSales(ctx, limit)
	if err != nil {
		if !d.state.FailLoad(gen, err) {
			return ErrSuperseded
		}
		d.logger.Warn("Error loading sales", zap.Int("limit", limit), zap.Error(err))
		return err
	}
	if !d.state.CompleteLoad(gen, records, d.now()) {
		d.logger.Debug("discarding stale sales response", zap.Uint64("generation", gen))
		return ErrSuperseded
	}
	d.logger.Debug("sales loaded", zap.Int("limit", limit), zap.Int("count", len(records)))
	return nil
}

// FilterSales applies term to the current record set. Nothing is stored, so concurrent
// callers with different terms do not see each other's results.
func (d *Dashboard) FilterSales(term string) []sales.SaleRecord {
	return FilterSales(d.state.Snapshot().Records, term)
}

// NeedsLoad see State.NeedsLoad.
func (d *Dashboard) NeedsLoad(limit int, refresh bool) bool {
	return d.state.NeedsLoad(limit, refresh)
}

// View returns the current state with its records filtered by term.
func (d *Dashboard) View(term string) View {
	v := d.state.Snapshot()
	v.Records = FilterSales(v.Records, term)
	v.Term = term
	return v
}

// Phase is the current load phase.
func (d *Dashboard) Phase() Phase {
	return d.state.Snapshot().Phase
}

// RangeChanged see State.RangeChanged.
func (d *Dashboard) RangeChanged(from, to string) bool {
	return d.state.RangeChanged(from, to)
}

// Stats computes today's figures over the filtered view.
func (d *Dashboard) Stats(v View) DailyStats {
	return ComputeDailyStats(v.Records, d.now(), d.loc)
}

// RenderDetail returns the detail of a loaded record, or sales.ErrNotFound.
func (d *Dashboard) RenderDetail(id string) (*Detail, error) {
	r, ok := d.state.Find(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", sales.ErrNotFound, id)
	}
	return BuildDetail(r)
}

// Location is the zone of the dashboard calendar day.
func (d *Dashboard) Location() *time.Location { return d.loc }
