package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"api_ventas/internal/sales"
)

var santiago = mustLoad("America/Santiago")

func mustLoad(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

func record(id string, receipt int64, customer string, at time.Time, total int64) sales.SaleRecord {
	items, _ := json.Marshal([]sales.LineItem{{
		SKU: "SKU-" + id, ProductName: "Producto " + id,
		Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(total), LineTotal: decimal.NewFromInt(total),
	}})
	payments, _ := json.Marshal([]sales.Payment{{Label: "Efectivo", Amount: decimal.NewFromInt(total)}})
	return sales.SaleRecord{
		ID:            id,
		ReceiptNumber: receipt,
		CustomerName:  customer,
		CustomerTaxID: "11.111.111-1",
		User:          "cajero",
		SaleDate:      at,
		TotalAmount:   decimal.NewFromInt(total),
		LineItems:     string(items),
		Payments:      string(payments),
		RawPayload:    "{}",
	}
}

// fakeSource devuelve respuestas programadas; block permite ordenar respuestas concurrentes.
type fakeSource struct {
	mu      sync.Mutex
	records []sales.SaleRecord
	err     error
	calls   []int
	block   map[int]chan struct{} // limit -> release
}

func (f *fakeSource) FetchSales(ctx context.Context, limit int) ([]sales.SaleRecord, error) {
	f.mu.Lock()
	f.calls = append(f.calls, limit)
	release := f.block[limit]
	records, err := f.records, f.err
	f.mu.Unlock()

	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if limit < len(records) {
		records = records[:limit]
	}
	return records, nil
}

func threeRecords(now time.Time) []sales.SaleRecord {
	return []sales.SaleRecord{
		record("a", 300, "Panadería Sur", now.Add(-1*time.Hour), 1000),
		record("b", 200, "ACME Ltda", now.Add(-2*time.Hour), 2000),
		record("c", 100, "Ferretería Norte", now.Add(-3*time.Hour), 3000),
	}
}

func newTestDashboard(t *testing.T, source Source, now time.Time) *Dashboard {
	t.Helper()
	d := New(source, santiago, zaptest.NewLogger(t))
	d.now = func() time.Time { return now }
	return d
}

func TestFilterSales_EmptyTermReturnsAllInOrder(t *testing.T) {
	records := threeRecords(time.Now())
	got := FilterSales(records, "")
	assert.Equal(t, records, got)
}

func TestFilterSales_MatchesOnlyAcme(t *testing.T) {
	records := threeRecords(time.Now())
	got := FilterSales(records, "acme")
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].ID)
}

func TestMatchSale_Fields(t *testing.T) {
	r := record("x", 4521, "Café Ñuñoa", time.Now(), 10)
	r.User = "MariaJose"

	tests := []struct {
		term string
		want bool
	}{
		{"ÑUÑOA", true},
		{"111.111", true},
		{"452", true},
		{"mariajo", true},
		{"efectivo", false}, // payments are not searched
		{"SKU", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MatchSale(r, tt.term), tt.term)
	}
}

func TestComputeDailyStats_Empty(t *testing.T) {
	stats := ComputeDailyStats(nil, time.Now(), santiago)
	assert.Zero(t, stats.Count)
	assert.True(t, stats.Total.IsZero())
	assert.True(t, stats.Average.IsZero())
	assert.Equal(t, NoSaleTime, stats.LastSaleTime)
}

func TestComputeDailyStats_TodayTotals(t *testing.T) {
	now := time.Date(2024, 5, 10, 18, 0, 0, 0, santiago)
	stats := ComputeDailyStats(threeRecords(now), now, santiago)

	assert.Equal(t, 3, stats.Count)
	assert.True(t, decimal.NewFromInt(6000).Equal(stats.Total), stats.Total.String())
	assert.True(t, decimal.NewFromInt(2000).Equal(stats.Average), stats.Average.String())
	assert.Equal(t, "17:00", stats.LastSaleTime)
}

func TestComputeDailyStats_DayBoundaryFollowsLocation(t *testing.T) {
	// 02:00 UTC del 11 de mayo sigue siendo 10 de mayo en Santiago (UTC-4).
	now := time.Date(2024, 5, 10, 23, 30, 0, 0, santiago)
	late := record("late", 1, "X", time.Date(2024, 5, 11, 2, 0, 0, 0, time.UTC), 500)
	yesterday := record("old", 2, "Y", time.Date(2024, 5, 9, 12, 0, 0, 0, santiago), 900)

	stats := ComputeDailyStats([]sales.SaleRecord{late, yesterday}, now, santiago)
	assert.Equal(t, 1, stats.Count)
	assert.True(t, decimal.NewFromInt(500).Equal(stats.Total))
	assert.Equal(t, "22:00", stats.LastSaleTime)

	utcStats := ComputeDailyStats([]sales.SaleRecord{late, yesterday}, now, time.UTC)
	assert.Equal(t, 1, utcStats.Count, "in UTC only the late sale is on the 11th")
}

func TestComputeDailyStats_LastSaleIsFirstRecordEvenIfNotToday(t *testing.T) {
	now := time.Date(2024, 5, 10, 9, 0, 0, 0, santiago)
	old := record("old", 1, "X", time.Date(2024, 5, 1, 16, 45, 0, 0, santiago), 100)

	stats := ComputeDailyStats([]sales.SaleRecord{old}, now, santiago)
	assert.Zero(t, stats.Count)
	assert.Equal(t, "16:45", stats.LastSaleTime)
}

func TestLoadSales_ReplacesRecordsAndViewAppliesTerm(t *testing.T) {
	now := time.Date(2024, 5, 10, 18, 0, 0, 0, santiago)
	source := &fakeSource{records: threeRecords(now)}
	d := newTestDashboard(t, source, now)

	assert.Equal(t, Idle, d.Phase())

	require.NoError(t, d.LoadSales(context.Background(), 50))
	view := d.View("acme")
	assert.Equal(t, Loaded, view.Phase)
	assert.Equal(t, 3, view.All)
	assert.Equal(t, "acme", view.Term)
	require.Len(t, view.Records, 1)
	assert.Equal(t, "b", view.Records[0].ID)
	assert.Equal(t, 50, view.Limit)
	assert.Equal(t, now, view.LoadedAt)

	assert.Len(t, d.FilterSales(""), 3)
	assert.Len(t, d.View("").Records, 3, "filtering stores nothing")
}

func TestView_ConcurrentTermsDoNotLeak(t *testing.T) {
	now := time.Now()
	d := newTestDashboard(t, &fakeSource{records: threeRecords(now)}, now)
	require.NoError(t, d.LoadSales(context.Background(), 50))

	terms := map[string]string{"acme": "b", "panad": "a", "ferre": "c"}
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		for term, id := range terms {
			term, id := term, id
			wg.Add(1)
			go func() {
				defer wg.Done()
				v := d.View(term)
				if assert.Len(t, v.Records, 1, term) {
					assert.Equal(t, id, v.Records[0].ID, term)
				}
				assert.Equal(t, term, v.Term)
			}()
		}
	}
	wg.Wait()
}

func TestState_RangeChanged(t *testing.T) {
	s := NewState()
	assert.True(t, s.RangeChanged("2024-05-03", "2024-05-10"))
	assert.False(t, s.RangeChanged("2024-05-03", "2024-05-10"))
	assert.True(t, s.RangeChanged("2024-05-01", "2024-05-10"))
}

func TestLoadSales_FailureKeepsPreviousRecords(t *testing.T) {
	now := time.Now()
	source := &fakeSource{records: threeRecords(now)}
	d := newTestDashboard(t, source, now)
	require.NoError(t, d.LoadSales(context.Background(), 50))

	source.mu.Lock()
	source.err = errors.New("query service returned 500: boom")
	source.mu.Unlock()

	err := d.LoadSales(context.Background(), 50)
	require.Error(t, err)

	view := d.View("")
	assert.Equal(t, Errored, view.Phase)
	assert.Contains(t, view.Err, "boom")
	assert.Len(t, view.Records, 3, "records of the last good load stay")
	assert.False(t, d.NeedsLoad(50, false), "no automatic retry")
	assert.True(t, d.NeedsLoad(50, true))
}

func TestLoadSales_LatestRequestWins(t *testing.T) {
	now := time.Now()
	slow := make(chan struct{})
	source := &fakeSource{
		records: threeRecords(now),
		block:   map[int]chan struct{}{10: slow},
	}
	d := newTestDashboard(t, source, now)

	firstDone := make(chan error, 1)
	go func() { firstDone <- d.LoadSales(context.Background(), 10) }()

	// Esperar a que la primera carga esté en vuelo antes de emitir la segunda.
	require.Eventually(t, func() bool {
		source.mu.Lock()
		defer source.mu.Unlock()
		return len(source.calls) == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, d.LoadSales(context.Background(), 2))
	close(slow) // la respuesta vieja llega después

	assert.ErrorIs(t, <-firstDone, ErrSuperseded)
	view := d.View("")
	assert.Equal(t, 2, view.Limit)
	assert.Len(t, view.Records, 2, "the stale response for limit=10 is discarded")
}

func TestState_StaleTokens(t *testing.T) {
	s := NewState()
	first := s.BeginLoad(10)
	second := s.BeginLoad(20)

	assert.False(t, s.CompleteLoad(first, threeRecords(time.Now()), time.Now()))
	assert.False(t, s.FailLoad(first, errors.New("late failure")))
	assert.Equal(t, Loading, s.Snapshot().Phase)

	assert.True(t, s.CompleteLoad(second, nil, time.Now()))
	assert.Equal(t, Loaded, s.Snapshot().Phase)
	assert.Equal(t, 20, s.Snapshot().Limit)
}

func TestRenderDetail(t *testing.T) {
	now := time.Now()
	d := newTestDashboard(t, &fakeSource{records: threeRecords(now)}, now)
	require.NoError(t, d.LoadSales(context.Background(), 50))

	detail, err := d.RenderDetail("b")
	require.NoError(t, err)
	assert.Equal(t, int64(200), detail.Record.ReceiptNumber)
	require.Len(t, detail.LineItems, 1)
	assert.Equal(t, "SKU-b", detail.LineItems[0].SKU)
	require.Len(t, detail.Payments, 1)
	assert.Equal(t, "Efectivo", detail.Payments[0].Label)

	_, err = d.RenderDetail("missing")
	assert.ErrorIs(t, err, sales.ErrNotFound)
}

func TestBuildDetail_BadLineItems(t *testing.T) {
	r := record("bad", 1, "X", time.Now(), 1)
	r.LineItems = "not json"
	_, err := BuildDetail(r)
	require.Error(t, err)
	assert.Contains(t, err.Error(), fmt.Sprintf("line items of %s", r.ID))
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "errored", Errored.String())
	assert.Equal(t, "unknown", Phase(42).String())
}
