package dashboard

import (
	"time"

	"github.com/shopspring/decimal"

	"api_ventas/internal/sales"
)

// NoSaleTime is shown as the last sale time when there are no records.
const NoSaleTime = "--:--"

// DailyStats aggregates the sales of one calendar day.
type DailyStats struct {
	Total        decimal.Decimal
	Count        int
	Average      decimal.Decimal
	LastSaleTime string
}

// ComputeDailyStats sums the records dated on now's calendar day in loc.
// records must already be sorted by date descending: the last sale time is records[0]'s,
// whatever its day.
func ComputeDailyStats(records []sales.SaleRecord, now time.Time, loc *time.Location) DailyStats {
	if loc == nil {
		loc = time.UTC
	}
	stats := DailyStats{Total: decimal.Zero, Average: decimal.Zero, LastSaleTime: NoSaleTime}

	y, m, d := now.In(loc).Date()
	for _, r := range records {
		ry, rm, rd := r.SaleDate.In(loc).Date()
		if ry == y && rm == m && rd == d {
			stats.Total = stats.Total.Add(r.TotalAmount)
			stats.Count++
		}
	}
	if stats.Count > 0 {
		stats.Average = stats.Total.Div(decimal.NewFromInt(int64(stats.Count)))
	}
	if len(records) > 0 {
		stats.LastSaleTime = records[0].SaleDate.In(loc).Format("15:04")
	}
	return stats
}
