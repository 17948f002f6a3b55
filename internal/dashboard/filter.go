package dashboard

import (
	"strconv"
	"strings"

	"api_ventas/internal/sales"
)

// MatchSale reports whether term (case-insensitive) is a substring of the customer name,
// customer tax id, receipt number or user of r.
func MatchSale(r sales.SaleRecord, term string) bool {
	term = strings.ToLower(term)
	return strings.Contains(strings.ToLower(r.CustomerName), term) ||
		strings.Contains(strings.ToLower(r.CustomerTaxID), term) ||
		strings.Contains(strconv.FormatInt(r.ReceiptNumber, 10), term) ||
		strings.Contains(strings.ToLower(r.User), term)
}

// FilterSales keeps the records matching term, in their original order.
// An empty term returns every record.
func FilterSales(records []sales.SaleRecord, term string) []sales.SaleRecord {
	out := make([]sales.SaleRecord, 0, len(records))
	for _, r := range records {
		if term == "" || MatchSale(r, term) {
			out = append(out, r)
		}
	}
	return out
}
