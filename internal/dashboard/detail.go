package dashboard

import (
	"encoding/json"
	"fmt"

	"api_ventas/internal/sales"
)

// Detail is the read-only view of one sale.
type Detail struct {
	Record    sales.SaleRecord
	LineItems []sales.LineItem
	Payments  []sales.Payment
}

// BuildDetail decodes the line items and payments stored as text in r.
func BuildDetail(r sales.SaleRecord) (*Detail, error) {
	d := &Detail{Record: r}
	if err := json.Unmarshal([]byte(r.LineItems), &d.LineItems); err != nil {
		return nil, fmt.Errorf("decode line items of %s: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(r.Payments), &d.Payments); err != nil {
		return nil, fmt.Errorf("decode payments of %s: %w", r.ID, err)
	}
	return d, nil
}
