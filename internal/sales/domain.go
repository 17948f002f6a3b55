package sales

import (
	"time"

	"github.com/shopspring/decimal"
)

// Montos como números JSON, igual que los devuelve el document store. Aplica también al texto
// de lineItems y payments.
func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

// SaleRecord represents one persisted point-of-sale transaction.
// Records are append-only: the service creates them once and never updates them.
type SaleRecord struct {
	ID             string          `json:"$id"`
	SaleID         int64           `json:"saleId" validate:"gte=0"`
	CompanyID      int64           `json:"companyId" validate:"gte=0"`
	BranchID       int64           `json:"branchId" validate:"gte=0"`
	SaleDate       time.Time       `json:"saleDate" validate:"required"`
	TotalAmount    decimal.Decimal `json:"totalAmount" validate:"gte=0"`
	TotalQuantity  int64           `json:"totalQuantity" validate:"gte=0"`
	AmountReceived decimal.Decimal `json:"amountReceived" validate:"gte=0"`
	NetAmount      decimal.Decimal `json:"netAmount" validate:"gte=0"`
	DiscountAmount decimal.Decimal `json:"discountAmount" validate:"gte=0"`
	CustomerTaxID  string          `json:"customerTaxId" validate:"max=20"`
	CustomerName   string          `json:"customerName" validate:"max=255"`
	Cashier        string          `json:"cashier,omitempty" validate:"max=255"`
	User           string          `json:"user,omitempty" validate:"max=255"`
	ReceiptNumber  int64           `json:"receiptNumber" validate:"gte=0"`
	Token          string          `json:"token" validate:"max=255"`
	LineItems      string          `json:"lineItems" validate:"required,maxbytes=65535"`
	Payments       string          `json:"payments" validate:"required,maxbytes=65535"`
	TaxReceiver    string          `json:"taxReceiver,omitempty" validate:"maxbytes=65535"`
	RawPayload     string          `json:"rawPayload" validate:"required,maxbytes=65535"`
}

// LineItem is one product entry of a sale, stored serialized inside SaleRecord.LineItems.
type LineItem struct {
	SKU         string          `json:"sku"`
	ProductName string          `json:"productName"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	LineTotal   decimal.Decimal `json:"lineTotal"`
}

// Payment is one payment-method contribution, stored serialized inside SaleRecord.Payments.
type Payment struct {
	Label  string          `json:"label"`
	Amount decimal.Decimal `json:"amount"`
}

// Document returns the attribute map sent to the document store.
// Decimals go out as doubles and the date as RFC3339, matching the provisioned attribute types.
func (r *SaleRecord) Document() map[string]any {
	doc := map[string]any{
		"saleId":         r.SaleID,
		"companyId":      r.CompanyID,
		"branchId":       r.BranchID,
		"saleDate":       r.SaleDate.UTC().Format(time.RFC3339Nano),
		"totalAmount":    r.TotalAmount.InexactFloat64(),
		"totalQuantity":  r.TotalQuantity,
		"amountReceived": r.AmountReceived.InexactFloat64(),
		"netAmount":      r.NetAmount.InexactFloat64(),
		"discountAmount": r.DiscountAmount.InexactFloat64(),
		"customerTaxId":  r.CustomerTaxID,
		"customerName":   r.CustomerName,
		"receiptNumber":  r.ReceiptNumber,
		"token":          r.Token,
		"lineItems":      r.LineItems,
		"payments":       r.Payments,
		"rawPayload":     r.RawPayload,
	}
	// Los atributos opcionales solo se envían si vienen informados.
	if r.Cashier != "" {
		doc["cashier"] = r.Cashier
	}
	if r.User != "" {
		doc["user"] = r.User
	}
	if r.TaxReceiver != "" {
		doc["taxReceiver"] = r.TaxReceiver
	}
	return doc
}

// ListQuery selects one page of the descending-by-date listing.
type ListQuery struct {
	Limit  int
	Offset int
}

// Page is one page of records plus the store-reported total of all records.
// Total is not len(Records).
type Page struct {
	Records []SaleRecord `json:"ventas"`
	Total   int          `json:"total"`
}
