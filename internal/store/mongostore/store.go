package mongostore

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"api_ventas/internal/sales"
)

// saleDocument is the BSON shape of a SaleRecord. Amounts are doubles, like in Appwrite.
type saleDocument struct {
	ID             string    `bson:"_id"`
	SaleID         int64     `bson:"saleId"`
	CompanyID      int64     `bson:"companyId"`
	BranchID       int64     `bson:"branchId"`
	SaleDate       time.Time `bson:"saleDate"`
	TotalAmount    float64   `bson:"totalAmount"`
	TotalQuantity  int64     `bson:"totalQuantity"`
	AmountReceived float64   `bson:"amountReceived"`
	NetAmount      float64   `bson:"netAmount"`
	DiscountAmount float64   `bson:"discountAmount"`
	CustomerTaxID  string    `bson:"customerTaxId"`
	CustomerName   string    `bson:"customerName"`
	Cashier        string    `bson:"cashier,omitempty"`
	User           string    `bson:"user,omitempty"`
	ReceiptNumber  int64     `bson:"receiptNumber"`
	Token          string    `bson:"token"`
	LineItems      string    `bson:"lineItems"`
	Payments       string    `bson:"payments"`
	TaxReceiver    string    `bson:"taxReceiver,omitempty"`
	RawPayload     string    `bson:"rawPayload"`
	CreatedAt      time.Time `bson:"createdAt"`
}

func fromRecord(r *sales.SaleRecord, now time.Time) saleDocument {
	return saleDocument{
		ID:             r.ID,
		SaleID:         r.SaleID,
		CompanyID:      r.CompanyID,
		BranchID:       r.BranchID,
		SaleDate:       r.SaleDate.UTC(),
		TotalAmount:    r.TotalAmount.InexactFloat64(),
		TotalQuantity:  r.TotalQuantity,
		AmountReceived: r.AmountReceived.InexactFloat64(),
		NetAmount:      r.NetAmount.InexactFloat64(),
		DiscountAmount: r.DiscountAmount.InexactFloat64(),
		CustomerTaxID:  r.CustomerTaxID,
		CustomerName:   r.CustomerName,
		Cashier:        r.Cashier,
		User:           r.User,
		ReceiptNumber:  r.ReceiptNumber,
		Token:          r.Token,
		LineItems:      r.LineItems,
		Payments:       r.Payments,
		TaxReceiver:    r.TaxReceiver,
		RawPayload:     r.RawPayload,
		CreatedAt:      now.UTC(),
	}
}

func (d saleDocument) record() sales.SaleRecord {
	return sales.SaleRecord{
		ID:             d.ID,
		SaleID:         d.SaleID,
		CompanyID:      d.CompanyID,
		BranchID:       d.BranchID,
		SaleDate:       d.SaleDate,
		TotalAmount:    decimal.NewFromFloat(d.TotalAmount),
		TotalQuantity:  d.TotalQuantity,
		AmountReceived: decimal.NewFromFloat(d.AmountReceived),
		NetAmount:      decimal.NewFromFloat(d.NetAmount),
		DiscountAmount: decimal.NewFromFloat(d.DiscountAmount),
		CustomerTaxID:  d.CustomerTaxID,
		CustomerName:   d.CustomerName,
		Cashier:        d.Cashier,
		User:           d.User,
		ReceiptNumber:  d.ReceiptNumber,
		Token:          d.Token,
		LineItems:      d.LineItems,
		Payments:       d.Payments,
		TaxReceiver:    d.TaxReceiver,
		RawPayload:     d.RawPayload,
	}
}

// SalesStore implements sales.Storage on one collection.
type SalesStore struct {
	coll *mongo.Collection
	now  func() time.Time
}

// NewSalesStore binds the store to coll.
func NewSalesStore(coll *mongo.Collection) *SalesStore {
	return &SalesStore{coll: coll, now: time.Now}
}

// Create inserts the record under its own ID.
func (s *SalesStore) Create(ctx context.Context, record *sales.SaleRecord) (string, error) {
	if record.ID == "" {
		return "", sales.ErrEmptyID
	}
	if _, err := s.coll.InsertOne(ctx, fromRecord(record, s.now())); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", sales.ErrDuplicateID
		}
		return "", err
	}
	return record.ID, nil
}

// List returns saleDate descending; ties fall back to insertion time, then _id.
func (s *SalesStore) List(ctx context.Context, q sales.ListQuery) (*sales.Page, error) {
	opts := options.Find().
		SetSort(bson.D{
			{Key: "saleDate", Value: -1},
			{Key: "createdAt", Value: 1},
			{Key: "_id", Value: 1},
		}).
		SetSkip(int64(q.Offset)).
		SetLimit(int64(q.Limit))

	cursor, err := s.coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, err
	}
	var docs []saleDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	total, err := s.coll.CountDocuments(ctx, bson.D{})
	if err != nil {
		return nil, err
	}

	records := make([]sales.SaleRecord, 0, len(docs))
	for _, d := range docs {
		records = append(records, d.record())
	}
	return &sales.Page{Records: records, Total: int(total)}, nil
}
