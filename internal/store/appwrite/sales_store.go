package appwrite

import (
	"context"
	"errors"

	"api_ventas/internal/sales"
)

const saleDateAttribute = "saleDate"

// SalesStore keeps SaleRecords as documents of one Appwrite collection.
type SalesStore struct {
	client       *Client
	databaseID   string
	collectionID string
}

// NewSalesStore binds a client to the sales collection.
func NewSalesStore(client *Client, databaseID, collectionID string) *SalesStore {
	return &SalesStore{client: client, databaseID: databaseID, collectionID: collectionID}
}

type saleDocumentList struct {
	Total     int                `json:"total"`
	Documents []sales.SaleRecord `json:"documents"`
}

// Create implements sales.Storage.
func (s *SalesStore) Create(ctx context.Context, record *sales.SaleRecord) (string, error) {
	if record.ID == "" {
		return "", sales.ErrEmptyID
	}
	doc, err := s.client.CreateDocument(ctx, s.databaseID, s.collectionID, record.ID, record.Document())
	if err != nil {
		var apiErr *Error
		if errors.As(err, &apiErr) && apiErr.Conflict() {
			return "", sales.ErrDuplicateID
		}
		return "", err
	}
	return doc.ID, nil
}

// List implements sales.Storage. Ties on saleDate follow Appwrite's own order.
func (s *SalesStore) List(ctx context.Context, q sales.ListQuery) (*sales.Page, error) {
	var out saleDocumentList
	err := s.client.ListDocuments(ctx, s.databaseID, s.collectionID, &out,
		OrderDesc(saleDateAttribute),
		Limit(q.Limit),
		Offset(q.Offset),
	)
	if err != nil {
		return nil, err
	}
	if out.Documents == nil {
		out.Documents = []sales.SaleRecord{}
	}
	return &sales.Page{Records: out.Documents, Total: out.Total}, nil
}
