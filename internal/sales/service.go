package sales

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// DefaultLimit is the page size used when the caller sends none.
	DefaultLimit = 50
	// DefaultMaxLimit caps the page size when the service is built without an explicit cap.
	DefaultMaxLimit = 100
	// DefaultStoreTimeout bounds every call to the document store.
	DefaultStoreTimeout = 10 * time.Second
)

// Service provides sale ingest and listing on top of a Storage backend.
type Service struct {
	storage      Storage
	mapper       *Mapper
	logger       *zap.Logger
	maxLimit     int
	storeTimeout time.Duration
	newID        func() string
}

// Option configures a Service.
type Option func(*Service)

// WithMaxLimit caps the page size accepted by ListSales.
func WithMaxLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxLimit = n
		}
	}
}

// WithStoreTimeout bounds each document store call.
func WithStoreTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.storeTimeout = d
		}
	}
}

// WithIDGenerator overrides the document ID generator.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// NewService creates a new Service.
func NewService(storage Storage, mapper *Mapper, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Service{
		storage:      storage,
		mapper:       mapper,
		logger:       logger,
		maxLimit:     DefaultMaxLimit,
		storeTimeout: DefaultStoreTimeout,
		newID:        uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MaxLimit returns the largest accepted page size.
func (s *Service) MaxLimit() int { return s.maxLimit }

// ReceiveSale maps one webhook body to a SaleRecord and creates exactly one document.
// Duplicate deliveries of the same sale produce distinct documents.
func (s *Service) ReceiveSale(ctx context.Context, body []byte) (string, error) {
	record, err := s.mapper.Map(body)
	if err != nil {
		s.logger.Warn("rejected sale payload", zap.Error(err))
		return "", err
	}
	record.ID = s.newID()

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	id, err := s.storage.Create(ctx, record)
	if err != nil {
		s.logger.Error("failed to save sale",
			zap.String("document_id", record.ID),
			zap.Int64("sale_id", record.SaleID),
			zap.Int64("receipt_number", record.ReceiptNumber),
			zap.Error(err),
		)
		return "", &UpstreamError{Op: "create", Err: err}
	}

	s.logger.Info("sale stored",
		zap.String("document_id", id),
		zap.Int64("sale_id", record.SaleID),
		zap.Int64("company_id", record.CompanyID),
		zap.Int64("branch_id", record.BranchID),
		zap.Int64("receipt_number", record.ReceiptNumber),
	)
	return id, nil
}

// ListSales returns one page ordered by sale date, most recent first.
func (s *Service) ListSales(ctx context.Context, q ListQuery) (*Page, error) {
	problems := &ValidationError{}
	if q.Limit < 1 || q.Limit > s.maxLimit {
		problems.Add("limit: must be between 1 and %d", s.maxLimit)
	}
	if q.Offset < 0 {
		problems.Add("offset: must not be negative")
	}
	if err := problems.orNil(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	page, err := s.storage.List(ctx, q)
	if err != nil {
		s.logger.Error("failed to list sales",
			zap.Int("limit", q.Limit),
			zap.Int("offset", q.Offset),
			zap.Error(err),
		)
		return nil, &UpstreamError{Op: "list", Err: err}
	}
	if page.Records == nil {
		page.Records = []SaleRecord{}
	}

	s.logger.Debug("sales listed",
		zap.Int("limit", q.Limit),
		zap.Int("offset", q.Offset),
		zap.Int("results_count", len(page.Records)),
		zap.Int("total", page.Total),
	)
	return page, nil
}

// ParseListQuery reads limit and offset query parameters.
// Empty values take the defaults; anything that is not a plain non-negative integer is rejected.
func ParseListQuery(limitText, offsetText string, maxLimit int) (ListQuery, error) {
	q := ListQuery{Limit: DefaultLimit}
	problems := &ValidationError{}

	if v := strings.TrimSpace(limitText); v != "" {
		n, err := parseUint(v)
		switch {
		case err != nil:
			problems.Add("limit: %q is not a non-negative integer", limitText)
		case n < 1 || n > maxLimit:
			problems.Add("limit: must be between 1 and %d", maxLimit)
		default:
			q.Limit = n
		}
	}
	if v := strings.TrimSpace(offsetText); v != "" {
		n, err := parseUint(v)
		if err != nil {
			problems.Add("offset: %q is not a non-negative integer", offsetText)
		} else {
			q.Offset = n
		}
	}

	if err := problems.orNil(); err != nil {
		return ListQuery{}, err
	}
	return q, nil
}

func parseUint(v string) (int, error) {
	// ParseUint rejects signs, so "-1" and "+1" both fail.
	n, err := strconv.ParseUint(v, 10, 31)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
