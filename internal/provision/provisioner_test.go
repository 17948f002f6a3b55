package provision

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/time/rate"
)

type temporaryError struct{}

func (temporaryError) Error() string   { return "503 service unavailable" }
func (temporaryError) Temporary() bool { return true }

// fakeBackend es un document store en memoria con estados programables.
type fakeBackend struct {
	mu sync.Mutex

	databases   map[string]string // name -> id
	collections map[string]string // name -> id
	attributes  map[string]bool
	indexes     map[string]bool

	// pending statuses returned before "available", per key
	attributeStatuses map[string][]Status
	indexStatuses     map[string][]Status

	createAttributeErr map[string][]error
	findDatabaseErr    error

	databaseCreates   int
	collectionCreates int
	attributeCreates  map[string]int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		databases:          map[string]string{},
		collections:        map[string]string{},
		attributes:         map[string]bool{},
		indexes:            map[string]bool{},
		attributeStatuses:  map[string][]Status{},
		indexStatuses:      map[string][]Status{},
		createAttributeErr: map[string][]error{},
		attributeCreates:   map[string]int{},
	}
}

func (f *fakeBackend) FindDatabase(_ context.Context, name string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findDatabaseErr != nil {
		return "", false, f.findDatabaseErr
	}
	id, ok := f.databases[name]
	return id, ok, nil
}

func (f *fakeBackend) CreateDatabase(_ context.Context, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.databaseCreates++
	id := fmt.Sprintf("db-%d", f.databaseCreates)
	f.databases[name] = id
	return id, nil
}

func (f *fakeBackend) FindCollection(_ context.Context, _ string, name string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.collections[name]
	return id, ok, nil
}

func (f *fakeBackend) CreateCollection(_ context.Context, _ string, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.collectionCreates++
	id := fmt.Sprintf("coll-%d", f.collectionCreates)
	f.collections[name] = id
	return id, nil
}

func (f *fakeBackend) CreateAttribute(_ context.Context, _, _ string, attr Attribute) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attributeCreates[attr.Key]++
	if errs := f.createAttributeErr[attr.Key]; len(errs) > 0 {
		f.createAttributeErr[attr.Key] = errs[1:]
		return errs[0]
	}
	if f.attributes[attr.Key] {
		return fmt.Errorf("%w: attribute %s", ErrAlreadyExists, attr.Key)
	}
	f.attributes[attr.Key] = true
	return nil
}

func (f *fakeBackend) AttributeStatus(_ context.Context, _, _ string, key string) (Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return next(f.attributeStatuses, key), nil
}

func (f *fakeBackend) CreateIndex(_ context.Context, _, _ string, idx Index) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.indexes[idx.Key] {
		return fmt.Errorf("%w: index %s", ErrAlreadyExists, idx.Key)
	}
	f.indexes[idx.Key] = true
	return nil
}

func (f *fakeBackend) IndexStatus(_ context.Context, _, _ string, key string) (Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return next(f.indexStatuses, key), nil
}

func next(statuses map[string][]Status, key string) Status {
	pending := statuses[key]
	if len(pending) == 0 {
		return StatusAvailable
	}
	statuses[key] = pending[1:]
	return pending[0]
}

func newTestProvisioner(t *testing.T, backend Backend, opts ...Option) (*Provisioner, *[]time.Duration) {
	t.Helper()
	p := New(backend, zaptest.NewLogger(t), append([]Option{
		WithPolicy(Policy{InitialBackoff: 10 * time.Millisecond, MaxBackoff: 40 * time.Millisecond, Attempts: 4}),
	}, opts...)...)
	p.limiter = rate.NewLimiter(rate.Inf, 1)

	var sleeps []time.Duration
	p.sleep = func(_ context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}
	return p, &sleeps
}

func TestRun_FreshStoreCreatesEverything(t *testing.T) {
	backend := newFakeBackend()
	p, _ := newTestProvisioner(t, backend)

	res, err := p.Run(context.Background(), "ventas", "ventas")
	require.NoError(t, err)

	assert.True(t, res.DatabaseCreated)
	assert.True(t, res.CollectionCreated)
	assert.Equal(t, "db-1", res.DatabaseID)
	assert.Equal(t, "coll-1", res.CollectionID)
	assert.Len(t, res.Attributes, len(SalesAttributes))
	assert.Len(t, res.Indexes, len(SalesIndexes))
	assert.Empty(t, res.Failed)
}

func TestRun_SecondRunReusesExistingResources(t *testing.T) {
	backend := newFakeBackend()
	p, _ := newTestProvisioner(t, backend)
	ctx := context.Background()

	_, err := p.Run(ctx, "ventas", "ventas")
	require.NoError(t, err)

	res, err := p.Run(ctx, "ventas", "ventas")
	require.NoError(t, err)

	assert.False(t, res.DatabaseCreated)
	assert.False(t, res.CollectionCreated)
	assert.Equal(t, 1, backend.databaseCreates, "la base no debe duplicarse")
	assert.Equal(t, 1, backend.collectionCreates, "la colección no debe duplicarse")
	assert.Len(t, res.Attributes, len(SalesAttributes), "existing attributes still count as available")
	assert.Len(t, res.Indexes, len(SalesIndexes))
	assert.Empty(t, res.Failed)
}

func TestRun_PollsUntilAttributeAvailable(t *testing.T) {
	backend := newFakeBackend()
	backend.attributeStatuses["saleDate"] = []Status{StatusProcessing, StatusProcessing}
	p, sleeps := newTestProvisioner(t, backend)

	res, err := p.Run(context.Background(), "ventas", "ventas")
	require.NoError(t, err)

	assert.Contains(t, res.Attributes, "saleDate")
	assert.Contains(t, res.Indexes, "saleDate_index")
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}, *sleeps)
}

func TestRun_FailedAttributeIsReportedAndDependentIndexSkipped(t *testing.T) {
	backend := newFakeBackend()
	backend.attributeStatuses["saleDate"] = []Status{StatusFailed}
	p, _ := newTestProvisioner(t, backend)

	res, err := p.Run(context.Background(), "ventas", "ventas")
	require.NoError(t, err, "attribute failures do not abort the run")

	assert.NotContains(t, res.Attributes, "saleDate")
	assert.Contains(t, res.Attributes, "receiptNumber")
	require.Len(t, res.Failed, 2)
	assert.Equal(t, Failure{Kind: "attribute", Name: "saleDate", Err: res.Failed[0].Err}, res.Failed[0])
	assert.ErrorIs(t, res.Failed[0].Err, ErrNotReady)
	assert.Equal(t, "index", res.Failed[1].Kind)
	assert.Equal(t, "saleDate_index", res.Failed[1].Name)
	assert.Equal(t, []string{"receiptNumber_index"}, res.Indexes)
}

func TestRun_AttributeNeverAvailable(t *testing.T) {
	backend := newFakeBackend()
	backend.attributeStatuses["token"] = []Status{
		StatusProcessing, StatusProcessing, StatusProcessing, StatusProcessing,
	}
	p, sleeps := newTestProvisioner(t, backend)

	res, err := p.Run(context.Background(), "ventas", "ventas")
	require.NoError(t, err)

	require.Len(t, res.Failed, 1)
	assert.Equal(t, "token", res.Failed[0].Name)
	assert.ErrorIs(t, res.Failed[0].Err, ErrNotReady)
	// Backoff se duplica y queda acotado por MaxBackoff.
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 40 * time.Millisecond}, *sleeps)
}

func TestRun_RetriesTemporaryCreateErrors(t *testing.T) {
	backend := newFakeBackend()
	backend.createAttributeErr["payments"] = []error{temporaryError{}, temporaryError{}}
	p, _ := newTestProvisioner(t, backend)

	res, err := p.Run(context.Background(), "ventas", "ventas")
	require.NoError(t, err)

	assert.Contains(t, res.Attributes, "payments")
	assert.Equal(t, 3, backend.attributeCreates["payments"])
	assert.Empty(t, res.Failed)
}

func TestRun_PermanentCreateErrorIsNotRetried(t *testing.T) {
	backend := newFakeBackend()
	backend.createAttributeErr["user"] = []error{errors.New("400 invalid key")}
	p, _ := newTestProvisioner(t, backend)

	res, err := p.Run(context.Background(), "ventas", "ventas")
	require.NoError(t, err)

	assert.Equal(t, 1, backend.attributeCreates["user"])
	require.Len(t, res.Failed, 1)
	assert.Equal(t, "user", res.Failed[0].Name)
}

func TestRun_DatabaseLookupFailureAborts(t *testing.T) {
	backend := newFakeBackend()
	backend.findDatabaseErr = errors.New("401 unauthorized")
	p, _ := newTestProvisioner(t, backend)

	res, err := p.Run(context.Background(), "ventas", "ventas")
	require.Error(t, err)
	assert.Nil(t, res)
	assert.Contains(t, err.Error(), "look up database")
	assert.Zero(t, backend.databaseCreates)
}

func TestRun_StopsOnCancelledContext(t *testing.T) {
	backend := newFakeBackend()
	p := New(backend, zaptest.NewLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Run(ctx, "ventas", "ventas")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBackoff(t *testing.T) {
	p := New(newFakeBackend(), nil, WithPolicy(Policy{
		InitialBackoff: time.Second, MaxBackoff: 5 * time.Second, Attempts: 6,
	}))

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 5 * time.Second},
		{10, 5 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, p.backoff(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestSalesSchema_IndexesReferenceDeclaredAttributes(t *testing.T) {
	declared := map[string]bool{}
	for _, a := range SalesAttributes {
		assert.False(t, declared[a.Key], "duplicated attribute %s", a.Key)
		declared[a.Key] = true
		if a.Type == TypeString {
			assert.Positive(t, a.Size, "string attribute %s needs a size", a.Key)
		}
	}
	for _, idx := range SalesIndexes {
		assert.Len(t, idx.Orders, len(idx.Attributes))
		for _, key := range idx.Attributes {
			assert.True(t, declared[key], "index %s uses unknown attribute %s", idx.Key, key)
		}
	}
}
