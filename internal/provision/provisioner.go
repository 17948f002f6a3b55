// Package provision creates the sales database, collection, attributes and indexes.
package provision

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrAlreadyExists is wrapped by backends when a resource is already there.
var ErrAlreadyExists = errors.New("already exists")

// ErrNotReady is returned when a resource never reached the available status.
var ErrNotReady = errors.New("resource not available")

// Status is the processing state a backend reports for an attribute or index.
type Status string

const (
	StatusAvailable  Status = "available"
	StatusProcessing Status = "processing"
	StatusFailed     Status = "failed"
	StatusStuck      Status = "stuck"
)

// Backend is the document store seen by the provisioner.
type Backend interface {
	FindDatabase(ctx context.Context, name string) (id string, found bool, err error)
	CreateDatabase(ctx context.Context, name string) (id string, err error)
	FindCollection(ctx context.Context, databaseID, name string) (id string, found bool, err error)
	CreateCollection(ctx context.Context, databaseID, name string) (id string, err error)
	CreateAttribute(ctx context.Context, databaseID, collectionID string, attr Attribute) error
	AttributeStatus(ctx context.Context, databaseID, collectionID, key string) (Status, error)
	CreateIndex(ctx context.Context, databaseID, collectionID string, idx Index) error
	IndexStatus(ctx context.Context, databaseID, collectionID, key string) (Status, error)
}

// Policy bounds retries of create calls and status polling.
type Policy struct {
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Attempts       int
}

// DefaultPolicy polls for roughly a minute per resource.
var DefaultPolicy = Policy{
	InitialBackoff: 500 * time.Millisecond,
	MaxBackoff:     8 * time.Second,
	Attempts:       12,
}

// Failure is one attribute or index that could not be provisioned.
type Failure struct {
	Kind string // "attribute" or "index"
	Name string
	Err  error
}

// Result summarizes a run.
type Result struct {
	DatabaseID        string
	CollectionID      string
	DatabaseCreated   bool
	CollectionCreated bool
	Attributes        []string
	Indexes           []string
	Failed            []Failure
}

// Provisioner applies the sales schema to a Backend.
type Provisioner struct {
	backend    Backend
	logger     *zap.Logger
	limiter    *rate.Limiter
	policy     Policy
	attributes []Attribute
	indexes    []Index
	sleep      func(context.Context, time.Duration) error
}

// Option configures a Provisioner.
type Option func(*Provisioner)

// WithRate paces backend calls to perSecond requests per second.
func WithRate(perSecond float64) Option {
	return func(p *Provisioner) {
		if perSecond > 0 {
			p.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

// WithPolicy overrides retry and polling bounds.
func WithPolicy(policy Policy) Option {
	return func(p *Provisioner) {
		if policy.Attempts > 0 {
			p.policy = policy
		}
	}
}

// WithSchema replaces the default sales attributes and indexes.
func WithSchema(attributes []Attribute, indexes []Index) Option {
	return func(p *Provisioner) {
		p.attributes = attributes
		p.indexes = indexes
	}
}

// New creates a Provisioner.
func New(backend Backend, logger *zap.Logger, opts ...Option) *Provisioner {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Provisioner{
		backend:    backend,
		logger:     logger,
		limiter:    rate.NewLimiter(rate.Limit(2), 1),
		policy:     DefaultPolicy,
		attributes: SalesAttributes,
		indexes:    SalesIndexes,
		sleep:      sleepContext,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run makes sure the database and collection exist (by name) and applies every attribute and index.
// Only database or collection failures abort the run; each attribute and index fails on its own.
func (p *Provisioner) Run(ctx context.Context, databaseName, collectionName string) (*Result, error) {
	res := &Result{}

	dbID, created, err := p.ensure(ctx, "database", databaseName,
		func(ctx context.Context) (string, bool, error) { return p.backend.FindDatabase(ctx, databaseName) },
		func(ctx context.Context) (string, error) { return p.backend.CreateDatabase(ctx, databaseName) },
	)
	if err != nil {
		return nil, err
	}
	res.DatabaseID, res.DatabaseCreated = dbID, created

	collID, created, err := p.ensure(ctx, "collection", collectionName,
		func(ctx context.Context) (string, bool, error) {
			return p.backend.FindCollection(ctx, dbID, collectionName)
		},
		func(ctx context.Context) (string, error) { return p.backend.CreateCollection(ctx, dbID, collectionName) },
	)
	if err != nil {
		return res, err
	}
	res.CollectionID, res.CollectionCreated = collID, created

	ready := make(map[string]bool, len(p.attributes))
	for _, attr := range p.attributes {
		if err := p.provisionAttribute(ctx, dbID, collID, attr); err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			p.logger.Error("attribute not provisioned", zap.String("attribute", attr.Key), zap.Error(err))
			res.Failed = append(res.Failed, Failure{Kind: "attribute", Name: attr.Key, Err: err})
			continue
		}
		p.logger.Info("attribute available", zap.String("attribute", attr.Key), zap.String("type", string(attr.Type)))
		ready[attr.Key] = true
		res.Attributes = append(res.Attributes, attr.Key)
	}

	for _, idx := range p.indexes {
		err := p.provisionIndex(ctx, dbID, collID, idx, ready)
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			p.logger.Error("index not provisioned", zap.String("index", idx.Key), zap.Error(err))
			res.Failed = append(res.Failed, Failure{Kind: "index", Name: idx.Key, Err: err})
			continue
		}
		p.logger.Info("index available", zap.String("index", idx.Key))
		res.Indexes = append(res.Indexes, idx.Key)
	}

	return res, nil
}

func (p *Provisioner) ensure(
	ctx context.Context,
	kind, name string,
	find func(context.Context) (string, bool, error),
	create func(context.Context) (string, error),
) (string, bool, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return "", false, err
	}
	id, found, err := find(ctx)
	if err != nil {
		return "", false, fmt.Errorf("look up %s %q: %w", kind, name, err)
	}
	if found {
		p.logger.Info("reusing existing "+kind, zap.String("name", name), zap.String("id", id))
		return id, false, nil
	}

	var createdID string
	err = p.retry(ctx, func(ctx context.Context) error {
		var err error
		createdID, err = create(ctx)
		return err
	})
	if err != nil {
		return "", false, fmt.Errorf("create %s %q: %w", kind, name, err)
	}
	p.logger.Info(kind+" created", zap.String("name", name), zap.String("id", createdID))
	return createdID, true, nil
}

func (p *Provisioner) provisionAttribute(ctx context.Context, dbID, collID string, attr Attribute) error {
	err := p.retry(ctx, func(ctx context.Context) error {
		return p.backend.CreateAttribute(ctx, dbID, collID, attr)
	})
	switch {
	case errors.Is(err, ErrAlreadyExists):
		p.logger.Debug("attribute already exists", zap.String("attribute", attr.Key))
	case err != nil:
		return fmt.Errorf("create attribute: %w", err)
	}
	return p.awaitAvailable(ctx, func(ctx context.Context) (Status, error) {
		return p.backend.AttributeStatus(ctx, dbID, collID, attr.Key)
	})
}

func (p *Provisioner) provisionIndex(ctx context.Context, dbID, collID string, idx Index, ready map[string]bool) error {
	for _, key := range idx.Attributes {
		if !ready[key] {
			return fmt.Errorf("attribute %q is not available", key)
		}
	}
	err := p.retry(ctx, func(ctx context.Context) error {
		return p.backend.CreateIndex(ctx, dbID, collID, idx)
	})
	switch {
	case errors.Is(err, ErrAlreadyExists):
		p.logger.Debug("index already exists", zap.String("index", idx.Key))
	case err != nil:
		return fmt.Errorf("create index: %w", err)
	}
	return p.awaitAvailable(ctx, func(ctx context.Context) (Status, error) {
		return p.backend.IndexStatus(ctx, dbID, collID, idx.Key)
	})
}

// retry runs fn until it succeeds, fails with a non-temporary error or attempts run out.
func (p *Provisioner) retry(ctx context.Context, fn func(context.Context) error) error {
	var err error
	for attempt := 1; attempt <= p.policy.Attempts; attempt++ {
		if err = p.limiter.Wait(ctx); err != nil {
			return err
		}
		if err = fn(ctx); err == nil || !isTemporary(err) {
			return err
		}
		p.logger.Debug("temporary backend error, backing off", zap.Int("attempt", attempt), zap.Error(err))
		if attempt < p.policy.Attempts {
			if serr := p.sleep(ctx, p.backoff(attempt)); serr != nil {
				return serr
			}
		}
	}
	return err
}

// awaitAvailable polls status with backoff until it reports available.
func (p *Provisioner) awaitAvailable(ctx context.Context, status func(context.Context) (Status, error)) error {
	var last Status
	for attempt := 1; attempt <= p.policy.Attempts; attempt++ {
		if err := p.limiter.Wait(ctx); err != nil {
			return err
		}
		s, err := status(ctx)
		switch {
		case err != nil && !isTemporary(err):
			return fmt.Errorf("read status: %w", err)
		case err == nil && s == StatusAvailable:
			return nil
		case err == nil && (s == StatusFailed || s == StatusStuck):
			return fmt.Errorf("%w: status %s", ErrNotReady, s)
		}
		last = s
		if attempt < p.policy.Attempts {
			if err := p.sleep(ctx, p.backoff(attempt)); err != nil {
				return err
			}
		}
	}
	return fmt.Errorf("%w after %d checks (last status %q)", ErrNotReady, p.policy.Attempts, last)
}

func (p *Provisioner) backoff(attempt int) time.Duration {
	d := p.policy.InitialBackoff
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= p.policy.MaxBackoff {
			return p.policy.MaxBackoff
		}
	}
	return d
}

func isTemporary(err error) bool {
	var t interface{ Temporary() bool }
	return errors.As(err, &t) && t.Temporary()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
