package appwrite

import (
	"context"
	"errors"
	"fmt"

	"api_ventas/internal/provision"
)

// Provisioner exposes the Client as a provision.Backend.
type Provisioner struct {
	client *Client
}

// NewProvisioner wraps client.
func NewProvisioner(client *Client) *Provisioner {
	return &Provisioner{client: client}
}

var _ provision.Backend = (*Provisioner)(nil)

// FindDatabase looks a database up by name.
func (p *Provisioner) FindDatabase(ctx context.Context, name string) (string, bool, error) {
	dbs, err := p.client.ListDatabases(ctx, Equal("name", name))
	if err != nil {
		return "", false, err
	}
	for _, db := range dbs {
		if db.Name == name {
			return db.ID, true, nil
		}
	}
	return "", false, nil
}

func (p *Provisioner) CreateDatabase(ctx context.Context, name string) (string, error) {
	db, err := p.client.CreateDatabase(ctx, UniqueID, name)
	if err != nil {
		return "", alreadyExists(err)
	}
	return db.ID, nil
}

// FindCollection looks a collection up by name inside databaseID.
func (p *Provisioner) FindCollection(ctx context.Context, databaseID, name string) (string, bool, error) {
	colls, err := p.client.ListCollections(ctx, databaseID, Equal("name", name))
	if err != nil {
		return "", false, err
	}
	for _, c := range colls {
		if c.Name == name {
			return c.ID, true, nil
		}
	}
	return "", false, nil
}

// CreateCollection creates the collection readable and writable by any caller;
// the webhook and the dashboard both run without a user session.
func (p *Provisioner) CreateCollection(ctx context.Context, databaseID, name string) (string, error) {
	perms := []string{PermissionRead(RoleAny), PermissionCreate(RoleAny)}
	c, err := p.client.CreateCollection(ctx, databaseID, UniqueID, name, perms)
	if err != nil {
		return "", alreadyExists(err)
	}
	return c.ID, nil
}

func (p *Provisioner) CreateAttribute(ctx context.Context, databaseID, collectionID string, attr provision.Attribute) error {
	var err error
	switch attr.Type {
	case provision.TypeString:
		err = p.client.CreateStringAttribute(ctx, databaseID, collectionID, attr.Key, attr.Size, attr.Required)
	case provision.TypeInteger:
		err = p.client.CreateIntegerAttribute(ctx, databaseID, collectionID, attr.Key, attr.Required)
	case provision.TypeFloat:
		err = p.client.CreateFloatAttribute(ctx, databaseID, collectionID, attr.Key, attr.Required)
	case provision.TypeDatetime:
		err = p.client.CreateDatetimeAttribute(ctx, databaseID, collectionID, attr.Key, attr.Required)
	default:
		return fmt.Errorf("unsupported attribute type %q", attr.Type)
	}
	return alreadyExists(err)
}

func (p *Provisioner) AttributeStatus(ctx context.Context, databaseID, collectionID, key string) (provision.Status, error) {
	a, err := p.client.GetAttribute(ctx, databaseID, collectionID, key)
	if err != nil {
		return "", err
	}
	return provision.Status(a.Status), nil
}

func (p *Provisioner) CreateIndex(ctx context.Context, databaseID, collectionID string, idx provision.Index) error {
	orders := make([]string, len(idx.Orders))
	for i, o := range idx.Orders {
		orders[i] = string(o)
	}
	err := p.client.CreateIndex(ctx, databaseID, collectionID, idx.Key, idx.Attributes, orders)
	return alreadyExists(err)
}

func (p *Provisioner) IndexStatus(ctx context.Context, databaseID, collectionID, key string) (provision.Status, error) {
	i, err := p.client.GetIndex(ctx, databaseID, collectionID, key)
	if err != nil {
		return "", err
	}
	return provision.Status(i.Status), nil
}

// alreadyExists turns a 409 into provision.ErrAlreadyExists and leaves others untouched.
func alreadyExists(err error) error {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Conflict() {
		return fmt.Errorf("%w: %s", provision.ErrAlreadyExists, apiErr.Message)
	}
	return err
}
