package appwrite

import (
	"context"
	"net/http"
	"net/url"
)

// Database is an Appwrite database container.
type Database struct {
	ID      string `json:"$id"`
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

// Collection is an Appwrite collection.
type Collection struct {
	ID          string   `json:"$id"`
	DatabaseID  string   `json:"databaseId"`
	Name        string   `json:"name"`
	Enabled     bool     `json:"enabled"`
	Permissions []string `json:"$permissions"`
}

// Attribute describes a collection attribute as returned by the API.
type Attribute struct {
	Key      string `json:"key"`
	Type     string `json:"type"`
	Status   string `json:"status"`
	Error    string `json:"error"`
	Required bool   `json:"required"`
	Size     int    `json:"size,omitempty"`
}

// Index describes a collection index as returned by the API.
type Index struct {
	Key        string   `json:"key"`
	Type       string   `json:"type"`
	Status     string   `json:"status"`
	Error      string   `json:"error"`
	Attributes []string `json:"attributes"`
	Orders     []string `json:"orders"`
}

// Document is the system part of any stored document.
type Document struct {
	ID           string `json:"$id"`
	CollectionID string `json:"$collectionId"`
	DatabaseID   string `json:"$databaseId"`
	CreatedAt    string `json:"$createdAt"`
}

type databaseList struct {
	Total     int        `json:"total"`
	Databases []Database `json:"databases"`
}

type collectionList struct {
	Total       int          `json:"total"`
	Collections []Collection `json:"collections"`
}

// ListDatabases returns the databases matching queries.
func (c *Client) ListDatabases(ctx context.Context, queries ...Query) ([]Database, error) {
	var out databaseList
	if err := c.do(ctx, http.MethodGet, "/databases", encodeQueries(queries), nil, &out); err != nil {
		return nil, err
	}
	return out.Databases, nil
}

// CreateDatabase creates an enabled database.
func (c *Client) CreateDatabase(ctx context.Context, id, name string) (*Database, error) {
	body := map[string]any{"databaseId": id, "name": name, "enabled": true}
	var out Database
	if err := c.do(ctx, http.MethodPost, "/databases", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListCollections returns the collections of databaseID matching queries.
func (c *Client) ListCollections(ctx context.Context, databaseID string, queries ...Query) ([]Collection, error) {
	var out collectionList
	path := "/databases/" + url.PathEscape(databaseID) + "/collections"
	if err := c.do(ctx, http.MethodGet, path, encodeQueries(queries), nil, &out); err != nil {
		return nil, err
	}
	return out.Collections, nil
}

// CreateCollection creates an enabled collection with collection-level permissions.
func (c *Client) CreateCollection(ctx context.Context, databaseID, id, name string, permissions []string) (*Collection, error) {
	body := map[string]any{
		"collectionId":     id,
		"name":             name,
		"permissions":      permissions,
		"documentSecurity": false,
		"enabled":          true,
	}
	var out Collection
	path := "/databases/" + url.PathEscape(databaseID) + "/collections"
	if err := c.do(ctx, http.MethodPost, path, nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func collectionPath(databaseID, collectionID string) string {
	return "/databases/" + url.PathEscape(databaseID) + "/collections/" + url.PathEscape(collectionID)
}

// CreateStringAttribute adds a string attribute of the given size.
func (c *Client) CreateStringAttribute(ctx context.Context, databaseID, collectionID, key string, size int, required bool) error {
	body := map[string]any{"key": key, "size": size, "required": required}
	return c.do(ctx, http.MethodPost, collectionPath(databaseID, collectionID)+"/attributes/string", nil, body, nil)
}

// CreateIntegerAttribute adds a 64-bit integer attribute.
func (c *Client) CreateIntegerAttribute(ctx context.Context, databaseID, collectionID, key string, required bool) error {
	body := map[string]any{"key": key, "required": required, "min": 0}
	return c.do(ctx, http.MethodPost, collectionPath(databaseID, collectionID)+"/attributes/integer", nil, body, nil)
}

// CreateFloatAttribute adds a double attribute.
func (c *Client) CreateFloatAttribute(ctx context.Context, databaseID, collectionID, key string, required bool) error {
	body := map[string]any{"key": key, "required": required, "min": 0}
	return c.do(ctx, http.MethodPost, collectionPath(databaseID, collectionID)+"/attributes/float", nil, body, nil)
}

// CreateDatetimeAttribute adds a datetime attribute.
func (c *Client) CreateDatetimeAttribute(ctx context.Context, databaseID, collectionID, key string, required bool) error {
	body := map[string]any{"key": key, "required": required}
	return c.do(ctx, http.MethodPost, collectionPath(databaseID, collectionID)+"/attributes/datetime", nil, body, nil)
}

// GetAttribute returns the attribute, including its processing status.
func (c *Client) GetAttribute(ctx context.Context, databaseID, collectionID, key string) (*Attribute, error) {
	var out Attribute
	path := collectionPath(databaseID, collectionID) + "/attributes/" + url.PathEscape(key)
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateIndex adds a key index over attributes with the given orders ("asc"/"desc").
func (c *Client) CreateIndex(ctx context.Context, databaseID, collectionID, key string, attributes, orders []string) error {
	body := map[string]any{"key": key, "type": "key", "attributes": attributes, "orders": orders}
	return c.do(ctx, http.MethodPost, collectionPath(databaseID, collectionID)+"/indexes", nil, body, nil)
}

// GetIndex returns the index, including its processing status.
func (c *Client) GetIndex(ctx context.Context, databaseID, collectionID, key string) (*Index, error) {
	var out Index
	path := collectionPath(databaseID, collectionID) + "/indexes/" + url.PathEscape(key)
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateDocument stores data under documentID.
func (c *Client) CreateDocument(ctx context.Context, databaseID, collectionID, documentID string, data any) (*Document, error) {
	body := map[string]any{"documentId": documentID, "data": data}
	var out Document
	if err := c.do(ctx, http.MethodPost, collectionPath(databaseID, collectionID)+"/documents", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListDocuments decodes {"total", "documents"} into out.
func (c *Client) ListDocuments(ctx context.Context, databaseID, collectionID string, out any, queries ...Query) error {
	return c.do(ctx, http.MethodGet, collectionPath(databaseID, collectionID)+"/documents", encodeQueries(queries), nil, out)
}
