package mongostore

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"api_ventas/internal/provision"
)

// Server error codes.
const (
	codeNamespaceExists       = 48
	codeIndexOptionsConflict  = 85
	codeIndexKeySpecsConflict = 86
)

// jsonSchema is the $jsonSchema validator kept on the sales collection.
type jsonSchema struct {
	BSONType   string                    `bson:"bsonType"`
	Required   []string                  `bson:"required,omitempty"`
	Properties map[string]propertySchema `bson:"properties"`
}

type propertySchema struct {
	BSONType  string   `bson:"bsonType"`
	MaxLength int      `bson:"maxLength,omitempty"`
	Minimum   *float64 `bson:"minimum,omitempty"`
}

type collectionSpec struct {
	Options struct {
		Validator struct {
			Schema *jsonSchema `bson:"$jsonSchema"`
		} `bson:"validator"`
	} `bson:"options"`
}

func newSchema() *jsonSchema {
	return &jsonSchema{BSONType: "object", Properties: map[string]propertySchema{}}
}

// propertyFor translates a provisioned attribute into its validator property.
func propertyFor(attr provision.Attribute) (propertySchema, error) {
	zero := 0.0
	switch attr.Type {
	case provision.TypeString:
		return propertySchema{BSONType: "string", MaxLength: attr.Size}, nil
	case provision.TypeInteger:
		return propertySchema{BSONType: "long", Minimum: &zero}, nil
	case provision.TypeFloat:
		return propertySchema{BSONType: "double", Minimum: &zero}, nil
	case provision.TypeDatetime:
		return propertySchema{BSONType: "date"}, nil
	}
	return propertySchema{}, fmt.Errorf("unsupported attribute type %q", attr.Type)
}

// add puts attr into the schema; false if the key is already declared.
func (s *jsonSchema) add(attr provision.Attribute) (bool, error) {
	if _, ok := s.Properties[attr.Key]; ok {
		return false, nil
	}
	prop, err := propertyFor(attr)
	if err != nil {
		return false, err
	}
	s.Properties[attr.Key] = prop
	if attr.Required {
		s.Required = append(s.Required, attr.Key)
	}
	return true, nil
}

// Provisioner is the MongoDB provision.Backend. Database IDs are database names and
// collection IDs are collection names; a database exists once it holds a collection.
type Provisioner struct {
	client *mongo.Client
}

// NewProvisioner wraps client.
func NewProvisioner(client *mongo.Client) *Provisioner {
	return &Provisioner{client: client}
}

var _ provision.Backend = (*Provisioner)(nil)

func (p *Provisioner) FindDatabase(ctx context.Context, name string) (string, bool, error) {
	names, err := p.client.ListDatabaseNames(ctx, bson.D{{Key: "name", Value: name}})
	if err != nil {
		return "", false, err
	}
	return name, len(names) > 0, nil
}

// CreateDatabase only names the database; MongoDB creates it with the first collection.
func (p *Provisioner) CreateDatabase(_ context.Context, name string) (string, error) {
	return name, nil
}

func (p *Provisioner) FindCollection(ctx context.Context, databaseID, name string) (string, bool, error) {
	names, err := p.client.Database(databaseID).ListCollectionNames(ctx, bson.D{{Key: "name", Value: name}})
	if err != nil {
		return "", false, err
	}
	return name, len(names) > 0, nil
}

func (p *Provisioner) CreateCollection(ctx context.Context, databaseID, name string) (string, error) {
	opts := options.CreateCollection().
		SetValidator(bson.D{{Key: "$jsonSchema", Value: newSchema()}}).
		SetValidationLevel("moderate")
	err := p.client.Database(databaseID).CreateCollection(ctx, name, opts)
	if hasCode(err, codeNamespaceExists) {
		return "", fmt.Errorf("%w: collection %s", provision.ErrAlreadyExists, name)
	}
	if err != nil {
		return "", err
	}
	return name, nil
}

// CreateAttribute adds the attribute to the collection validator through collMod.
func (p *Provisioner) CreateAttribute(ctx context.Context, databaseID, collectionID string, attr provision.Attribute) error {
	db := p.client.Database(databaseID)
	schema, err := readSchema(ctx, db, collectionID)
	if err != nil {
		return err
	}
	added, err := schema.add(attr)
	if err != nil {
		return err
	}
	if !added {
		return fmt.Errorf("%w: attribute %s", provision.ErrAlreadyExists, attr.Key)
	}
	cmd := bson.D{
		{Key: "collMod", Value: collectionID},
		{Key: "validator", Value: bson.D{{Key: "$jsonSchema", Value: schema}}},
		{Key: "validationLevel", Value: "moderate"},
	}
	return db.RunCommand(ctx, cmd).Err()
}

// AttributeStatus is available once the validator declares key. collMod is synchronous,
// so anything else means the attribute was never created.
func (p *Provisioner) AttributeStatus(ctx context.Context, databaseID, collectionID, key string) (provision.Status, error) {
	schema, err := readSchema(ctx, p.client.Database(databaseID), collectionID)
	if err != nil {
		return "", err
	}
	if _, ok := schema.Properties[key]; ok {
		return provision.StatusAvailable, nil
	}
	return provision.StatusProcessing, nil
}

func (p *Provisioner) CreateIndex(ctx context.Context, databaseID, collectionID string, idx provision.Index) error {
	keys := bson.D{}
	for i, attr := range idx.Attributes {
		dir := 1
		if i < len(idx.Orders) && idx.Orders[i] == provision.Desc {
			dir = -1
		}
		keys = append(keys, bson.E{Key: attr, Value: dir})
	}
	_, err := p.client.Database(databaseID).Collection(collectionID).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    keys,
		Options: options.Index().SetName(idx.Key),
	})
	if hasCode(err, codeIndexOptionsConflict, codeIndexKeySpecsConflict) {
		return fmt.Errorf("%w: index %s", provision.ErrAlreadyExists, idx.Key)
	}
	return err
}

// IndexStatus reports available once the index is listed; builds finish before CreateOne returns.
func (p *Provisioner) IndexStatus(ctx context.Context, databaseID, collectionID, key string) (provision.Status, error) {
	specs, err := p.client.Database(databaseID).Collection(collectionID).Indexes().ListSpecifications(ctx)
	if err != nil {
		return "", err
	}
	for _, spec := range specs {
		if spec.Name == key {
			return provision.StatusAvailable, nil
		}
	}
	return provision.StatusProcessing, nil
}

func readSchema(ctx context.Context, db *mongo.Database, collection string) (*jsonSchema, error) {
	cursor, err := db.ListCollections(ctx, bson.D{{Key: "name", Value: collection}})
	if err != nil {
		return nil, err
	}
	var specs []collectionSpec
	if err := cursor.All(ctx, &specs); err != nil {
		return nil, err
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("collection %s not found", collection)
	}
	schema := specs[0].Options.Validator.Schema
	if schema == nil {
		return newSchema(), nil
	}
	if schema.Properties == nil {
		schema.Properties = map[string]propertySchema{}
	}
	return schema, nil
}

func hasCode(err error, codes ...int32) bool {
	var cmdErr mongo.CommandError
	if !errors.As(err, &cmdErr) {
		return false
	}
	for _, c := range codes {
		if cmdErr.Code == c {
			return true
		}
	}
	return false
}
