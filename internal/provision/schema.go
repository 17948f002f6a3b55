package provision

// AttributeType is the storage type of a collection attribute.
type AttributeType string

const (
	TypeString   AttributeType = "string"
	TypeInteger  AttributeType = "integer"
	TypeFloat    AttributeType = "float"
	TypeDatetime AttributeType = "datetime"
)

// Attribute is one typed field of the sales collection.
type Attribute struct {
	Key      string
	Type     AttributeType
	Size     int // strings only
	Required bool
}

// Order of an index key.
type Order string

const (
	Asc  Order = "asc"
	Desc Order = "desc"
)

// Index is a key index over one or more attributes.
type Index struct {
	Key        string
	Attributes []string
	Orders     []Order
}

// Text sizes of the string attributes.
const (
	taxIDSize = 20
	nameSize  = 255
	jsonSize  = 65535
)

// SalesAttributes is the attribute set of the sales collection, in creation order.
var SalesAttributes = []Attribute{
	{Key: "saleId", Type: TypeInteger, Required: true},
	{Key: "companyId", Type: TypeInteger, Required: true},
	{Key: "branchId", Type: TypeInteger, Required: true},
	{Key: "saleDate", Type: TypeDatetime, Required: true},
	{Key: "totalAmount", Type: TypeFloat, Required: true},
	{Key: "totalQuantity", Type: TypeInteger, Required: true},
	{Key: "amountReceived", Type: TypeFloat, Required: true},
	{Key: "netAmount", Type: TypeFloat, Required: true},
	{Key: "discountAmount", Type: TypeFloat, Required: true},
	{Key: "customerTaxId", Type: TypeString, Size: taxIDSize, Required: true},
	{Key: "customerName", Type: TypeString, Size: nameSize, Required: true},
	{Key: "cashier", Type: TypeString, Size: nameSize},
	{Key: "user", Type: TypeString, Size: nameSize},
	{Key: "receiptNumber", Type: TypeInteger, Required: true},
	{Key: "token", Type: TypeString, Size: nameSize, Required: true},
	{Key: "lineItems", Type: TypeString, Size: jsonSize, Required: true},
	{Key: "payments", Type: TypeString, Size: jsonSize, Required: true},
	{Key: "taxReceiver", Type: TypeString, Size: jsonSize},
	{Key: "rawPayload", Type: TypeString, Size: jsonSize, Required: true},
}

// SalesIndexes back the date listing and receipt lookups.
var SalesIndexes = []Index{
	{Key: "saleDate_index", Attributes: []string{"saleDate"}, Orders: []Order{Desc}},
	{Key: "receiptNumber_index", Attributes: []string{"receiptNumber"}, Orders: []Order{Asc}},
}
