package sales

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/shopspring/decimal"
)

//go:embed schema/vendor_sale.json
var vendorSaleSchema []byte

const vendorSaleSchemaURL = "vendor_sale.json"

var (
	minInt64 = decimal.NewFromInt(math.MinInt64)
	maxInt64 = decimal.NewFromInt(math.MaxInt64)
)

// VendorSalePayload is the webhook body as sent by the POS vendor.
// Integer fields are decoded as decimals so that values like 12.0 survive decoding.
type VendorSalePayload struct {
	VentaIDPos             decimal.Decimal `json:"ventaIdPos"`
	EmpresaIDCor           decimal.Decimal `json:"empresaIdCor"`
	SucursalIDPos          decimal.Decimal `json:"sucursalIdPos"`
	FechaVentaVnt          string          `json:"fechaVentaVnt"`
	TotalVentaVnt          decimal.Decimal `json:"totalVentaVnt"`
	TotalCantidadVnt       decimal.Decimal `json:"totalCantidadVnt"`
	PagoRecibidoVnt        decimal.Decimal `json:"pagoRecibidoVnt"`
	TotalNetoVnt           decimal.Decimal `json:"totalNetoVnt"`
	TotalDescuentoVnt      decimal.Decimal `json:"totalDescuentoVnt"`
	RutClienteVnt          string          `json:"rutClienteVnt"`
	NombreClienteVnt       string          `json:"nombreClienteVnt"`
	NombreUsuarioAppEmpPos *string         `json:"nombreUsuarioAppEmpPos"`
	FolioDoc               decimal.Decimal `json:"folioDoc"`
	TokenVnt               string          `json:"tokenVnt"`
	Detalles               []VendorDetail  `json:"detalles"`
	Ingresos               []VendorIncome  `json:"ingresos"`
	DteReceptor            json.RawMessage `json:"dteReceptor"`
}

// VendorDetail is one "detalle" (line item) of the vendor payload.
type VendorDetail struct {
	SkuDtv              string          `json:"skuDtv"`
	NombreProductoDtv   string          `json:"nombreProductoDtv"`
	CantidadProductoDtv decimal.Decimal `json:"cantidadProductoDtv"`
	PrecioProductoDtv   decimal.Decimal `json:"precioProductoDtv"`
	TotalProductoDtv    decimal.Decimal `json:"totalProductoDtv"`
}

// VendorIncome is one "ingreso" (payment entry) of the vendor payload.
type VendorIncome struct {
	GlosaInv string          `json:"glosaInv"`
	MontoInv decimal.Decimal `json:"montoInv"`
}

// Layouts accepted for fechaVentaVnt values without an explicit offset.
var zonelessDateLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Mapper turns raw webhook bodies into SaleRecords.
// It is safe for concurrent use.
type Mapper struct {
	schema   *jsonschema.Schema
	validate *validator.Validate
	location *time.Location
}

// NewMapper compiles the vendor schema. Zone-less sale dates are read in loc.
func NewMapper(loc *time.Location) (*Mapper, error) {
	if loc == nil {
		loc = time.UTC
	}

	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft7
	if err := compiler.AddResource(vendorSaleSchemaURL, bytes.NewReader(vendorSaleSchema)); err != nil {
		return nil, fmt.Errorf("add vendor schema: %w", err)
	}
	schema, err := compiler.Compile(vendorSaleSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile vendor schema: %w", err)
	}

	return &Mapper{
		schema:   schema,
		validate: newRecordValidator(),
		location: loc,
	}, nil
}

func newRecordValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// decimal.Decimal se valida como float64 para poder usar gte/lte.
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	// Los textos serializados se limitan en bytes, no en caracteres.
	_ = v.RegisterValidation("maxbytes", func(fl validator.FieldLevel) bool {
		limit, err := strconv.Atoi(fl.Param())
		if err != nil {
			return false
		}
		return len(fl.Field().String()) <= limit
	})
	return v
}

// Map validates body and projects it onto a SaleRecord without an ID.
// Any problem is reported as a *ValidationError.
func (m *Mapper) Map(body []byte) (*SaleRecord, error) {
	var compact bytes.Buffer
	if err := json.Compact(&compact, body); err != nil {
		return nil, &ValidationError{Problems: []string{"body is not valid JSON: " + err.Error()}}
	}

	dec := json.NewDecoder(bytes.NewReader(compact.Bytes()))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, &ValidationError{Problems: []string{"body is not valid JSON: " + err.Error()}}
	}
	if _, ok := doc.(map[string]any); !ok {
		return nil, &ValidationError{Problems: []string{"body must be a JSON object"}}
	}

	if err := m.schema.Validate(doc); err != nil {
		return nil, schemaProblems(err)
	}

	var payload VendorSalePayload
	if err := json.Unmarshal(compact.Bytes(), &payload); err != nil {
		return nil, &ValidationError{Problems: []string{"decode payload: " + err.Error()}}
	}

	record, err := m.project(&payload)
	if err != nil {
		return nil, err
	}
	record.RawPayload = compact.String()

	if err := m.validate.Struct(record); err != nil {
		return nil, recordProblems(err)
	}
	return record, nil
}

func (m *Mapper) project(p *VendorSalePayload) (*SaleRecord, error) {
	problems := &ValidationError{}

	saleDate, err := parseSaleDate(p.FechaVentaVnt, m.location)
	if err != nil {
		problems.Add("fechaVentaVnt: %v", err)
	}

	items := make([]LineItem, 0, len(p.Detalles))
	for _, d := range p.Detalles {
		items = append(items, LineItem{
			SKU:         d.SkuDtv,
			ProductName: d.NombreProductoDtv,
			Quantity:    d.CantidadProductoDtv,
			UnitPrice:   d.PrecioProductoDtv,
			LineTotal:   d.TotalProductoDtv,
		})
	}
	payments := make([]Payment, 0, len(p.Ingresos))
	for _, in := range p.Ingresos {
		payments = append(payments, Payment{Label: in.GlosaInv, Amount: in.MontoInv})
	}

	lineItems, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("serialize line items: %w", err)
	}
	paymentsText, err := json.Marshal(payments)
	if err != nil {
		return nil, fmt.Errorf("serialize payments: %w", err)
	}

	record := &SaleRecord{
		SaleID:         int64Field(problems, "ventaIdPos", p.VentaIDPos),
		CompanyID:      int64Field(problems, "empresaIdCor", p.EmpresaIDCor),
		BranchID:       int64Field(problems, "sucursalIdPos", p.SucursalIDPos),
		SaleDate:       saleDate,
		TotalAmount:    p.TotalVentaVnt,
		TotalQuantity:  int64Field(problems, "totalCantidadVnt", p.TotalCantidadVnt),
		AmountReceived: p.PagoRecibidoVnt,
		NetAmount:      p.TotalNetoVnt,
		DiscountAmount: p.TotalDescuentoVnt,
		CustomerTaxID:  p.RutClienteVnt,
		CustomerName:   p.NombreClienteVnt,
		ReceiptNumber:  int64Field(problems, "folioDoc", p.FolioDoc),
		Token:          p.TokenVnt,
		LineItems:      string(lineItems),
		Payments:       string(paymentsText),
	}
	if p.NombreUsuarioAppEmpPos != nil {
		record.User = *p.NombreUsuarioAppEmpPos
	}
	if receiver := bytes.TrimSpace(p.DteReceptor); len(receiver) > 0 && !bytes.Equal(receiver, []byte("null")) {
		record.TaxReceiver = string(receiver)
	}

	if err := problems.orNil(); err != nil {
		return nil, err
	}
	return record, nil
}

// int64Field reports values IntPart would truncate or wrap.
func int64Field(problems *ValidationError, name string, d decimal.Decimal) int64 {
	if !d.IsInteger() || d.LessThan(minInt64) || d.GreaterThan(maxInt64) {
		problems.Add("%s: %s does not fit a 64-bit integer", name, d.String())
		return 0
	}
	return d.IntPart()
}

func parseSaleDate(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	for _, layout := range zonelessDateLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", value)
}

func schemaProblems(err error) error {
	problems := &ValidationError{}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		problems.Add("%v", err)
		return problems
	}
	collectSchemaCauses(ve, problems)
	return problems.orNil()
}

func collectSchemaCauses(ve *jsonschema.ValidationError, problems *ValidationError) {
	if len(ve.Causes) == 0 {
		location := ve.InstanceLocation
		if location == "" {
			location = "/"
		}
		problems.Add("%s: %s", location, ve.Message)
		return
	}
	for _, cause := range ve.Causes {
		collectSchemaCauses(cause, problems)
	}
}

func recordProblems(err error) error {
	problems := &ValidationError{}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		problems.Add("%v", err)
		return problems
	}
	for _, fe := range fieldErrs {
		if fe.Param() != "" {
			problems.Add("%s: must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param())
		} else {
			problems.Add("%s: must satisfy %s", fe.Field(), fe.Tag())
		}
	}
	return problems.orNil()
}
