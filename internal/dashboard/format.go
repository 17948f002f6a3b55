package dashboard

import (
	"html/template"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Formatter renders amounts, quantities and dates for one locale and zone.
type Formatter struct {
	printer *message.Printer
	digits  int
	loc     *time.Location
}

// NewFormatter falls back to Spanish when locale does not parse and to UTC without loc.
func NewFormatter(locale string, digits int, loc *time.Location) *Formatter {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.Spanish
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Formatter{printer: message.NewPrinter(tag), digits: digits, loc: loc}
}

// Currency formats d as "$" followed by the grouped amount with the configured fraction digits.
func (f *Formatter) Currency(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}
	v := d.Round(int32(f.digits)).InexactFloat64()
	return sign + "$" + f.printer.Sprint(number.Decimal(v, number.Scale(f.digits)))
}

// Quantity formats a line quantity, which may be fractional (weight-based products).
func (f *Formatter) Quantity(d decimal.Decimal) string {
	return f.printer.Sprint(number.Decimal(d.InexactFloat64(), number.MaxFractionDigits(3)))
}

func (f *Formatter) Date(t time.Time) string     { return t.In(f.loc).Format("02-01-2006") }
func (f *Formatter) DateTime(t time.Time) string { return t.In(f.loc).Format("02-01-2006 15:04") }
func (f *Formatter) Clock(t time.Time) string    { return t.In(f.loc).Format("15:04") }

// Funcs exposes the formatter to templates.
func (f *Formatter) Funcs() template.FuncMap {
	return template.FuncMap{
		"currency": f.Currency,
		"quantity": f.Quantity,
		"date":     f.Date,
		"datetime": f.DateTime,
		"clock":    f.Clock,
	}
}
