package domain

import (
	"regexp"
	"strconv"
	"strings"
)

// ValueKind tags the variant held by a ValuePayload.
type ValueKind string

const (
	VALUE_QUANTITY        ValueKind = "QUANTITY"
	VALUE_TEXT            ValueKind = "TEXT"
	VALUE_CODED           ValueKind = "CODED"
	VALUE_BOOLEAN         ValueKind = "BOOLEAN"
	VALUE_INTEGER         ValueKind = "INTEGER"
	VALUE_UNREPRESENTABLE ValueKind = "UNREPRESENTABLE"
)

// Literal renderings of boolean observation values.
const (
	BoolPositive = "Positive"
	BoolNegative = "Negative"
)

// ValuePayload is the tagged union of the shapes an observation value can take.
type ValuePayload interface {
	Kind() ValueKind
	// Display renders the value without its unit.
	Display() string
	// Numeric reports the value as a number. Only quantities and integers are numeric.
	Numeric() (float64, bool)
}

type QuantityValue struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit,omitempty"`
}

func (QuantityValue) Kind() ValueKind            { return VALUE_QUANTITY }
func (v QuantityValue) Display() string          { return FormatNumber(v.Value) }
func (v QuantityValue) Numeric() (float64, bool) { return v.Value, true }

type TextValue struct {
	Text string `json:"text"`
}

func (TextValue) Kind() ValueKind          { return VALUE_TEXT }
func (v TextValue) Display() string        { return v.Text }
func (TextValue) Numeric() (float64, bool) { return 0, false }

// CodedValue holds the resolved label of a coded concept.
type CodedValue struct {
	Label  string `json:"label"`
	System string `json:"system,omitempty"`
	Code   string `json:"code,omitempty"`
}

func (CodedValue) Kind() ValueKind          { return VALUE_CODED }
func (v CodedValue) Display() string        { return v.Label }
func (CodedValue) Numeric() (float64, bool) { return 0, false }

type BoolValue struct {
	Value bool `json:"value"`
}

func (BoolValue) Kind() ValueKind { return VALUE_BOOLEAN }
func (v BoolValue) Display() string {
	if v.Value {
		return BoolPositive
	}
	return BoolNegative
}
func (BoolValue) Numeric() (float64, bool) { return 0, false }

type IntValue struct {
	Value int64 `json:"value"`
}

func (IntValue) Kind() ValueKind            { return VALUE_INTEGER }
func (v IntValue) Display() string          { return strconv.FormatInt(v.Value, 10) }
func (v IntValue) Numeric() (float64, bool) { return float64(v.Value), true }

// Unrepresentable marks an observation whose value could not be mapped to any variant.
type Unrepresentable struct {
	Reason string `json:"reason"`
}

func (Unrepresentable) Kind() ValueKind          { return VALUE_UNREPRESENTABLE }
func (Unrepresentable) Display() string          { return "" }
func (Unrepresentable) Numeric() (float64, bool) { return 0, false }

// IsRepresentable reports whether v carries an actual value.
func IsRepresentable(v ValuePayload) bool {
	return v != nil && v.Kind() != VALUE_UNREPRESENTABLE
}

// MapValue maps the value fields of an observation onto the union. The order is
// quantity, string, coded concept, boolean, integer; the first populated field wins.
// It never returns nil.
func MapValue(o *Observation) ValuePayload {
	if o == nil {
		return Unrepresentable{Reason: "no observation"}
	}
	if q := o.ValueQuantity; q != nil {
		if q.Value == nil {
			return Unrepresentable{Reason: "quantity without value"}
		}
		return QuantityValue{Value: *q.Value, Unit: q.Unit}
	}
	if o.ValueString != nil {
		return TextValue{Text: *o.ValueString}
	}
	if c := o.ValueCodeableConcept; c != nil {
		first := c.FirstCoding()
		label := c.Text
		if label == "" {
			label = first.Display
		}
		if label == "" {
			label = first.Code
		}
		if label == "" {
			return Unrepresentable{Reason: "coded concept without text, display or code"}
		}
		return CodedValue{Label: label, System: first.System, Code: first.Code}
	}
	if o.ValueBoolean != nil {
		return BoolValue{Value: *o.ValueBoolean}
	}
	if o.ValueInteger != nil {
		return IntValue{Value: *o.ValueInteger}
	}
	return Unrepresentable{Reason: "no value field"}
}

// FormatNumber renders a float the way a JSON number would print it: no trailing zeros.
func FormatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

var leadingNumber = regexp.MustCompile(`^[-+]?(\d+(\.\d*)?|\.\d+)`)

// ParseNumber parses a numeric string, accepting a comma as decimal separator.
// Trailing text after a leading number is ignored, so "5.2 mmol/L" yields 5.2.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	if s == "" {
		return 0, false
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f, true
	}
	m := leadingNumber.FindString(s)
	if m == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Float returns a pointer to f.
func Float(f float64) *float64 {
	return &f
}
