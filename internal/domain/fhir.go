package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ResourceKind identifies a FHIR resource type served by the upstream proxy.
type ResourceKind string

const (
	KindPatient             ResourceKind = "Patient"
	KindObservation         ResourceKind = "Observation"
	KindCondition           ResourceKind = "Condition"
	KindMedicationStatement ResourceKind = "MedicationStatement"
	KindMedicationRequest   ResourceKind = "MedicationRequest"
	KindImmunization        ResourceKind = "Immunization"
	KindDocumentReference   ResourceKind = "DocumentReference"
	KindDiagnosticReport    ResourceKind = "DiagnosticReport"
	KindAppointment         ResourceKind = "Appointment"
	KindOrganization        ResourceKind = "Organization"
	KindEncounter           ResourceKind = "Encounter"
	KindImagingStudy        ResourceKind = "ImagingStudy"
	KindComposition         ResourceKind = "Composition"
	KindBundle              ResourceKind = "Bundle"
)

// IsValid reports whether the kind is one the proxy exposes.
func (k ResourceKind) IsValid() bool {
	switch k {
	case KindPatient, KindObservation, KindCondition, KindMedicationStatement, KindMedicationRequest,
		KindImmunization, KindDocumentReference, KindDiagnosticReport, KindAppointment, KindOrganization,
		KindEncounter, KindImagingStudy, KindComposition, KindBundle:
		return true
	default:
		return false
	}
}

// ErrNotFHIRResource is returned when a JSON document carries no resourceType.
var ErrNotFHIRResource = errors.New("document has no resourceType")

// Coding is a single code from a terminology system.
type Coding struct {
	System  string `json:"system,omitempty"`
	Code    string `json:"code,omitempty"`
	Display string `json:"display,omitempty"`
}

// CodeableConcept is a set of codings plus free text.
type CodeableConcept struct {
	Coding []Coding `json:"coding,omitempty"`
	Text   string   `json:"text,omitempty"`
}

// FirstCoding returns the first coding, or a zero Coding.
func (c *CodeableConcept) FirstCoding() Coding {
	if c == nil || len(c.Coding) == 0 {
		return Coding{}
	}
	return c.Coding[0]
}

// Quantity is a measured amount. Value is nil when the source omitted it.
type Quantity struct {
	Value  *float64 `json:"value,omitempty"`
	Unit   string   `json:"unit,omitempty"`
	System string   `json:"system,omitempty"`
	Code   string   `json:"code,omitempty"`
}

// Period is a start/end interval in FHIR dateTime notation.
type Period struct {
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

// ReferenceRange is the lab-supplied normal interval.
type ReferenceRange struct {
	Low  *Quantity `json:"low,omitempty"`
	High *Quantity `json:"high,omitempty"`
	Text string    `json:"text,omitempty"`
}

// LowValue returns the low bound, if one is present.
func (r *ReferenceRange) LowValue() (float64, bool) {
	if r == nil || r.Low == nil || r.Low.Value == nil {
		return 0, false
	}
	return *r.Low.Value, true
}

// HighValue returns the high bound, if one is present.
func (r *ReferenceRange) HighValue() (float64, bool) {
	if r == nil || r.High == nil || r.High.Value == nil {
		return 0, false
	}
	return *r.High.Value, true
}

// Unit returns the unit of whichever bound carries one.
func (r *ReferenceRange) Unit() string {
	if r == nil {
		return ""
	}
	if r.Low != nil && r.Low.Unit != "" {
		return r.Low.Unit
	}
	if r.High != nil {
		return r.High.Unit
	}
	return ""
}

type Annotation struct {
	Text string `json:"text,omitempty"`
}

type Reference struct {
	Reference string `json:"reference,omitempty"`
	Display   string `json:"display,omitempty"`
}

type Identifier struct {
	System string `json:"system,omitempty"`
	Value  string `json:"value,omitempty"`
}

type HumanName struct {
	Text   string   `json:"text,omitempty"`
	Family string   `json:"family,omitempty"`
	Given  []string `json:"given,omitempty"`
}

type Extension struct {
	URL         string  `json:"url"`
	ValueCode   string  `json:"valueCode,omitempty"`
	ValueString string  `json:"valueString,omitempty"`
	ValueCoding *Coding `json:"valueCoding,omitempty"`
}

// Observation is the subset of the FHIR Observation resource the dashboard reads.
// At most one of the value fields is populated in valid data.
type Observation struct {
	ResourceType string            `json:"resourceType"`
	ID           string            `json:"id,omitempty"`
	Status       string            `json:"status,omitempty"`
	Category     []CodeableConcept `json:"category,omitempty"`
	Code         CodeableConcept   `json:"code"`
	Subject      *Reference        `json:"subject,omitempty"`

	ValueQuantity        *Quantity        `json:"valueQuantity,omitempty"`
	ValueString          *string          `json:"valueString,omitempty"`
	ValueCodeableConcept *CodeableConcept `json:"valueCodeableConcept,omitempty"`
	ValueBoolean         *bool            `json:"valueBoolean,omitempty"`
	ValueInteger         *int64           `json:"valueInteger,omitempty"`

	EffectiveDateTime string  `json:"effectiveDateTime,omitempty"`
	EffectiveInstant  string  `json:"effectiveInstant,omitempty"`
	EffectivePeriod   *Period `json:"effectivePeriod,omitempty"`
	Issued            string  `json:"issued,omitempty"`

	Interpretation []CodeableConcept `json:"interpretation,omitempty"`
	ReferenceRange []ReferenceRange  `json:"referenceRange,omitempty"`
	Note           []Annotation      `json:"note,omitempty"`
}

// DisplayName prefers the first coding's display, then code.text.
func (o *Observation) DisplayName() string {
	if d := o.Code.FirstCoding().Display; d != "" {
		return d
	}
	return o.Code.Text
}

// TextName prefers code.text, then the first coding's display.
func (o *Observation) TextName() string {
	if o.Code.Text != "" {
		return o.Code.Text
	}
	return o.Code.FirstCoding().Display
}

// InterpretationCode returns the first interpretation coding's code.
func (o *Observation) InterpretationCode() InterpretationCode {
	if len(o.Interpretation) == 0 {
		return ""
	}
	return InterpretationCode(o.Interpretation[0].FirstCoding().Code)
}

// Range returns the first reference range, or nil.
func (o *Observation) Range() *ReferenceRange {
	if len(o.ReferenceRange) == 0 {
		return nil
	}
	return &o.ReferenceRange[0]
}

// Patient is the subset of FHIR Patient used for person selection and IPS headers.
type Patient struct {
	ResourceType string       `json:"resourceType"`
	ID           string       `json:"id,omitempty"`
	Name         []HumanName  `json:"name,omitempty"`
	Identifier   []Identifier `json:"identifier,omitempty"`
	Extension    []Extension  `json:"extension,omitempty"`
	BirthDate    string       `json:"birthDate,omitempty"`
	Gender       string       `json:"gender,omitempty"`
}

// CompositionSection is one section of an International Patient Summary.
type CompositionSection struct {
	Title string          `json:"title,omitempty"`
	Code  CodeableConcept `json:"code"`
	Text  json.RawMessage `json:"text,omitempty"`
	Entry []Reference     `json:"entry,omitempty"`
}

// Composition is the IPS document header.
type Composition struct {
	ResourceType string               `json:"resourceType"`
	ID           string               `json:"id,omitempty"`
	Status       string               `json:"status,omitempty"`
	Title        string               `json:"title,omitempty"`
	Date         string               `json:"date,omitempty"`
	Author       []Reference          `json:"author,omitempty"`
	Section      []CompositionSection `json:"section,omitempty"`
}

type BundleRequest struct {
	Method string `json:"method"`
	URL    string `json:"url"`
}

type BundleResponse struct {
	Status string `json:"status"`
}

// BundleEntry keeps the resource raw so each consumer decodes only the kinds it needs.
type BundleEntry struct {
	FullURL  string          `json:"fullUrl,omitempty"`
	Resource json.RawMessage `json:"resource,omitempty"`
	Request  *BundleRequest  `json:"request,omitempty"`
	Response *BundleResponse `json:"response,omitempty"`
}

// Bundle is a FHIR searchset, transaction or document bundle.
type Bundle struct {
	ResourceType string        `json:"resourceType"`
	ID           string        `json:"id,omitempty"`
	Type         string        `json:"type,omitempty"`
	Total        *int          `json:"total,omitempty"`
	Entry        []BundleEntry `json:"entry,omitempty"`
}

// ResourceTypeOf reads only the resourceType discriminator of a raw resource.
func ResourceTypeOf(raw json.RawMessage) (ResourceKind, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", ErrNotFHIRResource
	}
	var head struct {
		ResourceType string `json:"resourceType"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return "", fmt.Errorf("decode resourceType: %w", err)
	}
	if head.ResourceType == "" {
		return "", ErrNotFHIRResource
	}
	return ResourceKind(head.ResourceType), nil
}

// ParseBundle decodes a raw document as a Bundle. A bare resource is wrapped in a
// single-entry bundle so callers can treat both shapes alike.
func ParseBundle(raw json.RawMessage) (*Bundle, error) {
	kind, err := ResourceTypeOf(raw)
	if err != nil {
		return nil, err
	}
	if kind != KindBundle {
		return &Bundle{ResourceType: string(KindBundle), Type: "collection", Entry: []BundleEntry{{Resource: raw}}}, nil
	}
	var b Bundle
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("decode bundle: %w", err)
	}
	return &b, nil
}

// ResourcesOf returns the raw entries of the given kind, skipping empty and malformed entries.
func (b *Bundle) ResourcesOf(kind ResourceKind) []json.RawMessage {
	if b == nil {
		return nil
	}
	var out []json.RawMessage
	for _, e := range b.Entry {
		k, err := ResourceTypeOf(e.Resource)
		if err != nil || k != kind {
			continue
		}
		out = append(out, e.Resource)
	}
	return out
}

// Observations decodes every Observation entry. Entries that fail to decode are skipped.
func (b *Bundle) Observations() []Observation {
	var out []Observation
	for _, raw := range b.ResourcesOf(KindObservation) {
		var o Observation
		if err := json.Unmarshal(raw, &o); err != nil {
			continue
		}
		out = append(out, o)
	}
	return out
}

// Patients decodes every Patient entry.
func (b *Bundle) Patients() []Patient {
	var out []Patient
	for _, raw := range b.ResourcesOf(KindPatient) {
		var p Patient
		if err := json.Unmarshal(raw, &p); err != nil {
			continue
		}
		out = append(out, p)
	}
	return out
}

var fhirTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
	"2006-01",
	"2006",
}

// ParseFHIRTime parses the FHIR date, dateTime and instant notations. Values without
// a zone are read in loc.
func ParseFHIRTime(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range fhirTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
