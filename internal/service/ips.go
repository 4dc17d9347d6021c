package service

import (
	"encoding/json"
	"strings"

	"github.com/c3po-initiative/dhroxy-frontend-example/internal/domain"
)

const defaultIPSTitle = "International Patient Summary"

// IPSSectionLabels name the summary sections by LOINC code.
var IPSSectionLabels = map[string]string{
	"11450-4": "Problemer / Diagnoser",
	"10160-0": "Medicin",
	"48765-2": "Allergier",
	"11369-6": "Vaccinationer",
	"30954-2": "Laboratorieresultater",
}

// ParseIPS resolves a $summary document bundle into its sections. Section entries are
// matched by exact fullUrl or by a fullUrl ending in "/"+reference; anything else is
// kept as an unresolved reference.
func ParseIPS(bundle *domain.Bundle) *domain.IPSDocument {
	doc := &domain.IPSDocument{
		Metadata: domain.IPSMetadata{Title: defaultIPSTitle},
		Sections: []domain.IPSSection{},
	}
	if bundle == nil || bundle.ResourceType != string(domain.KindBundle) {
		return doc
	}

	var composition *domain.Composition
	for _, raw := range bundle.ResourcesOf(domain.KindComposition) {
		var c domain.Composition
		if err := json.Unmarshal(raw, &c); err == nil {
			composition = &c
			break
		}
	}
	if patients := bundle.Patients(); len(patients) > 0 {
		p := PersonFromPatient(&patients[0])
		if len(patients[0].Name) == 0 {
			p.Name = ""
		}
		doc.Patient = &p
	}
	if composition == nil {
		return doc
	}

	doc.Metadata.Title = firstNonEmpty(composition.Title, defaultIPSTitle)
	doc.Metadata.Date = composition.Date
	doc.Metadata.Status = composition.Status
	if len(composition.Author) > 0 {
		doc.Metadata.Author = composition.Author[0].Display
	}

	for _, section := range composition.Section {
		code := firstNonEmpty(section.Code.FirstCoding().Code, "unknown")
		s := domain.IPSSection{
			Code:      code,
			Title:     firstNonEmpty(section.Title, IPSSectionLabels[code], code),
			Text:      section.Text,
			Resources: make([]domain.IPSResource, 0, len(section.Entry)),
		}
		for _, ref := range section.Entry {
			s.Resources = append(s.Resources, resolveIPSReference(bundle, ref.Reference))
		}
		doc.Sections = append(doc.Sections, s)
	}
	return doc
}

func resolveIPSReference(bundle *domain.Bundle, ref string) domain.IPSResource {
	var found json.RawMessage
	for _, e := range bundle.Entry {
		if e.FullURL != "" && len(e.Resource) > 0 && e.FullURL == ref {
			found = e.Resource
			break
		}
	}
	if found == nil {
		for _, e := range bundle.Entry {
			if e.FullURL != "" && len(e.Resource) > 0 && strings.HasSuffix(e.FullURL, "/"+ref) {
				found = e.Resource
				break
			}
		}
	}
	if found == nil {
		return domain.IPSResource{Reference: ref, Unresolved: true}
	}
	kind, _ := domain.ResourceTypeOf(found)
	return domain.IPSResource{
		Reference:   ref,
		Kind:        kind,
		Resource:    found,
		NoKnownInfo: IsNoKnownEntry(found),
	}
}

// IsNoKnownEntry reports whether a resource is an IPS "no known ..." placeholder.
func IsNoKnownEntry(raw json.RawMessage) bool {
	var r struct {
		Code domain.CodeableConcept `json:"code"`
	}
	if err := json.Unmarshal(raw, &r); err != nil {
		return false
	}
	for _, c := range r.Code.Coding {
		if strings.Contains(c.System, "absent-unknown-uv-ips") || strings.HasPrefix(c.Code, "no-known-") {
			return true
		}
	}
	return false
}
