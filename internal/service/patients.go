package service

import (
	"strings"

	"github.com/c3po-initiative/dhroxy-frontend-example/internal/domain"
)

const (
	relationExtensionURL = "https://www.sundhed.dk/fhir/StructureDefinition/relationType"
	cprSystem            = "urn:dk:cpr"
)

var relationLabels = map[string]string{
	"MigSelv":     "Mig selv",
	"Foraelder":   "Barn",
	"Barn":        "Barn",
	"Aegtefaelle": "Ægtefælle",
}

// Persons lists the Patient resources of a person-selection bundle.
func Persons(bundle *domain.Bundle) []domain.Person {
	patients := bundle.Patients()
	out := make([]domain.Person, 0, len(patients))
	for i := range patients {
		out = append(out, PersonFromPatient(&patients[i]))
	}
	return out
}

// PersonFromPatient derives the display fields of one patient.
func PersonFromPatient(p *domain.Patient) domain.Person {
	code := relationCode(p)
	cpr := patientCPR(p)
	return domain.Person{
		ID:           p.ID,
		Name:         patientName(p),
		Relation:     firstNonEmpty(relationLabels[code], code, "Relateret"),
		RelationCode: code,
		CPR:          cpr,
		MaskedCPR:    MaskCPR(cpr),
		BirthDate:    p.BirthDate,
	}
}

// MaskCPR keeps the birth-date part of a CPR number: "DDMMYY-****".
func MaskCPR(cpr string) string {
	digits := strings.ReplaceAll(strings.TrimSpace(cpr), "-", "")
	if len(digits) < 6 {
		return ""
	}
	return digits[:6] + "-****"
}

func patientName(p *domain.Patient) string {
	if len(p.Name) == 0 {
		return "Ukendt"
	}
	n := p.Name[0]
	return strings.TrimSpace(strings.Join(n.Given, " ") + " " + n.Family)
}

func relationCode(p *domain.Patient) string {
	for _, ext := range p.Extension {
		if ext.URL == relationExtensionURL {
			return ext.ValueCode
		}
	}
	return ""
}

func patientCPR(p *domain.Patient) string {
	for _, id := range p.Identifier {
		if id.System == cprSystem {
			return id.Value
		}
	}
	return ""
}
