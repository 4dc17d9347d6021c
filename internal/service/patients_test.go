package service

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c3po-initiative/dhroxy-frontend-example/internal/domain"
)

const personSelectionBundle = `{
  "resourceType": "Bundle",
  "type": "searchset",
  "entry": [
    {"resource": {
      "resourceType": "Patient", "id": "p1",
      "name": [{"given": ["Anne", "Marie"], "family": "Hansen"}],
      "identifier": [{"system": "urn:dk:cpr", "value": "0101801234"}],
      "extension": [{"url": "https://www.sundhed.dk/fhir/StructureDefinition/relationType", "valueCode": "MigSelv"}]
    }},
    {"resource": {
      "resourceType": "Patient", "id": "p2",
      "name": [{"given": ["Ole"], "family": "Hansen"}],
      "extension": [{"url": "https://www.sundhed.dk/fhir/StructureDefinition/relationType", "valueCode": "Foraelder"}]
    }},
    {"resource": {"resourceType": "Patient", "id": "p3"}},
    {"resource": {"resourceType": "Observation", "id": "o1"}}
  ]
}`

func TestPersons(t *testing.T) {
	bundle, err := domain.ParseBundle(json.RawMessage(personSelectionBundle))
	require.NoError(t, err)

	persons := Persons(bundle)
	require.Len(t, persons, 3)

	assert.Equal(t, "Anne Marie Hansen", persons[0].Name)
	assert.Equal(t, "Mig selv", persons[0].Relation)
	assert.Equal(t, "0101801234", persons[0].CPR)
	assert.Equal(t, "010180-****", persons[0].MaskedCPR)

	assert.Equal(t, "Barn", persons[1].Relation)
	assert.Empty(t, persons[1].MaskedCPR)

	assert.Equal(t, "Ukendt", persons[2].Name)
	assert.Equal(t, "Relateret", persons[2].Relation)
}

func TestMaskCPR(t *testing.T) {
	assert.Equal(t, "010180-****", MaskCPR("010180-1234"))
	assert.Equal(t, "", MaskCPR("0101"))
	assert.Equal(t, "", MaskCPR(""))
}

const summaryBundle = `{
  "resourceType": "Bundle",
  "type": "document",
  "entry": [
    {"fullUrl": "urn:uuid:comp", "resource": {
      "resourceType": "Composition", "status": "final", "date": "2024-05-01",
      "author": [{"display": "sundhed.dk"}],
      "section": [
        {"code": {"coding": [{"code": "11450-4"}]}, "entry": [{"reference": "Condition/c1"}]},
        {"title": "Min medicin", "code": {"coding": [{"code": "10160-0"}]}, "entry": [{"reference": "urn:uuid:med1"}]},
        {"code": {"coding": [{"code": "48765-2"}]}, "entry": [{"reference": "AllergyIntolerance/a1"}, {"reference": "Missing/x"}]}
      ]
    }},
    {"fullUrl": "urn:uuid:pat", "resource": {"resourceType": "Patient", "id": "p1", "name": [{"given": ["Anne"], "family": "Hansen"}]}},
    {"fullUrl": "https://fhir.example/Condition/c1", "resource": {"resourceType": "Condition", "id": "c1"}},
    {"fullUrl": "urn:uuid:med1", "resource": {"resourceType": "MedicationStatement", "id": "m1"}},
    {"fullUrl": "https://fhir.example/AllergyIntolerance/a1", "resource": {
      "resourceType": "AllergyIntolerance", "id": "a1",
      "code": {"coding": [{"system": "http://hl7.org/fhir/uv/ips/CodeSystem/absent-unknown-uv-ips", "code": "no-known-allergies"}]}
    }}
  ]
}`

func TestParseIPS(t *testing.T) {
	bundle, err := domain.ParseBundle(json.RawMessage(summaryBundle))
	require.NoError(t, err)

	doc := ParseIPS(bundle)

	assert.Equal(t, "International Patient Summary", doc.Metadata.Title)
	assert.Equal(t, "2024-05-01", doc.Metadata.Date)
	assert.Equal(t, "sundhed.dk", doc.Metadata.Author)
	assert.Equal(t, "final", doc.Metadata.Status)
	require.NotNil(t, doc.Patient)
	assert.Equal(t, "Anne Hansen", doc.Patient.Name)

	require.Len(t, doc.Sections, 3)

	problems := doc.Sections[0]
	assert.Equal(t, "Problemer / Diagnoser", problems.Title)
	require.Len(t, problems.Resources, 1)
	assert.Equal(t, domain.KindCondition, problems.Resources[0].Kind)
	assert.False(t, problems.Resources[0].Unresolved)

	meds := doc.Sections[1]
	assert.Equal(t, "Min medicin", meds.Title)
	assert.Equal(t, domain.ResourceKind("MedicationStatement"), meds.Resources[0].Kind)

	allergies := doc.Sections[2]
	require.Len(t, allergies.Resources, 2)
	assert.True(t, allergies.Resources[0].NoKnownInfo)
	assert.True(t, allergies.Resources[1].Unresolved)
	assert.Equal(t, "Missing/x", allergies.Resources[1].Reference)
}

func TestParseIPS_NotADocument(t *testing.T) {
	doc := ParseIPS(nil)
	assert.Equal(t, "International Patient Summary", doc.Metadata.Title)
	assert.Empty(t, doc.Sections)
	assert.Nil(t, doc.Patient)
}
