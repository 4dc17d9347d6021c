package service

import (
	"strings"

	"github.com/c3po-initiative/dhroxy-frontend-example/internal/domain"
)

func ptr(v float64) *float64 { return &v }

// LabTestRegistry is the static threshold table behind the lab panel. Order matters:
// an observation belongs to the first definition with a matching keyword, so the
// narrower tests (HbA1c, LDL, HDL) sit ahead of the ones whose keywords they contain.
var LabTestRegistry = []domain.TestDefinition{
	{
		Name: "Ferritin (jernlager)", Keywords: []string{"ferritin"}, Unit: "µg/L", Category: "Jernstatus",
		LowCriticalThreshold: ptr(15), LowWarningThreshold: ptr(30), HighCriticalThreshold: ptr(300),
	},
	{
		Name: "HbA1c (langtidsblodsukker)", Keywords: []string{"hba1c", "glykeret"}, Unit: "mmol/mol", Category: "Blodsukker",
		HighWarningThreshold: ptr(42), HighCriticalThreshold: ptr(48),
	},
	{
		Name: "Hæmoglobin", Keywords: []string{"hæmoglobin", "hemoglobin", "hgb"}, Unit: "mmol/L", Category: "Blodværdier",
		LowCriticalThreshold: ptr(7.0), LowWarningThreshold: ptr(7.5), HighWarningThreshold: ptr(10.5), HighCriticalThreshold: ptr(11.0),
	},
	{
		Name: "LDL-kolesterol", Keywords: []string{"ldl"}, Unit: "mmol/L", Category: "Lipider",
		HighWarningThreshold: ptr(3.0), HighCriticalThreshold: ptr(5.0),
	},
	{
		Name: "HDL-kolesterol", Keywords: []string{"hdl"}, Unit: "mmol/L", Category: "Lipider",
		LowCriticalThreshold: ptr(0.8), LowWarningThreshold: ptr(1.0),
	},
	{
		Name: "Total-kolesterol", Keywords: []string{"kolesterol", "cholesterol"}, Unit: "mmol/L", Category: "Lipider",
		HighWarningThreshold: ptr(5.0), HighCriticalThreshold: ptr(8.0),
	},
	{
		Name: "Triglycerid", Keywords: []string{"triglycerid"}, Unit: "mmol/L", Category: "Lipider",
		HighWarningThreshold: ptr(2.0), HighCriticalThreshold: ptr(4.0),
	},
	{
		Name: "Faste-blodsukker", Keywords: []string{"glukose", "glucose", "blodsukker"}, Unit: "mmol/L", Category: "Blodsukker",
		LowCriticalThreshold: ptr(3.0), LowWarningThreshold: ptr(4.0), HighWarningThreshold: ptr(6.1), HighCriticalThreshold: ptr(7.0),
	},
	{
		Name: "D-vitamin", Keywords: []string{"vitamin d", "d-vitamin", "25-hydroxy"}, Unit: "nmol/L", Category: "Vitaminer",
		LowCriticalThreshold: ptr(12), LowWarningThreshold: ptr(50),
	},
	{
		Name: "Vitamin B12", Keywords: []string{"b12", "cobalamin"}, Unit: "pmol/L", Category: "Vitaminer",
		LowCriticalThreshold: ptr(100), LowWarningThreshold: ptr(200),
	},
	{
		Name: "Folat", Keywords: []string{"folat", "folsyre"}, Unit: "nmol/L", Category: "Vitaminer",
		LowCriticalThreshold: ptr(5), LowWarningThreshold: ptr(10),
	},
	{
		Name: "eGFR (nyrefunktion)", Keywords: []string{"egfr", "gfr"}, Unit: "mL/min", Category: "Nyrer",
		LowCriticalThreshold: ptr(30), LowWarningThreshold: ptr(60),
	},
	{
		Name: "Kreatinin", Keywords: []string{"kreatinin", "creatinin"}, Unit: "µmol/L", Category: "Nyrer",
		HighWarningThreshold: ptr(105), HighCriticalThreshold: ptr(200),
	},
	{
		Name: "ALAT (levertal)", Keywords: []string{"alat", "alanin"}, Unit: "U/L", Category: "Lever",
		HighWarningThreshold: ptr(45), HighCriticalThreshold: ptr(100),
	},
	{
		Name: "ASAT (levertal)", Keywords: []string{"asat", "aspartat"}, Unit: "U/L", Category: "Lever",
		HighWarningThreshold: ptr(35), HighCriticalThreshold: ptr(100),
	},
	{
		Name: "GGT (levertal)", Keywords: []string{"ggt", "gamma-gt", "gamma-glutamyl"}, Unit: "U/L", Category: "Lever",
		HighWarningThreshold: ptr(60), HighCriticalThreshold: ptr(150),
	},
	{
		Name: "TSH (skjoldbruskkirtel)", Keywords: []string{"tsh"}, Unit: "mIU/L", Category: "Skjoldbruskkirtel",
		LowCriticalThreshold: ptr(0.1), LowWarningThreshold: ptr(0.4), HighWarningThreshold: ptr(4.0), HighCriticalThreshold: ptr(10),
	},
	{
		Name: "CRP (inflammation)", Keywords: []string{"crp", "c-reaktiv"}, Unit: "mg/L", Category: "Inflammation",
		HighWarningThreshold: ptr(10), HighCriticalThreshold: ptr(50),
	},
	{
		Name: "Leukocytter", Keywords: []string{"leukocyt", "hvide blodlegemer"}, Unit: "10^9/L", Category: "Blodværdier",
		LowCriticalThreshold: ptr(2.0), LowWarningThreshold: ptr(4.0), HighWarningThreshold: ptr(10.0), HighCriticalThreshold: ptr(15.0),
	},
	{
		Name: "Trombocytter", Keywords: []string{"trombocyt", "blodplade"}, Unit: "10^9/L", Category: "Blodværdier",
		LowCriticalThreshold: ptr(50), LowWarningThreshold: ptr(150), HighWarningThreshold: ptr(400), HighCriticalThreshold: ptr(500),
	},
}

// MatchTest returns the first registry definition with a keyword contained in name.
func MatchTest(registry []domain.TestDefinition, name string) (*domain.TestDefinition, bool) {
	i, ok := matchIndex(registry, name)
	if !ok {
		return nil, false
	}
	return &registry[i], true
}

func matchIndex(registry []domain.TestDefinition, name string) (int, bool) {
	lower := strings.ToLower(name)
	for i := range registry {
		if matchesAny(lower, registry[i].Keywords) {
			return i, true
		}
	}
	return -1, false
}

// AssignObservations resolves every observation to at most one definition and
// returns the observations grouped per definition, indexed like registry.
func AssignObservations(observations []domain.Observation, registry []domain.TestDefinition) [][]domain.Observation {
	assigned := make([][]domain.Observation, len(registry))
	for _, o := range observations {
		if i, ok := matchIndex(registry, o.TextName()); ok {
			assigned[i] = append(assigned[i], o)
		}
	}
	return assigned
}

func matchesAny(lower string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
