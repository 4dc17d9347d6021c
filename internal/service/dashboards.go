package service

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/c3po-initiative/dhroxy-frontend-example/internal/domain"
)

const dashboardHistoryLimit = 5

// Dashboard trend labels.
const (
	DashboardUp     = "up"
	DashboardDown   = "down"
	DashboardStable = "stable"
)

// DashboardDefinitions are the static disease-area panels, in display order.
var DashboardDefinitions = []domain.DashboardDefinition{
	{
		ID:          "diabetes",
		Name:        "Diabetes",
		Description: "Overvåg blodsukker og relaterede værdier",
		Tests: []domain.DashboardTest{
			{Name: "HbA1c", Keywords: []string{"hba1c", "glykeret", "langtidsblodsukker", "hemoglobin a1c"}, Target: "< 48 mmol/mol", Description: "Viser dit gennemsnitlige blodsukker over 2-3 måneder"},
			{Name: "Glucose", Keywords: []string{"glucose", "glukose", "blodsukker"}, Target: "Fastende: 4-6 mmol/L", Description: "Dit aktuelle blodsukkerniveau"},
			{Name: "Kreatinin", Keywords: []string{"kreatinin", "creatinin"}, Target: "60-105 μmol/L", Description: "Markør for nyrefunktion - vigtigt ved diabetes"},
			{Name: "eGFR", Keywords: []string{"egfr", "gfr", "glomerulær"}, Target: "> 90 mL/min", Description: "Estimeret nyrefunktion"},
			{Name: "Albumin/Kreatinin", Keywords: []string{"albumin", "urin", "mikroalbumin"}, Target: "< 3 mg/mmol", Description: "Tidlig markør for nyreskade"},
			{Name: "Kolesterol", Keywords: []string{"kolesterol", "cholesterol"}, Target: "< 5.0 mmol/L", Description: "Total kolesterol - øget risiko ved diabetes"},
		},
	},
	{
		ID:          "heart",
		Name:        "Hjerte-kar",
		Description: "Overvåg hjerte-kar sundhed og kolesterol",
		Tests: []domain.DashboardTest{
			{Name: "Total Kolesterol", Keywords: []string{"kolesterol", "cholesterol total"}, Target: "< 5.0 mmol/L", Description: "Samlet kolesterol i blodet"},
			{Name: "LDL Kolesterol", Keywords: []string{"ldl", "low density"}, Target: "< 3.0 mmol/L (< 1.8 ved hjertesygdom)", Description: `"Dårligt" kolesterol - jo lavere jo bedre`},
			{Name: "HDL Kolesterol", Keywords: []string{"hdl", "high density"}, Target: "> 1.0 mmol/L (mænd), > 1.2 mmol/L (kvinder)", Description: `"Godt" kolesterol - jo højere jo bedre`},
			{Name: "Triglycerid", Keywords: []string{"triglycerid", "triglyceri"}, Target: "< 1.7 mmol/L", Description: "Fedtstoffer i blodet"},
			{Name: "BNP/NT-proBNP", Keywords: []string{"bnp", "natriuretisk", "pro-bnp"}, Target: "< 125 pg/mL", Description: "Markør for hjertebelastning"},
			{Name: "CRP", Keywords: []string{"crp", "c-reaktiv"}, Target: "< 5 mg/L", Description: "Betændelsesmarkør - kan indikere kar-inflammation"},
			{Name: "Troponin", Keywords: []string{"troponin"}, Target: "< 14 ng/L", Description: "Markør for hjerteskade"},
		},
	},
	{
		ID:          "thyroid",
		Name:        "Skjoldbruskkirtel",
		Description: "Overvåg stofskifte og thyroidea-funktion",
		Tests: []domain.DashboardTest{
			{Name: "TSH", Keywords: []string{"tsh", "thyroid", "thyreoidea"}, Target: "0.4 - 4.0 mIU/L", Description: "Styrehormon for skjoldbruskkirtlen"},
			{Name: "T3 (Frit)", Keywords: []string{"t3", "trijodthyronin", "frit t3"}, Target: "3.5 - 6.5 pmol/L", Description: "Aktivt stofskiftehormon"},
			{Name: "T4 (Frit)", Keywords: []string{"t4", "thyroxin", "frit t4"}, Target: "10 - 22 pmol/L", Description: "Stofskiftehormon - omdannes til T3"},
			{Name: "Anti-TPO", Keywords: []string{"anti-tpo", "tpo", "peroxidase", "thyreoperoxidase"}, Target: "< 35 kIU/L", Description: "Antistoffer - kan indikere autoimmun thyroideasygdom"},
			{Name: "Anti-TG", Keywords: []string{"anti-tg", "thyroglobulin", "tg-antistoffer"}, Target: "< 115 kIU/L", Description: "Thyroglobulin-antistoffer"},
		},
	},
}

// FindDashboard returns the definition with the given id.
func FindDashboard(id string) (*domain.DashboardDefinition, error) {
	for i := range DashboardDefinitions {
		if DashboardDefinitions[i].ID == id {
			return &DashboardDefinitions[i], nil
		}
	}
	return nil, domain.ErrUnknownDashboard
}

// BuildDashboard matches every test of the dashboard against observations and
// reports the latest value, up to five historical values and the change between the
// two newest numeric values.
func BuildDashboard(id string, observations []domain.Observation) (*domain.Dashboard, error) {
	def, err := FindDashboard(id)
	if err != nil {
		return nil, err
	}

	dash := &domain.Dashboard{
		ID:          def.ID,
		Name:        def.Name,
		Description: def.Description,
		Tests:       make([]domain.DashboardTestResult, 0, len(def.Tests)),
	}
	for _, test := range def.Tests {
		result := buildDashboardTest(test, observations)
		if result.HasData {
			dash.TestsWithData++
		}
		dash.Tests = append(dash.Tests, result)
	}
	if len(def.Tests) > 0 {
		dash.CoveragePercent = int(math.Round(float64(dash.TestsWithData) / float64(len(def.Tests)) * 100))
	}
	return dash, nil
}

func buildDashboardTest(test domain.DashboardTest, observations []domain.Observation) domain.DashboardTestResult {
	result := domain.DashboardTestResult{DashboardTest: test}

	var values []domain.DashboardValue
	for i := range observations {
		o := &observations[i]
		if !matchesDashboardTest(o, test.Keywords) {
			continue
		}
		v, ok := dashboardValue(o)
		if !ok {
			continue
		}
		values = append(values, v)
	}
	if len(values) == 0 {
		return result
	}
	sort.SliceStable(values, func(i, j int) bool { return values[i].Date.After(values[j].Date) })

	result.HasData = true
	result.Latest = &values[0]
	if len(values) > dashboardHistoryLimit {
		result.History = values[:dashboardHistoryLimit]
	} else {
		result.History = values
	}

	var numeric []float64
	for _, v := range values {
		if v.IsNumeric {
			numeric = append(numeric, v.Value)
		}
	}
	if len(numeric) >= 2 && numeric[1] != 0 {
		change := (numeric[0] - numeric[1]) / numeric[1] * 100
		rounded := math.Round(change*10) / 10
		result.ChangePercent = &rounded
		switch {
		case change > 5:
			result.Trend = DashboardUp
		case change < -5:
			result.Trend = DashboardDown
		default:
			result.Trend = DashboardStable
		}
	}
	return result
}

// matchesDashboardTest checks the lowercased display (else code.text) and the first
// coding code against the keywords.
func matchesDashboardTest(o *domain.Observation, keywords []string) bool {
	name := strings.ToLower(o.DisplayName())
	code := strings.ToLower(o.Code.FirstCoding().Code)
	for _, kw := range keywords {
		kw = strings.ToLower(kw)
		if strings.Contains(name, kw) || (code != "" && strings.Contains(code, kw)) {
			return true
		}
	}
	return false
}

func dashboardValue(o *domain.Observation) (domain.DashboardValue, bool) {
	var date time.Time
	if t, ok := domain.ParseFHIRTime(o.EffectiveDateTime, nil); ok {
		date = t
	} else if o.EffectivePeriod != nil {
		date, _ = domain.ParseFHIRTime(o.EffectivePeriod.Start, nil)
	}

	switch {
	case o.ValueQuantity != nil && o.ValueQuantity.Value != nil:
		v := *o.ValueQuantity.Value
		return domain.DashboardValue{
			Display:   domain.FormatNumber(v),
			Value:     v,
			IsNumeric: true,
			Unit:      firstNonEmpty(o.ValueQuantity.Unit, o.ValueQuantity.Code),
			Date:      date,
		}, true
	case o.ValueString != nil && *o.ValueString != "":
		return domain.DashboardValue{Display: *o.ValueString, Date: date}, true
	}
	return domain.DashboardValue{}, false
}
