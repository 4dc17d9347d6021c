package service

import (
	"fmt"
	"strings"

	"github.com/c3po-initiative/dhroxy-frontend-example/internal/domain"
)

// labRule fires once per call when the latest value of a registry test passes its
// cutoff. A rule may emit several recommendations.
type labRule struct {
	id       string
	tests    []string
	fires    func(v []*LatestValue) bool
	emit     func(v []*LatestValue) []domain.Recommendation
}

// profileRule fires on the self-reported lifestyle and family-history answers.
type profileRule struct {
	id    string
	fires func(l domain.Lifestyle, f domain.FamilyHistory) bool
	emit  func(l domain.Lifestyle, f domain.FamilyHistory) domain.Recommendation
}

func priorityIf(cond bool, yes, no domain.RecommendationPriority) domain.RecommendationPriority {
	if cond {
		return yes
	}
	return no
}

func valueText(v *LatestValue) string {
	return strings.TrimSpace(domain.FormatNumber(v.Value) + " " + v.Unit)
}

func below(v *LatestValue, cutoff float64) bool { return v != nil && v.Value < cutoff }
func above(v *LatestValue, cutoff float64) bool { return v != nil && v.Value > cutoff }

var labRules = []labRule{
	{
		id:       "ferritin-low",
		tests:    []string{"Ferritin (jernlager)"},
		fires:    func(v []*LatestValue) bool { return below(v[0], 30) },
		emit: func(v []*LatestValue) []domain.Recommendation {
			return []domain.Recommendation{{
				Category:    domain.CategoryDiet,
				Priority:    domain.PRIORITY_HIGH,
				Title:       "Spis jernrig kost",
				Description: fmt.Sprintf("Dit ferritin er %s, hvilket tyder på lave jernlagre.", valueText(v[0])),
				Tips: []string{
					"Spis rødt kød 2-3 gange om ugen (oksekød, lammekød)",
					"Inkluder lever eller leverpostej ugentligt",
					"Spis C-vitamin rige fødevarer sammen med jernkilder (citrus, peberfrugt)",
					"Undgå kaffe og te til måltider - de hæmmer jernoptagelse",
					"Prøv grønne bladgrøntsager som spinat og grønkål",
				},
				Foods: []string{"Oksekød", "Lever", "Linser", "Spinat", "Tofu", "Quinoa"},
			}}
		},
	},
	{
		id:       "cholesterol-high",
		tests:    []string{"Total-kolesterol"},
		fires:    func(v []*LatestValue) bool { return above(v[0], 5) },
		emit: func(v []*LatestValue) []domain.Recommendation {
			return []domain.Recommendation{
				{
					Category:    domain.CategoryDiet,
					Priority:    priorityIf(v[0].Value > 6.5, domain.PRIORITY_HIGH, domain.PRIORITY_MEDIUM),
					Title:       "Reducer dit kolesterol gennem kosten",
					Description: fmt.Sprintf("Dit totalkolesterol er %s. Målværdi er under 5 mmol/L.", valueText(v[0])),
					Tips: []string{
						"Erstat smør med olivenolie eller rapsolie",
						"Spis fed fisk 2-3 gange ugentligt (laks, makrel, sild)",
						"Øg indtag af fibre fra havregryn, bønner og grøntsager",
						"Reducer indtag af forarbejdet kød og rødt kød",
						"Spis en håndfuld nødder dagligt (valnødder, mandler)",
					},
					Foods: []string{"Havregryn", "Laks", "Valnødder", "Avocado", "Bønner", "Olivenolie"},
				},
				{
					Category:    domain.CategoryExercise,
					Priority:    domain.PRIORITY_MEDIUM,
					Title:       "Regelmæssig motion sænker kolesterol",
					Description: "Fysisk aktivitet øger HDL (det gode kolesterol) og hjælper med vægtkontrol.",
					Tips: []string{
						"Gå mindst 30 minutter dagligt i raskt tempo",
						"Overvej cykling til arbejde eller indkøb",
						"Prøv svømning - skånsomt for led og godt for hjertet",
						"Styrketræning 2 gange ugentligt forbedrer kolesterolprofil",
					},
				},
			}
		},
	},
	{
		id:       "ldl-high",
		tests:    []string{"LDL-kolesterol"},
		fires:    func(v []*LatestValue) bool { return above(v[0], 3) },
		emit: func(v []*LatestValue) []domain.Recommendation {
			return []domain.Recommendation{{
				Category:    domain.CategoryDiet,
				Priority:    priorityIf(v[0].Value > 4, domain.PRIORITY_HIGH, domain.PRIORITY_MEDIUM),
				Title:       "Sænk dit LDL-kolesterol",
				Description: fmt.Sprintf(`Dit LDL er %s. LDL kaldes "det dårlige kolesterol" og bør være under 3 mmol/L.`, valueText(v[0])),
				Tips: []string{
					"Spis plantebaserede måltider flere gange om ugen",
					"Undgå transfedtsyrer (friturestegt mad, kager, kiks)",
					"Vælg fuldkornsprodukter frem for hvidt brød og pasta",
					"Spis flere bælgfrugter som linser og kikærter",
				},
				Foods: []string{"Linser", "Kikærter", "Fuldkornsbrød", "Æbler", "Jordbær"},
			}}
		},
	},
	{
		id:       "hdl-low",
		tests:    []string{"HDL-kolesterol"},
		fires:    func(v []*LatestValue) bool { return below(v[0], 1.0) },
		emit: func(v []*LatestValue) []domain.Recommendation {
			return []domain.Recommendation{{
				Category:    domain.CategoryExercise,
				Priority:    domain.PRIORITY_HIGH,
				Title:       "Øg dit HDL med motion",
				Description: fmt.Sprintf(`Dit HDL er %s. HDL er "det gode kolesterol" og bør være over 1.0 mmol/L.`, valueText(v[0])),
				Tips: []string{
					"Intensiv motion 3-4 gange ugentligt øger HDL markant",
					"Intervaltræning er særligt effektivt",
					"Selv moderat aktivitet som rask gang hjælper",
					"Tab af overvægt øger også HDL",
				},
			}}
		},
	},
	{
		id:       "hba1c-high",
		tests:    []string{"HbA1c (langtidsblodsukker)"},
		fires:    func(v []*LatestValue) bool { return above(v[0], 42) },
		emit: func(v []*LatestValue) []domain.Recommendation {
			diabetes := v[0].Value >= 48
			title, stage := "Kontroller dit blodsukker", "Det tyder på diabetes."
			if !diabetes {
				title, stage = "Forebyg diabetes med kostændringer", "Du er i prædiabetes-stadiet."
			}
			return []domain.Recommendation{
				{
					Category:    domain.CategoryDiet,
					Priority:    priorityIf(diabetes, domain.PRIORITY_HIGH, domain.PRIORITY_MEDIUM),
					Title:       title,
					Description: fmt.Sprintf("Dit HbA1c er %s. %s", valueText(v[0]), stage),
					Tips: []string{
						"Vælg fødevarer med lavt glykæmisk indeks (GI)",
						"Spis regelmæssigt - undgå at springe måltider over",
						"Reducer sukker og hvide kulhydrater markant",
						"Spis protein og fiber til hvert måltid for at stabilisere blodsukkeret",
						"Vælg fuldkorn frem for raffinerede kornprodukter",
					},
					Foods: []string{"Havregryn", "Quinoa", "Grøntsager", "Bønner", "Nødder", "Æg"},
				},
				{
					Category:    domain.CategoryExercise,
					Priority:    domain.PRIORITY_HIGH,
					Title:       "Motion forbedrer insulinfølsomhed",
					Description: "Regelmæssig motion er lige så vigtigt som kost for blodsukkerkontrol.",
					Tips: []string{
						"Gå en tur efter måltider - det sænker blodsukkeret",
						"Styrketræning øger musklernes sukkeroptagelse",
						"Sigter mod 150 minutter moderat aktivitet ugentligt",
						"Undgå lange perioder med stillesiddende arbejde",
					},
				},
			}
		},
	},
	{
		id:       "vitamin-d-low",
		tests:    []string{"D-vitamin"},
		fires:    func(v []*LatestValue) bool { return below(v[0], 50) },
		emit: func(v []*LatestValue) []domain.Recommendation {
			return []domain.Recommendation{{
				Category:    domain.CategoryLifestyle,
				Priority:    priorityIf(v[0].Value < 25, domain.PRIORITY_HIGH, domain.PRIORITY_MEDIUM),
				Title:       "Øg dit D-vitamin niveau",
				Description: fmt.Sprintf("Dit D-vitamin er %s. Optimalt niveau er 50-100 nmol/L.", valueText(v[0])),
				Tips: []string{
					"Tag D-vitamin tilskud (20-40 mikrogram dagligt i vinterhalvåret)",
					"Spis fed fisk 2-3 gange ugentligt",
					"Få 15-20 min sol dagligt om sommeren (uden solcreme)",
					"Spis æg og berigede mejeriprodukter",
				},
				Foods: []string{"Laks", "Makrel", "Æg", "Berigede mejeriprodukter", "Svampe"},
			}}
		},
	},
	{
		id:       "b12-low",
		tests:    []string{"Vitamin B12"},
		fires:    func(v []*LatestValue) bool { return below(v[0], 200) },
		emit: func(v []*LatestValue) []domain.Recommendation {
			return []domain.Recommendation{{
				Category:    domain.CategoryDiet,
				Priority:    priorityIf(v[0].Value < 150, domain.PRIORITY_HIGH, domain.PRIORITY_MEDIUM),
				Title:       "Øg dit B12 indtag",
				Description: fmt.Sprintf("Dit B12 er %s. B12 er vigtigt for nervesystem og blodproduktion.", valueText(v[0])),
				Tips: []string{
					"Spis kød, fisk og æg regelmæssigt",
					"Hvis du er vegetar/veganer, tag B12 tilskud",
					"Spis berigede fødevarer som plantemælk med B12",
					"Tal med lægen om B12-injektioner ved meget lave værdier",
				},
				Foods: []string{"Oksekød", "Lever", "Laks", "Æg", "Berigede produkter"},
			}}
		},
	},
	{
		id:       "egfr-low",
		tests:    []string{"eGFR (nyrefunktion)"},
		fires:    func(v []*LatestValue) bool { return below(v[0], 60) },
		emit: func(v []*LatestValue) []domain.Recommendation {
			return []domain.Recommendation{
				{
					Category:    domain.CategoryDiet,
					Priority:    domain.PRIORITY_HIGH,
					Title:       "Beskyt dine nyrer med kosten",
					Description: fmt.Sprintf("Din eGFR er %s, hvilket tyder på nedsat nyrefunktion.", domain.FormatNumber(v[0].Value)),
					Tips: []string{
						"Reducer saltindtag til max 5-6 gram dagligt",
						"Drik rigeligt vand (1.5-2 liter dagligt)",
						"Begræns protein fra kød - vælg fisk og vegetarisk oftere",
						"Undgå NSAID smertestillende (ibuprofen) uden lægens accept",
					},
				},
				{
					Category:    domain.CategoryMonitoring,
					Priority:    domain.PRIORITY_HIGH,
					Title:       "Regelmæssig kontrol af nyrefunktion",
					Description: "Med nedsat nyrefunktion er det vigtigt med tæt opfølgning.",
					Tips: []string{
						"Få tjekket nyreværdier hver 3-6 måned",
						"Hold blodtryk under kontrol (under 130/80)",
						"Følg diabetesbehandling nøje hvis relevant",
						"Undgå naturmedicin uden lægens godkendelse",
					},
				},
			}
		},
	},
	{
		id:       "liver-high",
		tests:    []string{"ALAT (levertal)", "GGT (levertal)"},
		fires:    func(v []*LatestValue) bool { return above(v[0], 45) || above(v[1], 60) },
		emit: func([]*LatestValue) []domain.Recommendation {
			return []domain.Recommendation{{
				Category:    domain.CategoryLifestyle,
				Priority:    domain.PRIORITY_HIGH,
				Title:       "Pas på din lever",
				Description: "Dine levertal er forhøjede, hvilket kan skyldes alkohol, overvægt eller medicin.",
				Tips: []string{
					"Reducer eller stop alkoholindtag",
					"Tab dig hvis du er overvægtig",
					"Undgå paracetamol i høje doser",
					"Spis levervenlig kost med masser af grøntsager",
				},
			}}
		},
	},
}

var profileRules = []profileRule{
	{
		id:    "smoking",
		fires: func(l domain.Lifestyle, _ domain.FamilyHistory) bool { return l.Smoker },
		emit: func(domain.Lifestyle, domain.FamilyHistory) domain.Recommendation {
			return domain.Recommendation{
				Category:    domain.CategoryLifestyle,
				Priority:    domain.PRIORITY_HIGH,
				Title:       "Rygestop - den vigtigste ændring",
				Description: "Rygning er den største enkeltfaktor for tidlig død og sygdom.",
				Tips: []string{
					"Kontakt Stoplinjen på 80 31 31 31 for gratis hjælp",
					"Tal med lægen om nikotinerstatning eller medicin",
					"Download en rygestop-app til støtte",
					"Allerede efter 24 timer begynder kroppen at hele",
				},
			}
		},
	},
	{
		id:    "alcohol",
		fires: func(l domain.Lifestyle, _ domain.FamilyHistory) bool { return l.AlcoholWeekly > 7 },
		emit: func(l domain.Lifestyle, _ domain.FamilyHistory) domain.Recommendation {
			return domain.Recommendation{
				Category:    domain.CategoryLifestyle,
				Priority:    priorityIf(l.AlcoholWeekly > 14, domain.PRIORITY_HIGH, domain.PRIORITY_MEDIUM),
				Title:       "Reducer dit alkoholforbrug",
				Description: fmt.Sprintf("Du drikker %d genstande om ugen. Sundhedsstyrelsen anbefaler max 7 om ugen.", l.AlcoholWeekly),
				Tips: []string{
					"Hold alkoholfrie dage hver uge",
					"Drik vand mellem alkoholholdige drinks",
					"Vælg alkoholfrie alternativer ved sociale lejligheder",
					"Søg hjælp hos Alkohollinjen på 80 20 00 00 hvis svært",
				},
			}
		},
	},
	{
		id:    "exercise",
		fires: func(l domain.Lifestyle, _ domain.FamilyHistory) bool { return l.ExerciseWeekly < 3 },
		emit: func(l domain.Lifestyle, _ domain.FamilyHistory) domain.Recommendation {
			return domain.Recommendation{
				Category:    domain.CategoryExercise,
				Priority:    domain.PRIORITY_MEDIUM,
				Title:       "Kom i gang med regelmæssig motion",
				Description: fmt.Sprintf("Du motionerer %d gange om ugen. Anbefalet er mindst 3-4 gange.", l.ExerciseWeekly),
				Tips: []string{
					"Start småt - 10 minutters gang dagligt er en god start",
					"Find en motionsform du nyder (dans, svømning, cykling)",
					"Motioner med en ven for motivation",
					"Byg motion ind i hverdagen (trapper, gang til indkøb)",
				},
			}
		},
	},
	{
		id:    "sleep",
		fires: func(l domain.Lifestyle, _ domain.FamilyHistory) bool { return l.SleepHours < 6 || l.SleepHours > 9 },
		emit: func(l domain.Lifestyle, _ domain.FamilyHistory) domain.Recommendation {
			return domain.Recommendation{
				Category:    domain.CategoryLifestyle,
				Priority:    domain.PRIORITY_MEDIUM,
				Title:       "Optimer din søvn",
				Description: fmt.Sprintf("Du sover %d timer. Optimal søvn for voksne er 7-9 timer.", l.SleepHours),
				Tips: []string{
					"Hold fast i faste sengetider, også i weekenden",
					"Undgå skærme 1 time før sengetid",
					"Hold soveværelset køligt og mørkt",
					"Undgå koffein efter kl. 14",
				},
			}
		},
	},
	{
		id:    "family-diabetes",
		fires: func(_ domain.Lifestyle, f domain.FamilyHistory) bool { return f.Diabetes },
		emit: func(domain.Lifestyle, domain.FamilyHistory) domain.Recommendation {
			return domain.Recommendation{
				Category:    domain.CategoryMonitoring,
				Priority:    domain.PRIORITY_MEDIUM,
				Title:       "Øget fokus på diabetes-forebyggelse",
				Description: "Med diabetes i familien har du forhøjet risiko.",
				Tips: []string{
					"Få tjekket HbA1c årligt",
					"Hold normalvægt",
					"Vær særligt opmærksom på blodsukkerstabiliserende kost",
					"Motion reducerer risikoen markant",
				},
			}
		},
	},
	{
		id:    "family-heart",
		fires: func(_ domain.Lifestyle, f domain.FamilyHistory) bool { return f.HeartDisease },
		emit: func(domain.Lifestyle, domain.FamilyHistory) domain.Recommendation {
			return domain.Recommendation{
				Category:    domain.CategoryMonitoring,
				Priority:    domain.PRIORITY_MEDIUM,
				Title:       "Forebyg hjertekarsygdom",
				Description: "Med hjertesygdom i familien bør du være ekstra opmærksom.",
				Tips: []string{
					"Få tjekket kolesterol og blodtryk årligt",
					"Prioriter hjertevenlig kost (Middelhavskost)",
					"Motion er særligt vigtigt for dig",
					"Undgå rygning og begræns alkohol",
				},
			}
		},
	},
	{
		id:    "family-hypertension",
		fires: func(_ domain.Lifestyle, f domain.FamilyHistory) bool { return f.Hypertension },
		emit: func(domain.Lifestyle, domain.FamilyHistory) domain.Recommendation {
			return domain.Recommendation{
				Category:    domain.CategoryLifestyle,
				Priority:    domain.PRIORITY_MEDIUM,
				Title:       "Forebyg forhøjet blodtryk",
				Description: "Med forhøjet blodtryk i familien har du øget risiko.",
				Tips: []string{
					"Reducer salt i kosten",
					"Motioner regelmæssigt",
					"Hold normalvægt",
					"Mål dit blodtryk regelmæssigt",
				},
			}
		},
	},
}

// Recommend evaluates every lab and profile rule exactly once. Lab rules read the
// latest value of a registry test; several rules may fire off the same test.
func Recommend(observations []domain.Observation, lifestyle domain.Lifestyle, family domain.FamilyHistory) domain.RecommendationSet {
	set := domain.RecommendationSet{
		Diet:       []domain.Recommendation{},
		Exercise:   []domain.Recommendation{},
		Lifestyle:  []domain.Recommendation{},
		Monitoring: []domain.Recommendation{},
	}

	latest := latestByTest(observations, LabTestRegistry)
	for _, rule := range labRules {
		values := make([]*LatestValue, len(rule.tests))
		for i, test := range rule.tests {
			values[i] = latest[test]
		}
		if !rule.fires(values) {
			continue
		}
		for _, r := range rule.emit(values) {
			r.Rule = rule.id
			set.Add(r)
		}
	}

	for _, rule := range profileRules {
		if !rule.fires(lifestyle, family) {
			continue
		}
		r := rule.emit(lifestyle, family)
		r.Rule = rule.id
		set.Add(r)
	}
	return set
}

// latestByTest maps each registry test name to its latest assigned value.
func latestByTest(observations []domain.Observation, registry []domain.TestDefinition) map[string]*LatestValue {
	assigned := AssignObservations(observations, registry)
	out := make(map[string]*LatestValue, len(registry))
	for i, def := range registry {
		if lv, ok := FindLatestValue(assigned[i], def.Keywords); ok {
			out[def.Name] = lv
		}
	}
	return out
}
