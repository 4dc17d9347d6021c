package domain

// RecommendationCategory is the section a recommendation is listed under.
type RecommendationCategory string

const (
	CategoryDiet       RecommendationCategory = "diet"
	CategoryExercise   RecommendationCategory = "exercise"
	CategoryLifestyle  RecommendationCategory = "lifestyle"
	CategoryMonitoring RecommendationCategory = "monitoring"
)

// RecommendationPriority grades a recommendation.
type RecommendationPriority string

const (
	PRIORITY_HIGH   RecommendationPriority = "high"
	PRIORITY_MEDIUM RecommendationPriority = "medium"
	PRIORITY_LOW    RecommendationPriority = "low"
)

// Label returns the Danish badge text for the priority.
func (p RecommendationPriority) Label() string {
	switch p {
	case PRIORITY_HIGH:
		return "Vigtigt"
	case PRIORITY_MEDIUM:
		return "Anbefalet"
	default:
		return "Tip"
	}
}

// Recommendation is one canned advice bundle produced by a rule.
type Recommendation struct {
	Rule          string                 `json:"rule"`
	Category      RecommendationCategory `json:"category"`
	Priority      RecommendationPriority `json:"priority"`
	PriorityLabel string                 `json:"priority_label"`
	Title         string                 `json:"title"`
	Description   string                 `json:"description"`
	Tips          []string               `json:"tips"`
	Foods         []string               `json:"foods,omitempty"`
}

// RecommendationSet groups recommendations by category.
type RecommendationSet struct {
	Diet       []Recommendation `json:"diet"`
	Exercise   []Recommendation `json:"exercise"`
	Lifestyle  []Recommendation `json:"lifestyle"`
	Monitoring []Recommendation `json:"monitoring"`
}

// Add appends r to the list for its category.
func (s *RecommendationSet) Add(r Recommendation) {
	r.PriorityLabel = r.Priority.Label()
	switch r.Category {
	case CategoryDiet:
		s.Diet = append(s.Diet, r)
	case CategoryExercise:
		s.Exercise = append(s.Exercise, r)
	case CategoryMonitoring:
		s.Monitoring = append(s.Monitoring, r)
	default:
		s.Lifestyle = append(s.Lifestyle, r)
	}
}

// Total returns the number of recommendations across all categories.
func (s *RecommendationSet) Total() int {
	return len(s.Diet) + len(s.Exercise) + len(s.Lifestyle) + len(s.Monitoring)
}

// LabValue is the latest value found for a named test.
type LabValue struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Unit  string  `json:"unit,omitempty"`
}
