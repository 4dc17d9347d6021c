package domain

import "encoding/json"

// Person is a selectable patient from the proxy's person selection.
type Person struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Relation     string `json:"relation"`
	RelationCode string `json:"relation_code,omitempty"`
	CPR          string `json:"cpr,omitempty"`
	MaskedCPR    string `json:"masked_cpr,omitempty"`
	BirthDate    string `json:"birth_date,omitempty"`
}

// IPSResource is a resolved section entry. Unresolved references keep only the
// reference string.
type IPSResource struct {
	Reference   string          `json:"reference"`
	Kind        ResourceKind    `json:"resource_type,omitempty"`
	Resource    json.RawMessage `json:"resource,omitempty"`
	Unresolved  bool            `json:"unresolved,omitempty"`
	NoKnownInfo bool            `json:"no_known_info,omitempty"`
}

// IPSSection is one International Patient Summary section with resolved entries.
type IPSSection struct {
	Code      string          `json:"code"`
	Title     string          `json:"title"`
	Text      json.RawMessage `json:"text,omitempty"`
	Resources []IPSResource   `json:"resources"`
}

// IPSMetadata is the document header of a summary.
type IPSMetadata struct {
	Title  string `json:"title"`
	Date   string `json:"date,omitempty"`
	Author string `json:"author,omitempty"`
	Status string `json:"status,omitempty"`
}

// IPSDocument is a parsed International Patient Summary.
type IPSDocument struct {
	Metadata IPSMetadata  `json:"metadata"`
	Patient  *Person      `json:"patient,omitempty"`
	Sections []IPSSection `json:"sections"`
}
