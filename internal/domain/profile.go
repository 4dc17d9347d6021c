package domain

import (
	"encoding/json"
	"time"
)

// Profile store keys. Values are JSON documents except BaseURL and version, which are plain strings.
const (
	KeyLifestyle       = "kram-data"
	KeySocial          = "socio-data"
	KeyFamilyHistory   = "family-history"
	KeyChatMessages    = "chat-messages"
	KeyBaseURL         = "dhroxy-url"
	KeyAuthHeaders     = "dhroxy-auth-headers"
	KeySettingsVersion = "settings-version"
)

// SettingsVersion is the schema version written by SaveSettings.
const SettingsVersion = 1

// DefaultBaseURL is the proxy base path used until the user picks another.
const DefaultBaseURL = "/fhir"

// Lifestyle holds the self-reported answers used by the recommendation rules.
type Lifestyle struct {
	Smoker         bool              `json:"smoker"`
	AlcoholWeekly  int               `json:"alcoholWeekly"`
	ExerciseWeekly int               `json:"exerciseWeekly"`
	SleepHours     int               `json:"sleepHours"`
	Notes          map[string]string `json:"notes,omitempty"`
}

// DefaultLifestyle returns the answers assumed before the user has entered any.
func DefaultLifestyle() Lifestyle {
	return Lifestyle{SleepHours: 7}
}

// FamilyMember is one free-form family-history entry.
type FamilyMember struct {
	Relation  string `json:"relation"`
	Condition string `json:"condition"`
}

// FamilyHistory carries the flags the recommendation rules read plus the free-form entries.
type FamilyHistory struct {
	Diabetes     bool           `json:"diabetes"`
	HeartDisease bool           `json:"heartDisease"`
	Cancer       bool           `json:"cancer"`
	Hypertension bool           `json:"hypertension"`
	Members      []FamilyMember `json:"members,omitempty"`
}

// ChatRole is the author of a chat message.
type ChatRole string

const (
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
)

type ChatMessage struct {
	Role      ChatRole  `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// Settings is the versioned, fully defaulted view of the profile store.
type Settings struct {
	Version       int               `json:"version"`
	Lifestyle     Lifestyle         `json:"lifestyle"`
	Social        json.RawMessage   `json:"social,omitempty"`
	FamilyHistory FamilyHistory     `json:"family_history"`
	ChatMessages  []ChatMessage     `json:"chat_messages"`
	BaseURL       string            `json:"base_url"`
	AuthHeaders   map[string]string `json:"auth_headers"`
}

// DefaultSettings returns settings with every field at its default.
func DefaultSettings() Settings {
	return Settings{
		Version:      SettingsVersion,
		Lifestyle:    DefaultLifestyle(),
		ChatMessages: []ChatMessage{},
		BaseURL:      DefaultBaseURL,
		AuthHeaders:  map[string]string{},
	}
}
