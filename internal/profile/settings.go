package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/c3po-initiative/dhroxy-frontend-example/internal/domain"
	"github.com/c3po-initiative/dhroxy-frontend-example/pkg/external"
)

// LoadSettings reads the typed settings. Missing keys keep their defaults and corrupt
// JSON is logged and replaced by the default. Stores written by an older version are
// migrated once and the result is written back.
func LoadSettings(ctx context.Context, store Store, logger *logrus.Logger) (domain.Settings, error) {
	s := domain.DefaultSettings()

	if err := decodeEntry(ctx, store, logger, domain.KeyLifestyle, &s.Lifestyle); err != nil {
		return s, err
	}
	if err := loadFamilyHistory(ctx, store, logger, &s.FamilyHistory); err != nil {
		return s, err
	}
	if err := decodeEntry(ctx, store, logger, domain.KeyChatMessages, &s.ChatMessages); err != nil {
		return s, err
	}
	if err := decodeEntry(ctx, store, logger, domain.KeyAuthHeaders, &s.AuthHeaders); err != nil {
		return s, err
	}
	if s.ChatMessages == nil {
		s.ChatMessages = []domain.ChatMessage{}
	}
	if s.AuthHeaders == nil {
		s.AuthHeaders = map[string]string{}
	}

	social, ok, err := store.Get(ctx, domain.KeySocial)
	if err != nil {
		return s, fmt.Errorf("failed to read %s: %w", domain.KeySocial, err)
	}
	if ok {
		if json.Valid([]byte(social)) {
			s.Social = json.RawMessage(social)
		} else {
			logger.WithField("key", domain.KeySocial).Warn("Corrupt profile entry, using defaults")
		}
	}

	baseURL, ok, err := store.Get(ctx, domain.KeyBaseURL)
	if err != nil {
		return s, fmt.Errorf("failed to read %s: %w", domain.KeyBaseURL, err)
	}
	if ok && strings.TrimSpace(baseURL) != "" {
		s.BaseURL = strings.TrimSpace(baseURL)
	}

	version := 0
	if raw, ok, err := store.Get(ctx, domain.KeySettingsVersion); err != nil {
		return s, fmt.Errorf("failed to read %s: %w", domain.KeySettingsVersion, err)
	} else if ok {
		version, _ = strconv.Atoi(strings.TrimSpace(raw))
	}

	if version < domain.SettingsVersion {
		if Migrate(&s) {
			logger.WithField("from_version", version).Info("Migrated stored profile settings")
		}
		if err := saveAuthHeaders(ctx, store, s.AuthHeaders); err != nil {
			return s, err
		}
		if err := store.Put(ctx, domain.KeySettingsVersion, strconv.Itoa(domain.SettingsVersion)); err != nil {
			return s, fmt.Errorf("failed to write settings version: %w", err)
		}
	}
	s.Version = domain.SettingsVersion
	return s, nil
}

// Migrate upgrades settings written before versioning. Saved credential headers move
// to the vendor header names, and empty values are dropped. It reports whether anything changed.
func Migrate(s *domain.Settings) bool {
	headers, changed := external.MigrateHeaders(s.AuthHeaders)
	s.AuthHeaders = headers
	return changed
}

// SaveSettings writes every key plus the schema version.
func SaveSettings(ctx context.Context, store Store, s domain.Settings) error {
	if err := putJSON(ctx, store, domain.KeyLifestyle, s.Lifestyle); err != nil {
		return err
	}
	if err := putJSON(ctx, store, domain.KeyFamilyHistory, s.FamilyHistory); err != nil {
		return err
	}
	if err := SaveChatMessages(ctx, store, s.ChatMessages); err != nil {
		return err
	}
	if err := saveAuthHeaders(ctx, store, s.AuthHeaders); err != nil {
		return err
	}
	if len(s.Social) > 0 {
		if !json.Valid(s.Social) {
			return domain.NewValidationError("social", "must be valid JSON", string(s.Social))
		}
		if err := store.Put(ctx, domain.KeySocial, string(s.Social)); err != nil {
			return fmt.Errorf("failed to write %s: %w", domain.KeySocial, err)
		}
	}
	baseURL := strings.TrimSpace(s.BaseURL)
	if baseURL == "" {
		baseURL = domain.DefaultBaseURL
	}
	if err := store.Put(ctx, domain.KeyBaseURL, baseURL); err != nil {
		return fmt.Errorf("failed to write %s: %w", domain.KeyBaseURL, err)
	}
	if err := store.Put(ctx, domain.KeySettingsVersion, strconv.Itoa(domain.SettingsVersion)); err != nil {
		return fmt.Errorf("failed to write settings version: %w", err)
	}
	return nil
}

// SaveChatMessages replaces the stored chat transcript.
func SaveChatMessages(ctx context.Context, store Store, messages []domain.ChatMessage) error {
	if messages == nil {
		messages = []domain.ChatMessage{}
	}
	return putJSON(ctx, store, domain.KeyChatMessages, messages)
}

// LoadChatMessages reads the chat transcript. A corrupt transcript reads as empty.
func LoadChatMessages(ctx context.Context, store Store, logger *logrus.Logger) ([]domain.ChatMessage, error) {
	messages := []domain.ChatMessage{}
	if err := decodeEntry(ctx, store, logger, domain.KeyChatMessages, &messages); err != nil {
		return nil, err
	}
	if messages == nil {
		messages = []domain.ChatMessage{}
	}
	return messages, nil
}

func saveAuthHeaders(ctx context.Context, store Store, headers map[string]string) error {
	cleaned, _ := external.MigrateHeaders(headers)
	return putJSON(ctx, store, domain.KeyAuthHeaders, cleaned)
}

// loadFamilyHistory also accepts the bare member list written by early versions.
func loadFamilyHistory(ctx context.Context, store Store, logger *logrus.Logger, dst *domain.FamilyHistory) error {
	raw, ok, err := store.Get(ctx, domain.KeyFamilyHistory)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", domain.KeyFamilyHistory, err)
	}
	if !ok {
		return nil
	}

	var history domain.FamilyHistory
	if err := json.Unmarshal([]byte(raw), &history); err == nil {
		*dst = history
		return nil
	}
	var members []domain.FamilyMember
	if err := json.Unmarshal([]byte(raw), &members); err == nil {
		dst.Members = members
		return nil
	}
	logger.WithField("key", domain.KeyFamilyHistory).Warn("Corrupt profile entry, using defaults")
	return nil
}

// decodeEntry decodes key over the current value of dst, so fields absent from the
// stored document keep their defaults.
func decodeEntry[T any](ctx context.Context, store Store, logger *logrus.Logger, key string, dst *T) error {
	raw, ok, err := store.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", key, err)
	}
	if !ok {
		return nil
	}

	v := *dst
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		logger.WithField("key", key).WithError(err).Warn("Corrupt profile entry, using defaults")
		return nil
	}
	*dst = v
	return nil
}

func putJSON(ctx context.Context, store Store, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	if err := store.Put(ctx, key, string(data)); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}
