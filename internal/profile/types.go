// Package profile persists the user's profile: lifestyle answers, family history,
// chat transcript, proxy address and saved credential headers. Entries are raw
// key/value strings; settings.go layers the typed, versioned view on top.
package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"
)

// Entry is one stored key/value pair.
type Entry struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Store defines the interface for profile storage operations.
// Writes are last-write-wins; there are no multi-key transactions.
type Store interface {
	// Get returns the value of key. The bool is false when the key has never been written.
	Get(ctx context.Context, key string) (string, bool, error)

	// Put creates or replaces a value.
	Put(ctx context.Context, key, value string) error

	// Delete removes a key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Keys lists the stored keys in ascending order.
	Keys(ctx context.Context) ([]string, error)

	// ExportJSON writes every entry to writer.
	ExportJSON(ctx context.Context, writer io.Writer) error

	// ImportJSON restores entries from reader. Keys that already exist are skipped.
	ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error)

	// Close closes the store and releases resources.
	Close() error
}

// ProfileExport represents the JSON export format.
type ProfileExport struct {
	Version    string    `json:"version"`
	ExportedAt time.Time `json:"exported_at"`
	Count      int       `json:"count"`
	Entries    []Entry   `json:"entries"`
}

const exportVersion = "1.0"

func writeExport(writer io.Writer, entries []Entry) error {
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	export := &ProfileExport{
		Version:    exportVersion,
		ExportedAt: time.Now(),
		Count:      len(entries),
		Entries:    entries,
	}
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}

func importEntries(ctx context.Context, s Store, reader io.Reader) (imported int, skipped int, err error) {
	var export ProfileExport
	if err := json.NewDecoder(reader).Decode(&export); err != nil {
		return 0, 0, fmt.Errorf("failed to decode JSON: %w", err)
	}

	for _, e := range export.Entries {
		_, exists, err := s.Get(ctx, e.Key)
		if err != nil {
			return imported, skipped, fmt.Errorf("failed to check existing: %w", err)
		}
		if exists {
			skipped++
			continue
		}
		if err := s.Put(ctx, e.Key, e.Value); err != nil {
			return imported, skipped, fmt.Errorf("failed to save: %w", err)
		}
		imported++
	}
	return imported, skipped, nil
}
