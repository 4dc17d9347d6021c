package profile

import (
	"fmt"

	"github.com/c3po-initiative/dhroxy-frontend-example/internal/domain"
)

// Backend names accepted in profile.backend.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

// Open creates the store selected by config.
func Open(config domain.ProfileConfig) (Store, error) {
	switch config.Backend {
	case "", BackendSQLite:
		if config.SQLitePath == "" {
			return nil, fmt.Errorf("profile.sqlite_path is required for the sqlite backend")
		}
		return NewSQLiteStore(config.SQLitePath)
	case BackendPostgres:
		return NewPostgresStoreFromURL(config.PostgresURL)
	case BackendRedis:
		return NewRedisStore(config.RedisURL)
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown profile backend: %s", config.Backend)
	}
}
