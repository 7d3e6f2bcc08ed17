package registry

import (
	"fmt"
	"os"
	"strings"

	"linkreview/internal/infra/persistence/memory"
	"linkreview/internal/infra/persistence/postgres"
	"linkreview/internal/infra/persistence/sqlite"
	"linkreview/pkg/domain"
)

// Environment configuration for the persistence layer.
const (
	EnvStorageDriver = "LINKREVIEW_STORAGE_DRIVER"
	EnvSQLitePath    = "LINKREVIEW_SQLITE_PATH"
	EnvPostgresDSN   = "LINKREVIEW_POSTGRES_DSN"
)

// OpenPersistentStore selects a persistence backend from the environment.
// Unset or "memory" yields the in-memory store.
func OpenPersistentStore() (domain.PersistentStore, error) {
	driver := strings.ToLower(strings.TrimSpace(os.Getenv(EnvStorageDriver)))
	switch driver {
	case "", "memory":
		return memory.NewStore(), nil
	case "sqlite":
		return sqlite.NewStore(os.Getenv(EnvSQLitePath))
	case "postgres":
		return postgres.NewStore(os.Getenv(EnvPostgresDSN))
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", driver)
	}
}
