package storage

import (
	"fmt"

	"gatekeeper/internal/models"
)

// NewStorage creates a storage instance based on the configured backend type.
func NewStorage(config Config) (Storage, error) {
	switch config.Type {
	case models.StorageTypeMemory:
		return NewMemoryStorage(config)
	case models.StorageTypePostgres:
		return NewPostgresStorage(config)
	case models.StorageTypeSQLite:
		return NewSQLiteStorage(config)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", config.Type)
	}
}
