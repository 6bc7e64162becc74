package store

import (
	"fmt"
	"strings"

	"github.com/stellarlinkco/prompt-registry/internal/config"
)

const DefaultSQLitePath = "data/prompt-registry.db"

func Open(cfg *config.Config) (Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("store: missing config")
	}

	storageType := strings.ToLower(strings.TrimSpace(cfg.Storage.Type))
	if storageType == "" {
		storageType = "sqlite"
	}

	switch storageType {
	case "sqlite":
		path := strings.TrimSpace(cfg.Storage.Path)
		if path == "" {
			path = DefaultSQLitePath
		}
		return NewSQLiteStore(path, cfg.TemplateLimits())
	case "memory":
		return NewSQLiteStore(":memory:", cfg.TemplateLimits())
	default:
		return nil, fmt.Errorf("store: unsupported type %q", storageType)
	}
}
