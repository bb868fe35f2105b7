// Package backend selects and opens the installment store named by
// DATA_BACKEND.
package backend

import (
	"fmt"
	"log/slog"

	"escola/internal/config"
	"escola/internal/storage"
	"escola/internal/storage/memory"
)

type Type string

const (
	SQLite Type = "sqlite"
	Memory Type = "memory"
)

func (t Type) String() string { return string(t) }

func (t Type) IsValid() bool {
	return t == SQLite || t == Memory
}

// Types lists every supported backend.
func Types() []Type {
	return []Type{Memory, SQLite}
}

type Config struct {
	Type         Type
	SQLiteDBPath string
	SeedFile     string // memory only; missing file means empty store
}

// FromAppConfig extracts the backend settings of the application config.
func FromAppConfig(cfg *config.Config) (Config, error) {
	if cfg == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}
	bc := Config{
		Type:         Type(cfg.DataBackend),
		SQLiteDBPath: cfg.SQLiteDBPath,
		SeedFile:     cfg.SeedFile,
	}
	return bc, bc.Validate()
}

func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type %q: must be one of %v", c.Type, Types())
	}
	if c.Type == SQLite && c.SQLiteDBPath == "" {
		return fmt.Errorf("SQLite database path is required for sqlite backend")
	}
	return nil
}

// Open returns a ready store. The caller closes it.
func Open(logger *slog.Logger, c Config) (storage.Store, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	switch c.Type {
	case SQLite:
		repo, err := storage.NewSQLiteRepository(c.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("initialize SQLite repository: %w", err)
		}
		logger.Info("Initialized SQLite backend", "db_path", c.SQLiteDBPath)
		return repo, nil
	default:
		store, err := memory.NewFromFile(c.SeedFile)
		if err != nil {
			return nil, fmt.Errorf("initialize memory backend: %w", err)
		}
		logger.Info("Initialized memory backend", "seed_file", c.SeedFile)
		return store, nil
	}
}
