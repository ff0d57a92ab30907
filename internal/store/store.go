// Package store persists user credentials. The database's unique constraint on
// username is the only arbiter of duplicate registrations.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"talking-avatar/backend/internal/models"
	"talking-avatar/backend/pkg/config"
)

var (
	ErrNotFound = errors.New("user not found")
	ErrConflict = errors.New("username already exists")
)

// Store is the credential table
type Store interface {
	// Init creates the schema if needed. Safe to call any number of times.
	Init(ctx context.Context) error
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	Create(ctx context.Context, username, passwordHash, salt string) (*models.User, error)
	Ping(ctx context.Context) error
	Close() error
}

// Open connects to the driver named in cfg and runs the schema setup.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	var s Store
	switch cfg.Database.Driver {
	case "postgres":
		db, err := config.NewPostgresDB(ctx, cfg)
		if err != nil {
			return nil, err
		}
		s = NewGormStore(db)
	case "sqlite":
		sqlite, err := OpenSQLite(cfg.Database.SQLitePath)
		if err != nil {
			return nil, err
		}
		s = sqlite
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}

	initCtx, cancel := context.WithTimeout(ctx, cfg.Database.Timeout)
	defer cancel()
	if err := s.Init(initCtx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// initGate runs schema setup once per store. Callers that arrive while it runs
// wait for it; a failed attempt leaves the gate closed so the next call retries.
type initGate struct {
	mu   sync.Mutex
	done atomic.Bool
}

func (g *initGate) run(ctx context.Context, fn func(context.Context) error) error {
	if g.done.Load() {
		return nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.done.Load() {
		return nil
	}
	if err := fn(ctx); err != nil {
		return fmt.Errorf("initialize credential schema: %w", err)
	}
	g.done.Store(true)
	return nil
}
