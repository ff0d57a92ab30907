package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"talking-avatar/backend/internal/models"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

// SQLiteStore keeps users in a local SQLite file. Used for development and tests.
type SQLiteStore struct {
	db      *sql.DB
	gate    initGate
	migrate migrateFunc
}

// OpenSQLite opens (or creates) the database file at path
func OpenSQLite(path string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}

	// SQLite allows one writer; a single connection keeps writes ordered
	db.SetMaxOpenConns(1)

	return &SQLiteStore{db: db, migrate: runMigrations}, nil
}

// Init applies the embedded SQLite migrations once
func (s *SQLiteStore) Init(ctx context.Context) error {
	return s.gate.run(ctx, func(ctx context.Context) error {
		return s.migrate(ctx, s.db, goose.DialectSQLite3, "migrations/sqlite")
	})
}

// FindByUsername looks a user up by exact username
func (s *SQLiteStore) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	if err := s.Init(ctx); err != nil {
		return nil, err
	}

	query := `SELECT id, username, password_hash, salt, created_at FROM users WHERE username = ?`

	user := &models.User{}
	err := s.db.QueryRowContext(ctx, query, username).
		Scan(&user.ID, &user.Username, &user.PasswordHash, &user.Salt, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}

// Create inserts a user, mapping the UNIQUE failure to ErrConflict
func (s *SQLiteStore) Create(ctx context.Context, username, passwordHash, salt string) (*models.User, error) {
	if err := s.Init(ctx); err != nil {
		return nil, err
	}

	user := &models.User{
		Username:     username,
		PasswordHash: passwordHash,
		Salt:         salt,
		CreatedAt:    time.Now().UTC(),
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, password_hash, salt, created_at) VALUES (?, ?, ?, ?)`,
		user.Username, user.PasswordHash, user.Salt, user.CreatedAt)
	if err != nil {
		if isSQLiteUniqueViolation(err) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	user.ID = uint(id)
	return user, nil
}

// Ping checks the database handle
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database file
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// modernc.org/sqlite exposes no typed constraint error, so match the message
func isSQLiteUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
