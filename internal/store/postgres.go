package store

import (
	"context"
	"errors"
	"fmt"

	"talking-avatar/backend/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pressly/goose/v3"
	"gorm.io/gorm"
)

// uniqueViolation is the Postgres SQLSTATE for a unique constraint failure
const uniqueViolation = "23505"

// GormStore keeps users in Postgres through GORM
type GormStore struct {
	db      *gorm.DB
	gate    initGate
	migrate migrateFunc
}

// NewGormStore wraps an open GORM connection
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db, migrate: runMigrations}
}

// Init applies the embedded Postgres migrations once
func (s *GormStore) Init(ctx context.Context) error {
	return s.gate.run(ctx, func(ctx context.Context) error {
		sqlDB, err := s.db.DB()
		if err != nil {
			return fmt.Errorf("get database connection: %w", err)
		}
		return s.migrate(ctx, sqlDB, goose.DialectPostgres, "migrations/postgres")
	})
}

// FindByUsername looks a user up by exact username
func (s *GormStore) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	if err := s.Init(ctx); err != nil {
		return nil, err
	}

	var user models.User
	err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &user, nil
}

// Create inserts a user. A concurrent insert of the same username loses on the
// unique constraint and gets ErrConflict.
func (s *GormStore) Create(ctx context.Context, username, passwordHash, salt string) (*models.User, error) {
	if err := s.Init(ctx); err != nil {
		return nil, err
	}

	user := models.User{
		Username:     username,
		PasswordHash: passwordHash,
		Salt:         salt,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if isPostgresUniqueViolation(err) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &user, nil
}

// Ping checks the connection
func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the pool
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func isPostgresUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
