package store

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockGormStore(t *testing.T) (*GormStore, sqlmock.Sqlmock, *int) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{
		SkipDefaultTransaction: true,
		TranslateError:         true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	migrations := 0
	s := NewGormStore(gdb)
	s.migrate = func(context.Context, *sql.DB, goose.Dialect, string) error {
		migrations++
		return nil
	}
	return s, mock, &migrations
}

func TestGormFindByUsername(t *testing.T) {
	s, mock, migrations := newMockGormStore(t)

	rows := sqlmock.NewRows([]string{"id", "username", "password_hash", "salt"}).
		AddRow(7, "ana", "digest", "salt")
	mock.ExpectQuery(`SELECT \* FROM "users" WHERE username = \$1`).WillReturnRows(rows)

	user, err := s.FindByUsername(context.Background(), "ana")
	require.NoError(t, err)
	assert.Equal(t, uint(7), user.ID)
	assert.Equal(t, "digest", user.PasswordHash)
	assert.Equal(t, 1, *migrations)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormFindByUsernameMissing(t *testing.T) {
	s, mock, _ := newMockGormStore(t)

	mock.ExpectQuery(`SELECT \* FROM "users"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "username"}))

	_, err := s.FindByUsername(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGormCreate(t *testing.T) {
	s, mock, migrations := newMockGormStore(t)

	mock.ExpectQuery(`INSERT INTO "users"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

	user, err := s.Create(context.Background(), "ana", "digest", "salt")
	require.NoError(t, err)
	assert.Equal(t, uint(1), user.ID)
	assert.Equal(t, "ana", user.Username)
	assert.Equal(t, 1, *migrations)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormCreateUniqueViolation(t *testing.T) {
	s, mock, _ := newMockGormStore(t)

	mock.ExpectQuery(`INSERT INTO "users"`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_username_key"})

	_, err := s.Create(context.Background(), "ana", "digest", "salt")
	assert.ErrorIs(t, err, ErrConflict)
}

func TestGormCreateOtherFailure(t *testing.T) {
	s, mock, _ := newMockGormStore(t)

	mock.ExpectQuery(`INSERT INTO "users"`).
		WillReturnError(&pgconn.PgError{Code: "57014", Message: "canceling statement"})

	_, err := s.Create(context.Background(), "ana", "digest", "salt")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrConflict)
}

func TestGormMigratesOnce(t *testing.T) {
	s, mock, migrations := newMockGormStore(t)

	for i := 0; i < 3; i++ {
		mock.ExpectQuery(`SELECT \* FROM "users"`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))
		_, _ = s.FindByUsername(context.Background(), "ana")
	}
	assert.Equal(t, 1, *migrations)
}
