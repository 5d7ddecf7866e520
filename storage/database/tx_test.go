package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"QuestLoop/internal/model"
	apperrors "QuestLoop/pkg/errors"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, Migrate(db))
	return db
}

func newTestTransactor(db *gorm.DB) *Transactor {
	return NewTransactor(db, WithIsolation(sql.LevelDefault), WithRetry(3, time.Millisecond))
}

func TestRunCommits(t *testing.T) {
	db := openTestDB(t)
	tr := newTestTransactor(db)

	err := tr.Run(context.Background(), "create_user", func(tx *gorm.DB) error {
		return tx.Create(&model.User{Nickname: "ada", Level: 1}).Error
	})
	require.NoError(t, err)

	var count int64
	require.NoError(t, db.Model(&model.User{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestRunRollsBackOnError(t *testing.T) {
	db := openTestDB(t)
	tr := newTestTransactor(db)
	boom := errors.New("boom")

	calls := 0
	err := tr.Run(context.Background(), "create_user", func(tx *gorm.DB) error {
		calls++
		if err := tx.Create(&model.User{Nickname: "bob"}).Error; err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)

	var count int64
	require.NoError(t, db.Model(&model.User{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestRunRetriesSerializationFailures(t *testing.T) {
	db := openTestDB(t)
	tr := newTestTransactor(db)

	calls := 0
	err := tr.Run(context.Background(), "toggle", func(tx *gorm.DB) error {
		calls++
		if calls < 3 {
			return &pgconn.PgError{Code: "40001"}
		}
		return tx.Create(&model.User{Nickname: "eve"}).Error
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	var count int64
	require.NoError(t, db.Model(&model.User{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestRunSurfacesConflictAfterExhaustion(t *testing.T) {
	db := openTestDB(t)
	tr := newTestTransactor(db)

	calls := 0
	err := tr.Run(context.Background(), "activate", func(tx *gorm.DB) error {
		calls++
		return &pgconn.PgError{Code: "40P01"}
	})

	require.Error(t, err)
	assert.Equal(t, 4, calls)
	assert.ErrorIs(t, err, apperrors.ConcurrencyConflict)

	var pgErr *pgconn.PgError
	assert.True(t, errors.As(err, &pgErr))
}

func TestConflictClassification(t *testing.T) {
	assert.True(t, IsSerializationFailure(&pgconn.PgError{Code: "40001"}))
	assert.False(t, IsSerializationFailure(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsSerializationFailure(errors.New("40001")))

	assert.True(t, IsUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.True(t, IsUniqueViolation(gorm.ErrDuplicatedKey))
}
