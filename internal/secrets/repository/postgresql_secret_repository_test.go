package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	secretsDomain "github.com/allisson/envsafe/internal/secrets/domain"
)

var secretColumns = []string{"id", "project_id", "key", "value", "key_id", "created_at", "updated_at"}

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return db, mock
}

func newSecret() *secretsDomain.Secret {
	keyID := uuid.Must(uuid.NewV7())
	now := time.Now().UTC()
	return &secretsDomain.Secret{
		ID:        uuid.Must(uuid.NewV7()),
		ProjectID: uuid.Must(uuid.NewV7()),
		Key:       "DATABASE_URL",
		Value:     "v1:" + keyID.String() + ":AAAA",
		KeyID:     &keyID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestPostgreSQLSecretRepository_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		db, mock := newMock(t)
		secret := newSecret()

		mock.ExpectExec("INSERT INTO secrets").
			WithArgs(secret.ID, secret.ProjectID, secret.Key, secret.Value, *secret.KeyID, secret.CreatedAt, secret.UpdatedAt).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, NewPostgreSQLSecretRepository(db).Create(ctx, secret))
	})

	t.Run("duplicate key in project", func(t *testing.T) {
		db, mock := newMock(t)

		mock.ExpectExec("INSERT INTO secrets").WillReturnError(&pq.Error{Code: "23505"})

		err := NewPostgreSQLSecretRepository(db).Create(ctx, newSecret())
		assert.ErrorIs(t, err, secretsDomain.ErrSecretKeyExists)
	})
}

func TestPostgreSQLSecretRepository_Get(t *testing.T) {
	ctx := context.Background()

	t.Run("versioned value", func(t *testing.T) {
		db, mock := newMock(t)
		secret := newSecret()

		mock.ExpectQuery("FROM secrets WHERE id").
			WithArgs(secret.ID).
			WillReturnRows(sqlmock.NewRows(secretColumns).AddRow(
				secret.ID.String(), secret.ProjectID.String(), secret.Key, secret.Value,
				secret.KeyID.String(), secret.CreatedAt, secret.UpdatedAt,
			))

		got, err := NewPostgreSQLSecretRepository(db).Get(ctx, secret.ID)
		require.NoError(t, err)
		assert.Equal(t, secret, got)
	})

	t.Run("legacy value has no key id", func(t *testing.T) {
		db, mock := newMock(t)
		secret := newSecret()

		mock.ExpectQuery("FROM secrets WHERE id").
			WillReturnRows(sqlmock.NewRows(secretColumns).AddRow(
				secret.ID.String(), secret.ProjectID.String(), secret.Key, "bGVnYWN5",
				nil, secret.CreatedAt, secret.UpdatedAt,
			))

		got, err := NewPostgreSQLSecretRepository(db).Get(ctx, secret.ID)
		require.NoError(t, err)
		assert.Nil(t, got.KeyID)
	})

	t.Run("not found", func(t *testing.T) {
		db, mock := newMock(t)

		mock.ExpectQuery("FROM secrets WHERE id").WillReturnRows(sqlmock.NewRows(secretColumns))

		_, err := NewPostgreSQLSecretRepository(db).Get(ctx, uuid.New())
		assert.ErrorIs(t, err, secretsDomain.ErrSecretNotFound)
	})
}

func TestPostgreSQLSecretRepository_UpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	db, mock := newMock(t)
	secret := newSecret()

	mock.ExpectExec("UPDATE secrets SET value").
		WithArgs(secret.Value, *secret.KeyID, secret.UpdatedAt, secret.ID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM secrets").
		WithArgs(secret.ID).
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewPostgreSQLSecretRepository(db)
	assert.NoError(t, repo.Update(ctx, secret))
	assert.ErrorIs(t, repo.Delete(ctx, secret.ID), secretsDomain.ErrSecretNotFound)
}

func TestPostgreSQLSecretRepository_ListAfter(t *testing.T) {
	ctx := context.Background()

	t.Run("from the beginning", func(t *testing.T) {
		db, mock := newMock(t)
		secret := newSecret()

		mock.ExpectQuery("FROM secrets ORDER BY id ASC LIMIT").
			WithArgs(500).
			WillReturnRows(sqlmock.NewRows(secretColumns).AddRow(
				secret.ID.String(), secret.ProjectID.String(), secret.Key, secret.Value,
				secret.KeyID.String(), secret.CreatedAt, secret.UpdatedAt,
			))

		secrets, err := NewPostgreSQLSecretRepository(db).ListAfter(ctx, nil, 500)
		require.NoError(t, err)
		require.Len(t, secrets, 1)
		assert.Equal(t, secret.ID, secrets[0].ID)
	})

	t.Run("after cursor", func(t *testing.T) {
		db, mock := newMock(t)
		cursor := uuid.Must(uuid.NewV7())

		mock.ExpectQuery("FROM secrets WHERE id > \\$1 ORDER BY id ASC LIMIT \\$2").
			WithArgs(cursor, 2).
			WillReturnRows(sqlmock.NewRows(secretColumns))

		secrets, err := NewPostgreSQLSecretRepository(db).ListAfter(ctx, &cursor, 2)
		require.NoError(t, err)
		assert.Empty(t, secrets)
	})
}

func TestPostgreSQLSecretRepository_Counts(t *testing.T) {
	ctx := context.Background()
	db, mock := newMock(t)
	keyID := uuid.New()

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM secrets$").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1200))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM secrets WHERE key_id").
		WithArgs(keyID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	repo := NewPostgreSQLSecretRepository(db)

	total, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1200), total)

	byKey, err := repo.CountByKeyID(ctx, keyID)
	require.NoError(t, err)
	assert.Equal(t, int64(7), byKey)
}

func TestPostgreSQLSecretRepository_UpdateValues(t *testing.T) {
	ctx := context.Background()
	db, mock := newMock(t)
	keyID := uuid.Must(uuid.NewV7())
	updates := []secretsDomain.ValueUpdate{
		{ID: uuid.New(), PreviousValue: "old-a", Value: "new-a", KeyID: keyID},
		{ID: uuid.New(), PreviousValue: "old-b", Value: "new-b", KeyID: keyID},
	}

	mock.ExpectExec("UPDATE secrets SET value = \\$1, key_id = \\$2, updated_at = NOW\\(\\) WHERE id = \\$3 AND value = \\$4").
		WithArgs("new-a", keyID, updates[0].ID, "old-a").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE secrets SET value").
		WithArgs("new-b", keyID, updates[1].ID, "old-b").
		WillReturnResult(sqlmock.NewResult(0, 0))

	updated, err := NewPostgreSQLSecretRepository(db).UpdateValues(ctx, updates)
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated)
}
