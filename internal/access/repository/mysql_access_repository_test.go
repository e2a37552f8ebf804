package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	accessDomain "github.com/allisson/envsafe/internal/access/domain"
)

func bin(t *testing.T, id uuid.UUID) []byte {
	t.Helper()
	b, err := id.MarshalBinary()
	require.NoError(t, err)
	return b
}

func TestMySQLAccessRepository_GetProject(t *testing.T) {
	ctx := context.Background()
	db, mock := newMock(t)
	project := &accessDomain.Project{
		ID:        uuid.Must(uuid.NewV7()),
		OwnerID:   uuid.Must(uuid.NewV7()),
		Name:      "billing",
		CreatedAt: time.Now().UTC(),
	}

	mock.ExpectQuery("FROM projects WHERE id = \\?").
		WithArgs(bin(t, project.ID)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "owner_id", "name", "created_at"}).
			AddRow(bin(t, project.ID), bin(t, project.OwnerID), project.Name, project.CreatedAt))

	got, err := NewMySQLAccessRepository(db).GetProject(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, project, got)
}

func TestMySQLAccessRepository_Members(t *testing.T) {
	ctx := context.Background()
	projectID := uuid.Must(uuid.NewV7())
	userID := uuid.Must(uuid.NewV7())

	t.Run("upsert uses on duplicate key", func(t *testing.T) {
		db, mock := newMock(t)
		member := &accessDomain.Membership{
			ProjectID: projectID,
			UserID:    userID,
			Role:      accessDomain.RoleEditor,
			CreatedAt: time.Now().UTC(),
		}
		mock.ExpectExec("ON DUPLICATE KEY UPDATE role").
			WithArgs(bin(t, projectID), bin(t, userID), "editor", member.CreatedAt).
			WillReturnResult(sqlmock.NewResult(0, 2))

		assert.NoError(t, NewMySQLAccessRepository(db).UpsertMember(ctx, member))
	})

	t.Run("role of non member is none", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectQuery("SELECT role FROM project_members").
			WithArgs(bin(t, projectID), bin(t, userID)).
			WillReturnError(sql.ErrNoRows)

		role, err := NewMySQLAccessRepository(db).GetMemberRole(ctx, projectID, userID)
		require.NoError(t, err)
		assert.Equal(t, accessDomain.RoleNone, role)
	})
}

func TestMySQLAccessRepository_GetSecretProject(t *testing.T) {
	ctx := context.Background()
	db, mock := newMock(t)
	secretID := uuid.Must(uuid.NewV7())
	projectID := uuid.Must(uuid.NewV7())

	mock.ExpectQuery("SELECT project_id FROM secrets").
		WithArgs(bin(t, secretID)).
		WillReturnRows(sqlmock.NewRows([]string{"project_id"}).AddRow(bin(t, projectID)))

	got, err := NewMySQLAccessRepository(db).GetSecretProject(ctx, secretID)
	require.NoError(t, err)
	assert.Equal(t, projectID, got)
}

func TestMySQLAccessRepository_GetRequestForUpdate(t *testing.T) {
	ctx := context.Background()
	db, mock := newMock(t)
	decided := time.Now().UTC()
	request := &accessDomain.AccessRequest{
		ID:        uuid.Must(uuid.NewV7()),
		ProjectID: uuid.Must(uuid.NewV7()),
		UserID:    uuid.Must(uuid.NewV7()),
		Role:      accessDomain.RoleEditor,
		Status:    accessDomain.RequestStatusApproved,
		CreatedAt: decided.Add(-time.Hour),
		DecidedAt: &decided,
	}

	mock.ExpectQuery("FOR UPDATE").
		WithArgs(bin(t, request.ID)).
		WillReturnRows(sqlmock.NewRows(requestColumnNames).AddRow(
			bin(t, request.ID),
			bin(t, request.ProjectID),
			bin(t, request.UserID),
			"editor",
			"approved",
			request.CreatedAt,
			decided,
		))

	got, err := NewMySQLAccessRepository(db).GetRequestForUpdate(ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, request, got)
}
