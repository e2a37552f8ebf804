package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	accessDomain "github.com/allisson/envsafe/internal/access/domain"
	"github.com/allisson/envsafe/internal/database"
	apperrors "github.com/allisson/envsafe/internal/errors"
	secretsDomain "github.com/allisson/envsafe/internal/secrets/domain"
)

// MySQLAccessRepository implements access persistence for MySQL. UUIDs are stored as
// BINARY(16).
type MySQLAccessRepository struct {
	db *sql.DB
}

// CreateProject inserts a new project.
func (m *MySQLAccessRepository) CreateProject(ctx context.Context, project *accessDomain.Project) error {
	querier := database.GetTx(ctx, m.db)

	ids, err := marshalIDs(project.ID, project.OwnerID)
	if err != nil {
		return err
	}

	query := `INSERT INTO projects (id, owner_id, name, created_at) VALUES (?, ?, ?, ?)`

	if _, err := querier.ExecContext(ctx, query, ids[0], ids[1], project.Name, project.CreatedAt); err != nil {
		return apperrors.Wrap(err, "failed to create project")
	}
	return nil
}

// GetProject retrieves a project by id.
func (m *MySQLAccessRepository) GetProject(ctx context.Context, projectID uuid.UUID) (*accessDomain.Project, error) {
	querier := database.GetTx(ctx, m.db)

	ids, err := marshalIDs(projectID)
	if err != nil {
		return nil, err
	}

	query := `SELECT id, owner_id, name, created_at FROM projects WHERE id = ?`

	var project accessDomain.Project
	var id, ownerID []byte
	err = querier.QueryRowContext(ctx, query, ids[0]).Scan(&id, &ownerID, &project.Name, &project.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, accessDomain.ErrProjectNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get project")
	}
	if err := unmarshalIDs([]*uuid.UUID{&project.ID, &project.OwnerID}, id, ownerID); err != nil {
		return nil, err
	}
	return &project, nil
}

// UpdateOwner sets the owner of a project.
func (m *MySQLAccessRepository) UpdateOwner(ctx context.Context, projectID, ownerID uuid.UUID) error {
	querier := database.GetTx(ctx, m.db)

	ids, err := marshalIDs(ownerID, projectID)
	if err != nil {
		return err
	}

	result, err := querier.ExecContext(ctx, `UPDATE projects SET owner_id = ? WHERE id = ?`, ids[0], ids[1])
	if err != nil {
		return apperrors.Wrap(err, "failed to update project owner")
	}
	return requireAffected(result, accessDomain.ErrProjectNotFound)
}

// GetMemberRole returns the membership role of a user, or RoleNone.
func (m *MySQLAccessRepository) GetMemberRole(
	ctx context.Context,
	projectID, userID uuid.UUID,
) (accessDomain.Role, error) {
	querier := database.GetTx(ctx, m.db)

	ids, err := marshalIDs(projectID, userID)
	if err != nil {
		return accessDomain.RoleNone, err
	}

	query := `SELECT role FROM project_members WHERE project_id = ? AND user_id = ?`

	return scanRole(querier.QueryRowContext(ctx, query, ids[0], ids[1]), "failed to get member role")
}

// UpsertMember creates a membership or replaces the role of an existing one.
func (m *MySQLAccessRepository) UpsertMember(ctx context.Context, member *accessDomain.Membership) error {
	querier := database.GetTx(ctx, m.db)

	ids, err := marshalIDs(member.ProjectID, member.UserID)
	if err != nil {
		return err
	}

	query := `INSERT INTO project_members (project_id, user_id, role, created_at)
			  VALUES (?, ?, ?, ?)
			  ON DUPLICATE KEY UPDATE role = VALUES(role)`

	if _, err := querier.ExecContext(ctx, query, ids[0], ids[1], member.Role, member.CreatedAt); err != nil {
		return apperrors.Wrap(err, "failed to upsert project member")
	}
	return nil
}

// DeleteMember removes a membership.
func (m *MySQLAccessRepository) DeleteMember(ctx context.Context, projectID, userID uuid.UUID) error {
	querier := database.GetTx(ctx, m.db)

	ids, err := marshalIDs(projectID, userID)
	if err != nil {
		return err
	}

	query := `DELETE FROM project_members WHERE project_id = ? AND user_id = ?`

	result, err := querier.ExecContext(ctx, query, ids[0], ids[1])
	if err != nil {
		return apperrors.Wrap(err, "failed to delete project member")
	}
	return requireAffected(result, accessDomain.ErrMemberNotFound)
}

// GetSecretProject returns the project id of a secret.
func (m *MySQLAccessRepository) GetSecretProject(ctx context.Context, secretID uuid.UUID) (uuid.UUID, error) {
	querier := database.GetTx(ctx, m.db)

	ids, err := marshalIDs(secretID)
	if err != nil {
		return uuid.Nil, err
	}

	var raw []byte
	if err := querier.QueryRowContext(ctx, `SELECT project_id FROM secrets WHERE id = ?`, ids[0]).Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return uuid.Nil, secretsDomain.ErrSecretNotFound
		}
		return uuid.Nil, apperrors.Wrap(err, "failed to get secret project")
	}

	var projectID uuid.UUID
	if err := unmarshalIDs([]*uuid.UUID{&projectID}, raw); err != nil {
		return uuid.Nil, err
	}
	return projectID, nil
}

// GetShareRole returns the share role of a user on a secret, or RoleNone.
func (m *MySQLAccessRepository) GetShareRole(
	ctx context.Context,
	secretID, userID uuid.UUID,
) (accessDomain.Role, error) {
	querier := database.GetTx(ctx, m.db)

	ids, err := marshalIDs(secretID, userID)
	if err != nil {
		return accessDomain.RoleNone, err
	}

	query := `SELECT role FROM secret_shares WHERE secret_id = ? AND user_id = ?`

	return scanRole(querier.QueryRowContext(ctx, query, ids[0], ids[1]), "failed to get share role")
}

// UpsertShare creates a share or replaces the role of an existing one.
func (m *MySQLAccessRepository) UpsertShare(ctx context.Context, share *accessDomain.SecretShare) error {
	querier := database.GetTx(ctx, m.db)

	ids, err := marshalIDs(share.SecretID, share.UserID)
	if err != nil {
		return err
	}

	query := `INSERT INTO secret_shares (secret_id, user_id, role, created_at)
			  VALUES (?, ?, ?, ?)
			  ON DUPLICATE KEY UPDATE role = VALUES(role)`

	if _, err := querier.ExecContext(ctx, query, ids[0], ids[1], share.Role, share.CreatedAt); err != nil {
		return apperrors.Wrap(err, "failed to upsert secret share")
	}
	return nil
}

// DeleteShare removes a share.
func (m *MySQLAccessRepository) DeleteShare(ctx context.Context, secretID, userID uuid.UUID) error {
	querier := database.GetTx(ctx, m.db)

	ids, err := marshalIDs(secretID, userID)
	if err != nil {
		return err
	}

	query := `DELETE FROM secret_shares WHERE secret_id = ? AND user_id = ?`

	result, err := querier.ExecContext(ctx, query, ids[0], ids[1])
	if err != nil {
		return apperrors.Wrap(err, "failed to delete secret share")
	}
	return requireAffected(result, accessDomain.ErrShareNotFound)
}

// CreateRequest inserts a new access request.
func (m *MySQLAccessRepository) CreateRequest(ctx context.Context, request *accessDomain.AccessRequest) error {
	querier := database.GetTx(ctx, m.db)

	ids, err := marshalIDs(request.ID, request.ProjectID, request.UserID)
	if err != nil {
		return err
	}

	query := `INSERT INTO access_requests (` + requestColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err = querier.ExecContext(
		ctx,
		query,
		ids[0],
		ids[1],
		ids[2],
		request.Role,
		request.Status,
		request.CreatedAt,
		request.DecidedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create access request")
	}
	return nil
}

// GetRequestForUpdate retrieves a request and locks its row until the surrounding
// transaction ends.
func (m *MySQLAccessRepository) GetRequestForUpdate(
	ctx context.Context,
	requestID uuid.UUID,
) (*accessDomain.AccessRequest, error) {
	querier := database.GetTx(ctx, m.db)

	ids, err := marshalIDs(requestID)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + requestColumns + ` FROM access_requests WHERE id = ? FOR UPDATE`

	var request accessDomain.AccessRequest
	var id, projectID, userID []byte
	var decidedAt sql.NullTime
	err = querier.QueryRowContext(ctx, query, ids[0]).Scan(
		&id,
		&projectID,
		&userID,
		&request.Role,
		&request.Status,
		&request.CreatedAt,
		&decidedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, accessDomain.ErrRequestNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get access request")
	}
	targets := []*uuid.UUID{&request.ID, &request.ProjectID, &request.UserID}
	if err := unmarshalIDs(targets, id, projectID, userID); err != nil {
		return nil, err
	}
	if decidedAt.Valid {
		request.DecidedAt = &decidedAt.Time
	}
	return &request, nil
}

// UpdateRequest persists the status of a request.
func (m *MySQLAccessRepository) UpdateRequest(ctx context.Context, request *accessDomain.AccessRequest) error {
	querier := database.GetTx(ctx, m.db)

	ids, err := marshalIDs(request.ID)
	if err != nil {
		return err
	}

	query := `UPDATE access_requests SET status = ?, decided_at = ? WHERE id = ?`

	result, err := querier.ExecContext(ctx, query, request.Status, request.DecidedAt, ids[0])
	if err != nil {
		return apperrors.Wrap(err, "failed to update access request")
	}
	return requireAffected(result, accessDomain.ErrRequestNotFound)
}

// NewMySQLAccessRepository creates a new MySQL access repository.
func NewMySQLAccessRepository(db *sql.DB) *MySQLAccessRepository {
	return &MySQLAccessRepository{db: db}
}

func marshalIDs(ids ...uuid.UUID) ([][]byte, error) {
	out := make([][]byte, len(ids))
	for i, id := range ids {
		b, err := id.MarshalBinary()
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to marshal id")
		}
		out[i] = b
	}
	return out, nil
}

func unmarshalIDs(targets []*uuid.UUID, raw ...[]byte) error {
	for i, target := range targets {
		if err := target.UnmarshalBinary(raw[i]); err != nil {
			return apperrors.Wrap(err, "failed to unmarshal id")
		}
	}
	return nil
}
