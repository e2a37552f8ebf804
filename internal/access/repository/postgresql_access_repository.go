// Package repository persists projects, memberships, secret shares and access requests.
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

const requestColumns = `id, project_id, user_id, role, status, created_at, decided_at`

// PostgreSQLAccessRepository implements access persistence for PostgreSQL.
type PostgreSQLAccessRepository struct {
	db *sql.DB
}

// CreateProject inserts a new project.
func (p *PostgreSQLAccessRepository) CreateProject(ctx context.Context, project *accessDomain.Project) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO projects (id, owner_id, name, created_at) VALUES ($1, $2, $3, $4)`

	_, err := querier.ExecContext(ctx, query, project.ID, project.OwnerID, project.Name, project.CreatedAt)
	if err != nil {
		return apperrors.Wrap(err, "failed to create project")
	}
	return nil
}

// GetProject retrieves a project by id.
func (p *PostgreSQLAccessRepository) GetProject(
	ctx context.Context,
	projectID uuid.UUID,
) (*accessDomain.Project, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, owner_id, name, created_at FROM projects WHERE id = $1`

	var project accessDomain.Project
	err := querier.QueryRowContext(ctx, query, projectID).
		Scan(&project.ID, &project.OwnerID, &project.Name, &project.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, accessDomain.ErrProjectNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get project")
	}
	return &project, nil
}

// UpdateOwner sets the owner of a project.
func (p *PostgreSQLAccessRepository) UpdateOwner(ctx context.Context, projectID, ownerID uuid.UUID) error {
	querier := database.GetTx(ctx, p.db)

	result, err := querier.ExecContext(ctx, `UPDATE projects SET owner_id = $1 WHERE id = $2`, ownerID, projectID)
	if err != nil {
		return apperrors.Wrap(err, "failed to update project owner")
	}
	return requireAffected(result, accessDomain.ErrProjectNotFound)
}

// GetMemberRole returns the membership role of a user, or RoleNone.
func (p *PostgreSQLAccessRepository) GetMemberRole(
	ctx context.Context,
	projectID, userID uuid.UUID,
) (accessDomain.Role, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT role FROM project_members WHERE project_id = $1 AND user_id = $2`

	return scanRole(querier.QueryRowContext(ctx, query, projectID, userID), "failed to get member role")
}

// UpsertMember creates a membership or replaces the role of an existing one.
func (p *PostgreSQLAccessRepository) UpsertMember(ctx context.Context, member *accessDomain.Membership) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO project_members (project_id, user_id, role, created_at)
			  VALUES ($1, $2, $3, $4)
			  ON CONFLICT (project_id, user_id) DO UPDATE SET role = EXCLUDED.role`

	_, err := querier.ExecContext(ctx, query, member.ProjectID, member.UserID, member.Role, member.CreatedAt)
	if err != nil {
		return apperrors.Wrap(err, "failed to upsert project member")
	}
	return nil
}

// DeleteMember removes a membership.
func (p *PostgreSQLAccessRepository) DeleteMember(ctx context.Context, projectID, userID uuid.UUID) error {
	querier := database.GetTx(ctx, p.db)

	query := `DELETE FROM project_members WHERE project_id = $1 AND user_id = $2`

	result, err := querier.ExecContext(ctx, query, projectID, userID)
	if err != nil {
		return apperrors.Wrap(err, "failed to delete project member")
	}
	return requireAffected(result, accessDomain.ErrMemberNotFound)
}

// GetSecretProject returns the project id of a secret.
func (p *PostgreSQLAccessRepository) GetSecretProject(ctx context.Context, secretID uuid.UUID) (uuid.UUID, error) {
	querier := database.GetTx(ctx, p.db)

	var projectID uuid.UUID
	err := querier.QueryRowContext(ctx, `SELECT project_id FROM secrets WHERE id = $1`, secretID).Scan(&projectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return uuid.Nil, secretsDomain.ErrSecretNotFound
		}
		return uuid.Nil, apperrors.Wrap(err, "failed to get secret project")
	}
	return projectID, nil
}

// GetShareRole returns the share role of a user on a secret, or RoleNone.
func (p *PostgreSQLAccessRepository) GetShareRole(
	ctx context.Context,
	secretID, userID uuid.UUID,
) (accessDomain.Role, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT role FROM secret_shares WHERE secret_id = $1 AND user_id = $2`

	return scanRole(querier.QueryRowContext(ctx, query, secretID, userID), "failed to get share role")
}

// UpsertShare creates a share or replaces the role of an existing one.
func (p *PostgreSQLAccessRepository) UpsertShare(ctx context.Context, share *accessDomain.SecretShare) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO secret_shares (secret_id, user_id, role, created_at)
			  VALUES ($1, $2, $3, $4)
			  ON CONFLICT (secret_id, user_id) DO UPDATE SET role = EXCLUDED.role`

	_, err := querier.ExecContext(ctx, query, share.SecretID, share.UserID, share.Role, share.CreatedAt)
	if err != nil {
		return apperrors.Wrap(err, "failed to upsert secret share")
	}
	return nil
}

// DeleteShare removes a share.
func (p *PostgreSQLAccessRepository) DeleteShare(ctx context.Context, secretID, userID uuid.UUID) error {
	querier := database.GetTx(ctx, p.db)

	query := `DELETE FROM secret_shares WHERE secret_id = $1 AND user_id = $2`

	result, err := querier.ExecContext(ctx, query, secretID, userID)
	if err != nil {
		return apperrors.Wrap(err, "failed to delete secret share")
	}
	return requireAffected(result, accessDomain.ErrShareNotFound)
}

// CreateRequest inserts a new access request.
func (p *PostgreSQLAccessRepository) CreateRequest(ctx context.Context, request *accessDomain.AccessRequest) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO access_requests (` + requestColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := querier.ExecContext(
		ctx,
		query,
		request.ID,
		request.ProjectID,
		request.UserID,
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
func (p *PostgreSQLAccessRepository) GetRequestForUpdate(
	ctx context.Context,
	requestID uuid.UUID,
) (*accessDomain.AccessRequest, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + requestColumns + ` FROM access_requests WHERE id = $1 FOR UPDATE`

	var request accessDomain.AccessRequest
	var decidedAt sql.NullTime
	err := querier.QueryRowContext(ctx, query, requestID).Scan(
		&request.ID,
		&request.ProjectID,
		&request.UserID,
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
	if decidedAt.Valid {
		request.DecidedAt = &decidedAt.Time
	}
	return &request, nil
}

// UpdateRequest persists the status of a request.
func (p *PostgreSQLAccessRepository) UpdateRequest(ctx context.Context, request *accessDomain.AccessRequest) error {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE access_requests SET status = $1, decided_at = $2 WHERE id = $3`

	result, err := querier.ExecContext(ctx, query, request.Status, request.DecidedAt, request.ID)
	if err != nil {
		return apperrors.Wrap(err, "failed to update access request")
	}
	return requireAffected(result, accessDomain.ErrRequestNotFound)
}

// NewPostgreSQLAccessRepository creates a new PostgreSQL access repository.
func NewPostgreSQLAccessRepository(db *sql.DB) *PostgreSQLAccessRepository {
	return &PostgreSQLAccessRepository{db: db}
}

func scanRole(row *sql.Row, message string) (accessDomain.Role, error) {
	var role accessDomain.Role
	if err := row.Scan(&role); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return accessDomain.RoleNone, nil
		}
		return accessDomain.RoleNone, apperrors.Wrap(err, message)
	}
	return role, nil
}

func requireAffected(result sql.Result, notFound error) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to read affected rows")
	}
	if affected == 0 {
		return notFound
	}
	return nil
}
