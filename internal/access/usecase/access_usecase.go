package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	accessDomain "github.com/allisson/envsafe/internal/access/domain"
	"github.com/allisson/envsafe/internal/cache"
	"github.com/allisson/envsafe/internal/database"
	apperrors "github.com/allisson/envsafe/internal/errors"
)

type accessUseCase struct {
	txManager database.TxManager
	repo      AccessRepository
	cache     cache.Client
	logger    *slog.Logger
}

// RoleFor implements Resolver. An unknown project resolves to RoleNone.
func (a *accessUseCase) RoleFor(ctx context.Context, userID, projectID uuid.UUID) (accessDomain.Role, error) {
	cacheKey := cache.RoleKey(userID, projectID)
	if role, ok := a.cachedRole(ctx, cacheKey); ok {
		return role, nil
	}

	role, err := a.resolveProjectRole(ctx, userID, projectID)
	if err != nil {
		return accessDomain.RoleNone, err
	}

	a.storeRole(ctx, cacheKey, role, cache.RoleTTL)
	return role, nil
}

// SecretAccess implements Resolver.
func (a *accessUseCase) SecretAccess(
	ctx context.Context,
	userID, secretID uuid.UUID,
) (accessDomain.SecretAccess, error) {
	cacheKey := cache.SecretAccessKey(userID, secretID)
	if role, ok := a.cachedRole(ctx, cacheKey); ok {
		return accessOf(role), nil
	}

	projectID, err := a.repo.GetSecretProject(ctx, secretID)
	if err != nil {
		return accessDomain.SecretAccess{}, err
	}

	role, err := a.RoleFor(ctx, userID, projectID)
	if err != nil {
		return accessDomain.SecretAccess{}, err
	}
	if !role.HasAccess() {
		role, err = a.repo.GetShareRole(ctx, secretID, userID)
		if err != nil {
			return accessDomain.SecretAccess{}, err
		}
	}

	a.storeRole(ctx, cacheKey, role, cache.AccessTTL)
	return accessOf(role), nil
}

// CreateProject implements AccessUseCase.
func (a *accessUseCase) CreateProject(
	ctx context.Context,
	ownerID uuid.UUID,
	name string,
) (*accessDomain.Project, error) {
	project := &accessDomain.Project{
		ID:        uuid.Must(uuid.NewV7()),
		OwnerID:   ownerID,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	if err := a.repo.CreateProject(ctx, project); err != nil {
		return nil, err
	}
	return project, nil
}

// RequestAccess implements AccessUseCase.
func (a *accessUseCase) RequestAccess(
	ctx context.Context,
	userID, projectID uuid.UUID,
	role accessDomain.Role,
) (*accessDomain.AccessRequest, error) {
	if !role.IsValid() {
		return nil, accessDomain.ErrInvalidRole
	}

	project, err := a.repo.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project.OwnerID == userID {
		return nil, accessDomain.ErrOwnerMembership
	}

	request := &accessDomain.AccessRequest{
		ID:        uuid.Must(uuid.NewV7()),
		ProjectID: projectID,
		UserID:    userID,
		Role:      role,
		Status:    accessDomain.RequestStatusPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := a.repo.CreateRequest(ctx, request); err != nil {
		return nil, err
	}
	return request, nil
}

// ApproveRequest implements AccessUseCase.
func (a *accessUseCase) ApproveRequest(
	ctx context.Context,
	actorID, projectID, requestID uuid.UUID,
) (*accessDomain.Membership, error) {
	var member *accessDomain.Membership

	err := a.txManager.WithTx(ctx, func(ctx context.Context) error {
		request, err := a.repo.GetRequestForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		if request.ProjectID != projectID {
			return accessDomain.ErrRequestNotFound
		}
		if request.Status != accessDomain.RequestStatusPending {
			return accessDomain.ErrRequestNotPending
		}
		if _, err := a.requireOwner(ctx, actorID, projectID); err != nil {
			return err
		}

		member = &accessDomain.Membership{
			ProjectID: projectID,
			UserID:    request.UserID,
			Role:      request.Role,
			CreatedAt: time.Now().UTC(),
		}
		if err := a.repo.UpsertMember(ctx, member); err != nil {
			return err
		}

		request.Approve()
		return a.repo.UpdateRequest(ctx, request)
	})
	if err != nil {
		return nil, err
	}

	a.invalidateProjectRole(ctx, member.UserID, projectID)
	a.logger.Info("access request approved",
		slog.String("request_id", requestID.String()),
		slog.String("project_id", projectID.String()),
		slog.String("user_id", member.UserID.String()),
		slog.String("role", string(member.Role)),
	)
	return member, nil
}

// AddMember implements AccessUseCase.
func (a *accessUseCase) AddMember(
	ctx context.Context,
	actorID, projectID, userID uuid.UUID,
	role accessDomain.Role,
) error {
	return a.writeMember(ctx, actorID, projectID, userID, role, false)
}

// ChangeMemberRole implements AccessUseCase.
func (a *accessUseCase) ChangeMemberRole(
	ctx context.Context,
	actorID, projectID, userID uuid.UUID,
	role accessDomain.Role,
) error {
	return a.writeMember(ctx, actorID, projectID, userID, role, true)
}

// RemoveMember implements AccessUseCase.
func (a *accessUseCase) RemoveMember(ctx context.Context, actorID, projectID, userID uuid.UUID) error {
	err := a.txManager.WithTx(ctx, func(ctx context.Context) error {
		if _, err := a.requireOwner(ctx, actorID, projectID); err != nil {
			return err
		}
		return a.repo.DeleteMember(ctx, projectID, userID)
	})
	if err != nil {
		return err
	}

	a.invalidateProjectRole(ctx, userID, projectID)
	return nil
}

// TransferOwnership implements AccessUseCase.
func (a *accessUseCase) TransferOwnership(ctx context.Context, actorID, projectID, newOwnerID uuid.UUID) error {
	err := a.txManager.WithTx(ctx, func(ctx context.Context) error {
		project, err := a.requireOwner(ctx, actorID, projectID)
		if err != nil {
			return err
		}
		if project.OwnerID == newOwnerID {
			return accessDomain.ErrOwnerMembership
		}

		if err := a.repo.UpdateOwner(ctx, projectID, newOwnerID); err != nil {
			return err
		}
		// The owner role supersedes membership, so the new owner's row would only linger.
		if err := a.repo.DeleteMember(ctx, projectID, newOwnerID); err != nil &&
			!apperrors.Is(err, accessDomain.ErrMemberNotFound) {
			return err
		}
		return a.repo.UpsertMember(ctx, &accessDomain.Membership{
			ProjectID: projectID,
			UserID:    project.OwnerID,
			Role:      accessDomain.RoleEditor,
			CreatedAt: time.Now().UTC(),
		})
	})
	if err != nil {
		return err
	}

	a.invalidateProjectRole(ctx, actorID, projectID)
	a.invalidateProjectRole(ctx, newOwnerID, projectID)
	a.logger.Info("project ownership transferred",
		slog.String("project_id", projectID.String()),
		slog.String("from_user_id", actorID.String()),
		slog.String("to_user_id", newOwnerID.String()),
	)
	return nil
}

// GrantSecretShare implements AccessUseCase.
func (a *accessUseCase) GrantSecretShare(
	ctx context.Context,
	actorID, secretID, userID uuid.UUID,
	role accessDomain.Role,
) error {
	if !role.IsValid() {
		return accessDomain.ErrInvalidRole
	}

	err := a.txManager.WithTx(ctx, func(ctx context.Context) error {
		if err := a.requireSecretWriter(ctx, actorID, secretID); err != nil {
			return err
		}
		return a.repo.UpsertShare(ctx, &accessDomain.SecretShare{
			SecretID:  secretID,
			UserID:    userID,
			Role:      role,
			CreatedAt: time.Now().UTC(),
		})
	})
	if err != nil {
		return err
	}

	a.invalidate(ctx, cache.SecretAccessKey(userID, secretID))
	return nil
}

// RevokeSecretShare implements AccessUseCase.
func (a *accessUseCase) RevokeSecretShare(ctx context.Context, actorID, secretID, userID uuid.UUID) error {
	err := a.txManager.WithTx(ctx, func(ctx context.Context) error {
		if err := a.requireSecretWriter(ctx, actorID, secretID); err != nil {
			return err
		}
		return a.repo.DeleteShare(ctx, secretID, userID)
	})
	if err != nil {
		return err
	}

	a.invalidate(ctx, cache.SecretAccessKey(userID, secretID))
	return nil
}

func (a *accessUseCase) writeMember(
	ctx context.Context,
	actorID, projectID, userID uuid.UUID,
	role accessDomain.Role,
	mustExist bool,
) error {
	if !role.IsValid() {
		return accessDomain.ErrInvalidRole
	}

	err := a.txManager.WithTx(ctx, func(ctx context.Context) error {
		project, err := a.requireOwner(ctx, actorID, projectID)
		if err != nil {
			return err
		}
		if project.OwnerID == userID {
			return accessDomain.ErrOwnerMembership
		}

		if mustExist {
			current, err := a.repo.GetMemberRole(ctx, projectID, userID)
			if err != nil {
				return err
			}
			if !current.HasAccess() {
				return accessDomain.ErrMemberNotFound
			}
		}

		return a.repo.UpsertMember(ctx, &accessDomain.Membership{
			ProjectID: projectID,
			UserID:    userID,
			Role:      role,
			CreatedAt: time.Now().UTC(),
		})
	})
	if err != nil {
		return err
	}

	a.invalidateProjectRole(ctx, userID, projectID)
	return nil
}

// requireOwner reads the project from the store, never the cache, so an ownership check
// inside a mutation cannot act on a stale role.
func (a *accessUseCase) requireOwner(
	ctx context.Context,
	actorID, projectID uuid.UUID,
) (*accessDomain.Project, error) {
	project, err := a.repo.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project.OwnerID != actorID {
		return nil, accessDomain.ErrForbidden
	}
	return project, nil
}

func (a *accessUseCase) requireSecretWriter(ctx context.Context, actorID, secretID uuid.UUID) error {
	projectID, err := a.repo.GetSecretProject(ctx, secretID)
	if err != nil {
		return err
	}
	role, err := a.resolveProjectRole(ctx, actorID, projectID)
	if err != nil {
		return err
	}
	if !role.CanWrite() {
		return accessDomain.ErrForbidden
	}
	return nil
}

func (a *accessUseCase) resolveProjectRole(
	ctx context.Context,
	userID, projectID uuid.UUID,
) (accessDomain.Role, error) {
	project, err := a.repo.GetProject(ctx, projectID)
	if err != nil {
		if apperrors.Is(err, accessDomain.ErrProjectNotFound) {
			return accessDomain.RoleNone, nil
		}
		return accessDomain.RoleNone, err
	}
	if project.OwnerID == userID {
		return accessDomain.RoleOwner, nil
	}
	return a.repo.GetMemberRole(ctx, projectID, userID)
}

// invalidateProjectRole drops the project role and every secret access entry of the user,
// since secret access entries may have been derived from the project role.
func (a *accessUseCase) invalidateProjectRole(ctx context.Context, userID, projectID uuid.UUID) {
	a.invalidate(ctx, cache.RoleKey(userID, projectID))

	pattern := cache.UserSecretAccessPattern(userID)
	if err := a.cache.DeleteMatching(ctx, pattern); err != nil {
		a.logger.Warn("failed to invalidate cached secret access",
			slog.String("cache_pattern", pattern), slog.Any("error", err))
	}
}

func (a *accessUseCase) invalidate(ctx context.Context, key string) {
	if err := a.cache.Delete(ctx, key); err != nil {
		a.logger.Warn("failed to invalidate cached role", slog.String("cache_key", key), slog.Any("error", err))
	}
}

func (a *accessUseCase) cachedRole(ctx context.Context, key string) (accessDomain.Role, bool) {
	value, found, err := a.cache.Get(ctx, key)
	switch {
	case err != nil:
		a.logger.Warn("cache read failed, falling back to database",
			slog.String("cache_key", key), slog.Any("error", err))
		return accessDomain.RoleNone, false
	case !found:
		return accessDomain.RoleNone, false
	case value == cache.NullValue:
		return accessDomain.RoleNone, true
	}

	role := accessDomain.Role(value)
	if role != accessDomain.RoleOwner && !role.IsValid() {
		a.logger.Warn("discarding malformed cached role", slog.String("cache_key", key))
		return accessDomain.RoleNone, false
	}
	return role, true
}

func (a *accessUseCase) storeRole(ctx context.Context, key string, role accessDomain.Role, ttl time.Duration) {
	value := string(role)
	if !role.HasAccess() {
		value = cache.NullValue
	}
	if err := a.cache.Set(ctx, key, value, ttl); err != nil {
		a.logger.Warn("cache write failed", slog.String("cache_key", key), slog.Any("error", err))
	}
}

func accessOf(role accessDomain.Role) accessDomain.SecretAccess {
	return accessDomain.SecretAccess{HasAccess: role.HasAccess(), Role: role}
}

// NewAccessUseCase creates an AccessUseCase. Pass cache.Disabled{} when no cache is
// configured.
func NewAccessUseCase(
	txManager database.TxManager,
	repo AccessRepository,
	cacheClient cache.Client,
	logger *slog.Logger,
) AccessUseCase {
	return &accessUseCase{
		txManager: txManager,
		repo:      repo,
		cache:     cacheClient,
		logger:    logger,
	}
}
