package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	accessDomain "github.com/allisson/envsafe/internal/access/domain"
	"github.com/allisson/envsafe/internal/metrics"
)

// accessUseCaseWithMetrics records metrics for access mutations. Role lookups run on
// every request and delegate without recording.
type accessUseCaseWithMetrics struct {
	next    AccessUseCase
	metrics metrics.BusinessMetrics
}

// NewAccessUseCaseWithMetrics wraps an AccessUseCase with metrics recording.
func NewAccessUseCaseWithMetrics(useCase AccessUseCase, m metrics.BusinessMetrics) AccessUseCase {
	return &accessUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

func (a *accessUseCaseWithMetrics) record(ctx context.Context, operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	a.metrics.RecordOperation(ctx, "access", operation, status)
	a.metrics.RecordDuration(ctx, "access", operation, time.Since(start), status)
}

func (a *accessUseCaseWithMetrics) RoleFor(
	ctx context.Context,
	userID, projectID uuid.UUID,
) (accessDomain.Role, error) {
	return a.next.RoleFor(ctx, userID, projectID)
}

func (a *accessUseCaseWithMetrics) SecretAccess(
	ctx context.Context,
	userID, secretID uuid.UUID,
) (accessDomain.SecretAccess, error) {
	return a.next.SecretAccess(ctx, userID, secretID)
}

func (a *accessUseCaseWithMetrics) CreateProject(
	ctx context.Context,
	ownerID uuid.UUID,
	name string,
) (*accessDomain.Project, error) {
	start := time.Now()
	project, err := a.next.CreateProject(ctx, ownerID, name)
	a.record(ctx, "project_create", start, err)
	return project, err
}

func (a *accessUseCaseWithMetrics) RequestAccess(
	ctx context.Context,
	userID, projectID uuid.UUID,
	role accessDomain.Role,
) (*accessDomain.AccessRequest, error) {
	start := time.Now()
	request, err := a.next.RequestAccess(ctx, userID, projectID, role)
	a.record(ctx, "access_request", start, err)
	return request, err
}

func (a *accessUseCaseWithMetrics) ApproveRequest(
	ctx context.Context,
	actorID, projectID, requestID uuid.UUID,
) (*accessDomain.Membership, error) {
	start := time.Now()
	member, err := a.next.ApproveRequest(ctx, actorID, projectID, requestID)
	a.record(ctx, "access_approve", start, err)
	return member, err
}

func (a *accessUseCaseWithMetrics) AddMember(
	ctx context.Context,
	actorID, projectID, userID uuid.UUID,
	role accessDomain.Role,
) error {
	start := time.Now()
	err := a.next.AddMember(ctx, actorID, projectID, userID, role)
	a.record(ctx, "member_add", start, err)
	return err
}

func (a *accessUseCaseWithMetrics) ChangeMemberRole(
	ctx context.Context,
	actorID, projectID, userID uuid.UUID,
	role accessDomain.Role,
) error {
	start := time.Now()
	err := a.next.ChangeMemberRole(ctx, actorID, projectID, userID, role)
	a.record(ctx, "member_change_role", start, err)
	return err
}

func (a *accessUseCaseWithMetrics) RemoveMember(ctx context.Context, actorID, projectID, userID uuid.UUID) error {
	start := time.Now()
	err := a.next.RemoveMember(ctx, actorID, projectID, userID)
	a.record(ctx, "member_remove", start, err)
	return err
}

func (a *accessUseCaseWithMetrics) TransferOwnership(
	ctx context.Context,
	actorID, projectID, newOwnerID uuid.UUID,
) error {
	start := time.Now()
	err := a.next.TransferOwnership(ctx, actorID, projectID, newOwnerID)
	a.record(ctx, "ownership_transfer", start, err)
	return err
}

func (a *accessUseCaseWithMetrics) GrantSecretShare(
	ctx context.Context,
	actorID, secretID, userID uuid.UUID,
	role accessDomain.Role,
) error {
	start := time.Now()
	err := a.next.GrantSecretShare(ctx, actorID, secretID, userID, role)
	a.record(ctx, "share_grant", start, err)
	return err
}

func (a *accessUseCaseWithMetrics) RevokeSecretShare(ctx context.Context, actorID, secretID, userID uuid.UUID) error {
	start := time.Now()
	err := a.next.RevokeSecretShare(ctx, actorID, secretID, userID)
	a.record(ctx, "share_revoke", start, err)
	return err
}
