package dto

import (
	"time"

	accessDomain "github.com/allisson/envsafe/internal/access/domain"
)

// ProjectResponse represents a project in API responses.
type ProjectResponse struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// MapProjectToResponse converts a domain project to an API response.
func MapProjectToResponse(project *accessDomain.Project) ProjectResponse {
	return ProjectResponse{
		ID:        project.ID.String(),
		OwnerID:   project.OwnerID.String(),
		Name:      project.Name,
		CreatedAt: project.CreatedAt,
	}
}

// AccessRequestResponse represents an access request in API responses.
type AccessRequestResponse struct {
	ID        string     `json:"id"`
	ProjectID string     `json:"project_id"`
	UserID    string     `json:"user_id"`
	Role      string     `json:"role"`
	Status    string     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	DecidedAt *time.Time `json:"decided_at,omitempty"`
}

// MapAccessRequestToResponse converts a domain access request to an API response.
func MapAccessRequestToResponse(request *accessDomain.AccessRequest) AccessRequestResponse {
	return AccessRequestResponse{
		ID:        request.ID.String(),
		ProjectID: request.ProjectID.String(),
		UserID:    request.UserID.String(),
		Role:      string(request.Role),
		Status:    string(request.Status),
		CreatedAt: request.CreatedAt,
		DecidedAt: request.DecidedAt,
	}
}

// MembershipResponse represents a project membership in API responses.
type MembershipResponse struct {
	ProjectID string `json:"project_id"`
	UserID    string `json:"user_id"`
	Role      string `json:"role"`
}

// MapMembershipToResponse converts a domain membership to an API response.
func MapMembershipToResponse(member *accessDomain.Membership) MembershipResponse {
	return MembershipResponse{
		ProjectID: member.ProjectID.String(),
		UserID:    member.UserID.String(),
		Role:      string(member.Role),
	}
}

// RoleResponse is the caller's resolved role. Role is null when the caller has no access.
type RoleResponse struct {
	Role *string `json:"role"`
}

// MapRoleToResponse converts a resolved role to an API response.
func MapRoleToResponse(role accessDomain.Role) RoleResponse {
	if !role.HasAccess() {
		return RoleResponse{}
	}
	value := string(role)
	return RoleResponse{Role: &value}
}
