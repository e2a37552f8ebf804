package testutil

import (
	"context"
	"sync"

	"github.com/google/uuid"

	accessDomain "github.com/allisson/envsafe/internal/access/domain"
	secretsDomain "github.com/allisson/envsafe/internal/secrets/domain"
)

type pair struct {
	a, b uuid.UUID
}

// MemoryAccessStore is an in-memory access repository. Secret to project lookups are
// answered from the attached MemorySecretStore.
type MemoryAccessStore struct {
	mu       sync.Mutex
	secrets  *MemorySecretStore
	projects map[uuid.UUID]accessDomain.Project
	members  map[pair]accessDomain.Role
	shares   map[pair]accessDomain.Role
	requests map[uuid.UUID]accessDomain.AccessRequest
	reads    int
}

// NewMemoryAccessStore creates an empty access store backed by secrets.
func NewMemoryAccessStore(secrets *MemorySecretStore) *MemoryAccessStore {
	return &MemoryAccessStore{
		secrets:  secrets,
		projects: make(map[uuid.UUID]accessDomain.Project),
		members:  make(map[pair]accessDomain.Role),
		shares:   make(map[pair]accessDomain.Role),
		requests: make(map[uuid.UUID]accessDomain.AccessRequest),
	}
}

func (s *MemoryAccessStore) CreateProject(_ context.Context, project *accessDomain.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects[project.ID] = *project
	return nil
}

func (s *MemoryAccessStore) GetProject(_ context.Context, projectID uuid.UUID) (*accessDomain.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++

	project, ok := s.projects[projectID]
	if !ok {
		return nil, accessDomain.ErrProjectNotFound
	}
	return &project, nil
}

func (s *MemoryAccessStore) UpdateOwner(_ context.Context, projectID, ownerID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	project, ok := s.projects[projectID]
	if !ok {
		return accessDomain.ErrProjectNotFound
	}
	project.OwnerID = ownerID
	s.projects[projectID] = project
	return nil
}

func (s *MemoryAccessStore) GetMemberRole(_ context.Context, projectID, userID uuid.UUID) (accessDomain.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	return s.members[pair{projectID, userID}], nil
}

func (s *MemoryAccessStore) UpsertMember(_ context.Context, member *accessDomain.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[pair{member.ProjectID, member.UserID}] = member.Role
	return nil
}

func (s *MemoryAccessStore) DeleteMember(_ context.Context, projectID, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pair{projectID, userID}
	if _, ok := s.members[key]; !ok {
		return accessDomain.ErrMemberNotFound
	}
	delete(s.members, key)
	return nil
}

func (s *MemoryAccessStore) GetSecretProject(ctx context.Context, secretID uuid.UUID) (uuid.UUID, error) {
	if s.secrets == nil {
		return uuid.Nil, secretsDomain.ErrSecretNotFound
	}
	secret, err := s.secrets.Get(ctx, secretID)
	if err != nil {
		return uuid.Nil, err
	}
	return secret.ProjectID, nil
}

func (s *MemoryAccessStore) GetShareRole(_ context.Context, secretID, userID uuid.UUID) (accessDomain.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	return s.shares[pair{secretID, userID}], nil
}

func (s *MemoryAccessStore) UpsertShare(_ context.Context, share *accessDomain.SecretShare) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shares[pair{share.SecretID, share.UserID}] = share.Role
	return nil
}

func (s *MemoryAccessStore) DeleteShare(_ context.Context, secretID, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pair{secretID, userID}
	if _, ok := s.shares[key]; !ok {
		return accessDomain.ErrShareNotFound
	}
	delete(s.shares, key)
	return nil
}

func (s *MemoryAccessStore) CreateRequest(_ context.Context, request *accessDomain.AccessRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[request.ID] = *request
	return nil
}

func (s *MemoryAccessStore) GetRequestForUpdate(
	_ context.Context,
	requestID uuid.UUID,
) (*accessDomain.AccessRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	request, ok := s.requests[requestID]
	if !ok {
		return nil, accessDomain.ErrRequestNotFound
	}
	return &request, nil
}

func (s *MemoryAccessStore) UpdateRequest(_ context.Context, request *accessDomain.AccessRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.requests[request.ID]; !ok {
		return accessDomain.ErrRequestNotFound
	}
	s.requests[request.ID] = *request
	return nil
}

// Reads returns how many role lookups reached the store.
func (s *MemoryAccessStore) Reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}
