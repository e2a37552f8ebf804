package testutil

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/envsafe/internal/crypto/domain"
	secretsDomain "github.com/allisson/envsafe/internal/secrets/domain"
)

// MemoryKeyStore is an in-memory encryption key repository enforcing the single active
// and single migrating key rules.
type MemoryKeyStore struct {
	mu   sync.Mutex
	keys map[uuid.UUID]cryptoDomain.EncryptionKey
}

// NewMemoryKeyStore creates an empty key store.
func NewMemoryKeyStore() *MemoryKeyStore {
	return &MemoryKeyStore{keys: make(map[uuid.UUID]cryptoDomain.EncryptionKey)}
}

func (s *MemoryKeyStore) Create(_ context.Context, key *cryptoDomain.EncryptionKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.keys[key.ID]; ok {
		return cryptoDomain.ErrKeyConflict
	}
	if key.Status != cryptoDomain.KeyStatusRetired && s.countLocked(key.Status) > 0 {
		return cryptoDomain.ErrKeyConflict
	}
	s.keys[key.ID] = *key
	return nil
}

func (s *MemoryKeyStore) Get(_ context.Context, keyID uuid.UUID) (*cryptoDomain.EncryptionKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.keys[keyID]
	if !ok {
		return nil, cryptoDomain.ErrKeyNotFound
	}
	return &key, nil
}

func (s *MemoryKeyStore) GetActive(_ context.Context) (*cryptoDomain.EncryptionKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range s.keys {
		if key.Status == cryptoDomain.KeyStatusActive {
			return &key, nil
		}
	}
	return nil, cryptoDomain.ErrNoActiveKey
}

func (s *MemoryKeyStore) ListByStatus(
	_ context.Context,
	status cryptoDomain.KeyStatus,
) ([]*cryptoDomain.EncryptionKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var keys []*cryptoDomain.EncryptionKey
	for _, key := range s.keys {
		if key.Status == status {
			keys = append(keys, &key)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		return bytes.Compare(keys[i].ID[:], keys[j].ID[:]) > 0
	})
	return keys, nil
}

func (s *MemoryKeyStore) UpdateStatus(_ context.Context, keyID uuid.UUID, status cryptoDomain.KeyStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.keys[keyID]
	if !ok {
		return cryptoDomain.ErrKeyNotFound
	}
	if key.Status != status && status != cryptoDomain.KeyStatusRetired && s.countLocked(status) > 0 {
		return cryptoDomain.ErrKeyConflict
	}
	key.Status = status
	s.keys[keyID] = key
	return nil
}

func (s *MemoryKeyStore) Delete(_ context.Context, keyID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.keys[keyID]; !ok {
		return cryptoDomain.ErrKeyNotFound
	}
	delete(s.keys, keyID)
	return nil
}

// CountByStatus returns how many keys are in status.
func (s *MemoryKeyStore) CountByStatus(status cryptoDomain.KeyStatus) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.countLocked(status)
}

// Len returns the number of stored keys.
func (s *MemoryKeyStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.keys)
}

func (s *MemoryKeyStore) countLocked(status cryptoDomain.KeyStatus) int {
	n := 0
	for _, key := range s.keys {
		if key.Status == status {
			n++
		}
	}
	return n
}

// MemorySecretStore is an in-memory secret repository ordered by id.
type MemorySecretStore struct {
	mu      sync.Mutex
	secrets map[uuid.UUID]secretsDomain.Secret
	// AfterList, when set, runs after ListAfter returns its rows. Tests use it to simulate
	// a write racing with a rotation chunk.
	AfterList func()
}

// NewMemorySecretStore creates an empty secret store.
func NewMemorySecretStore() *MemorySecretStore {
	return &MemorySecretStore{secrets: make(map[uuid.UUID]secretsDomain.Secret)}
}

// Put inserts or replaces a secret.
func (s *MemorySecretStore) Put(secret *secretsDomain.Secret) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secrets[secret.ID] = *secret
}

func (s *MemorySecretStore) Create(_ context.Context, secret *secretsDomain.Secret) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.secrets {
		if existing.ProjectID == secret.ProjectID && existing.Key == secret.Key {
			return secretsDomain.ErrSecretKeyExists
		}
	}
	s.secrets[secret.ID] = *secret
	return nil
}

func (s *MemorySecretStore) Get(_ context.Context, secretID uuid.UUID) (*secretsDomain.Secret, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	secret, ok := s.secrets[secretID]
	if !ok {
		return nil, secretsDomain.ErrSecretNotFound
	}
	return &secret, nil
}

func (s *MemorySecretStore) Update(_ context.Context, secret *secretsDomain.Secret) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.secrets[secret.ID]; !ok {
		return secretsDomain.ErrSecretNotFound
	}
	s.secrets[secret.ID] = *secret
	return nil
}

func (s *MemorySecretStore) Delete(_ context.Context, secretID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.secrets[secretID]; !ok {
		return secretsDomain.ErrSecretNotFound
	}
	delete(s.secrets, secretID)
	return nil
}

func (s *MemorySecretStore) ListByProject(
	_ context.Context,
	projectID uuid.UUID,
) ([]*secretsDomain.Secret, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var secrets []*secretsDomain.Secret
	for _, secret := range s.sortedLocked() {
		if secret.ProjectID == projectID {
			secrets = append(secrets, secret)
		}
	}
	sort.Slice(secrets, func(i, j int) bool { return secrets[i].Key < secrets[j].Key })
	return secrets, nil
}

func (s *MemorySecretStore) ListAfter(
	_ context.Context,
	after *uuid.UUID,
	limit int,
) ([]*secretsDomain.Secret, error) {
	s.mu.Lock()
	var secrets []*secretsDomain.Secret
	for _, secret := range s.sortedLocked() {
		if after != nil && bytes.Compare(secret.ID[:], after[:]) <= 0 {
			continue
		}
		if len(secrets) == limit {
			break
		}
		secrets = append(secrets, secret)
	}
	hook := s.AfterList
	s.mu.Unlock()

	if hook != nil {
		hook()
	}
	return secrets, nil
}

func (s *MemorySecretStore) Count(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.secrets)), nil
}

func (s *MemorySecretStore) CountByKeyID(_ context.Context, keyID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, secret := range s.secrets {
		if secret.KeyID != nil && *secret.KeyID == keyID {
			n++
		}
	}
	return n, nil
}

func (s *MemorySecretStore) UpdateValues(_ context.Context, updates []secretsDomain.ValueUpdate) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, update := range updates {
		secret, ok := s.secrets[update.ID]
		if !ok || secret.Value != update.PreviousValue {
			continue
		}
		keyID := update.KeyID
		secret.Value = update.Value
		secret.KeyID = &keyID
		s.secrets[update.ID] = secret
		n++
	}
	return n, nil
}

// All returns every secret ordered by id.
func (s *MemorySecretStore) All() []*secretsDomain.Secret {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedLocked()
}

func (s *MemorySecretStore) sortedLocked() []*secretsDomain.Secret {
	secrets := make([]*secretsDomain.Secret, 0, len(s.secrets))
	for _, secret := range s.secrets {
		secrets = append(secrets, &secret)
	}
	sort.Slice(secrets, func(i, j int) bool {
		return bytes.Compare(secrets[i].ID[:], secrets[j].ID[:]) < 0
	})
	return secrets
}
