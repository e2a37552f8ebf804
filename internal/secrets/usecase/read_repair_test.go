package usecase_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	accessDomain "github.com/allisson/envsafe/internal/access/domain"
	cryptoDomain "github.com/allisson/envsafe/internal/crypto/domain"
	secretsDomain "github.com/allisson/envsafe/internal/secrets/domain"
	"github.com/allisson/envsafe/internal/secrets/usecase"
)

// outcomeMetrics counts read-repair outcomes and ignores everything else.
type outcomeMetrics struct {
	mu     sync.Mutex
	counts map[string]int
}

func newOutcomeMetrics() *outcomeMetrics {
	return &outcomeMetrics{counts: make(map[string]int)}
}

func (m *outcomeMetrics) RecordReadRepair(_ context.Context, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[outcome]++
}

func (m *outcomeMetrics) RecordOperation(context.Context, string, string, string) {}

func (m *outcomeMetrics) RecordDuration(context.Context, string, string, time.Duration, string) {}

func (m *outcomeMetrics) RecordRotationFinished(context.Context, string, int64, int64) {}

func (m *outcomeMetrics) count(status string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[status]
}

// blockingUpdater holds every write until release is closed.
type blockingUpdater struct {
	release chan struct{}
	next    usecase.ValueUpdater
}

func (b *blockingUpdater) UpdateValues(ctx context.Context, updates []secretsDomain.ValueUpdate) (int64, error) {
	<-b.release
	return b.next.UpdateValues(ctx, updates)
}

func (f *fixture) repairer(m *outcomeMetrics) *usecase.ReadRepairer {
	return usecase.NewReadRepairer(usecase.ReadRepairConfig{}, f.engine, f.secrets, m, f.logger)
}

// promote creates a new key and makes it active, retiring the current one.
func (f *fixture) promote(t *testing.T) *cryptoDomain.EncryptionKey {
	t.Helper()
	ctx := context.Background()

	current, err := f.keys.GetActive(ctx)
	require.NoError(t, err)
	next, err := f.registry.CreateKey(ctx, cryptoDomain.KeyStatusMigrating)
	require.NoError(t, err)
	require.NoError(t, f.keys.UpdateStatus(ctx, current.ID, cryptoDomain.KeyStatusRetired))
	require.NoError(t, f.keys.UpdateStatus(ctx, next.ID, cryptoDomain.KeyStatusActive))
	f.registry.InvalidateActiveKey(ctx)
	return next
}

func (f *fixture) envelopeOf(t *testing.T, secretID uuid.UUID) (cryptoDomain.Envelope, string) {
	t.Helper()
	ctx := context.Background()
	stored, err := f.secrets.Get(ctx, secretID)
	require.NoError(t, err)
	envelope, err := cryptoDomain.ParseEnvelope(stored.Value)
	require.NoError(t, err)
	plaintext, err := f.engine.Decrypt(ctx, stored.Value)
	require.NoError(t, err)
	return envelope, string(plaintext)
}

func TestReadRepair_UpgradesLegacyValueOnGet(t *testing.T) {
	defer goleak.VerifyNone(t)
	ctx := context.Background()

	f := newFixture(t)
	m := newOutcomeMetrics()
	repairer := f.repairer(m)

	userID := uuid.New()
	legacy := &secretsDomain.Secret{
		ID:        uuid.Must(uuid.NewV7()),
		ProjectID: uuid.New(),
		Key:       "LEGACY",
		Value:     f.legacyValue(t, "from-before-versioning"),
	}
	f.secrets.Put(legacy)
	f.grantSecret(userID, legacy.ID, accessDomain.RoleViewer)

	result, err := f.useCase(repairer).Get(ctx, userID, legacy.ID)
	require.NoError(t, err)
	assert.Equal(t, "from-before-versioning", result.Value)

	repairer.Close()

	activeKeyID, err := f.engine.ActiveKeyID(ctx)
	require.NoError(t, err)
	envelope, plaintext := f.envelopeOf(t, legacy.ID)
	assert.False(t, envelope.IsLegacy())
	assert.Equal(t, activeKeyID, envelope.KeyID)
	assert.Equal(t, "from-before-versioning", plaintext)

	stored, err := f.secrets.Get(ctx, legacy.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.KeyID)
	assert.Equal(t, activeKeyID, *stored.KeyID)
	assert.Equal(t, 1, m.count(usecase.RepairRepaired))
}

func TestReadRepair_MovesRetiredKeyValuesOnList(t *testing.T) {
	defer goleak.VerifyNone(t)
	ctx := context.Background()

	f := newFixture(t)
	m := newOutcomeMetrics()
	repairer := f.repairer(m)

	userID, projectID := uuid.New(), uuid.New()
	old := f.seed(t, projectID, "OLD", "old-value")
	next := f.promote(t)
	fresh := f.seed(t, projectID, "FRESH", "fresh-value")
	freshValue := fresh.Value
	f.grantProject(userID, projectID, accessDomain.RoleEditor)

	results, err := f.useCase(repairer).ListByProject(ctx, userID, projectID)
	require.NoError(t, err)
	require.Len(t, results, 2)

	repairer.Close()

	envelope, plaintext := f.envelopeOf(t, old.ID)
	assert.Equal(t, next.ID, envelope.KeyID)
	assert.Equal(t, "old-value", plaintext)

	stored, err := f.secrets.Get(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, freshValue, stored.Value)

	assert.Equal(t, 1, m.count(usecase.RepairRepaired))
	assert.Equal(t, 1, m.count(usecase.RepairSkipped))
}

func TestReadRepair_LeavesRotationTargetAlone(t *testing.T) {
	defer goleak.VerifyNone(t)
	ctx := context.Background()

	f := newFixture(t)
	m := newOutcomeMetrics()
	repairer := f.repairer(m)

	migrating, err := f.registry.CreateKey(ctx, cryptoDomain.KeyStatusMigrating)
	require.NoError(t, err)
	envelope, err := f.engine.EncryptWithKey(ctx, migrating.ID, []byte("already-moved"))
	require.NoError(t, err)

	keyID := envelope.KeyID
	secret := &secretsDomain.Secret{
		ID:        uuid.Must(uuid.NewV7()),
		ProjectID: uuid.New(),
		Key:       "MOVED",
		Value:     envelope.String(),
		KeyID:     &keyID,
	}
	f.secrets.Put(secret)

	repairer.Schedule(ctx, []usecase.RepairItem{{Secret: secret, Plaintext: []byte("already-moved")}})
	repairer.Close()

	stored, err := f.secrets.Get(ctx, secret.ID)
	require.NoError(t, err)
	assert.Equal(t, secret.Value, stored.Value)
	assert.Equal(t, 1, m.count(usecase.RepairSkipped))
	assert.Equal(t, 0, m.count(usecase.RepairRepaired))
}

func TestReadRepair_MovesNewerRetiredKeyValues(t *testing.T) {
	defer goleak.VerifyNone(t)
	ctx := context.Background()

	f := newFixture(t)
	m := newOutcomeMetrics()
	repairer := f.repairer(m)

	// A rotation target left behind by an aborted job is newer than the active key.
	abandoned, err := f.registry.CreateKey(ctx, cryptoDomain.KeyStatusMigrating)
	require.NoError(t, err)
	envelope, err := f.engine.EncryptWithKey(ctx, abandoned.ID, []byte("half-moved"))
	require.NoError(t, err)
	require.NoError(t, f.keys.UpdateStatus(ctx, abandoned.ID, cryptoDomain.KeyStatusRetired))

	keyID := envelope.KeyID
	secret := &secretsDomain.Secret{
		ID:        uuid.Must(uuid.NewV7()),
		ProjectID: uuid.New(),
		Key:       "HALF_MOVED",
		Value:     envelope.String(),
		KeyID:     &keyID,
	}
	f.secrets.Put(secret)

	repairer.Schedule(ctx, []usecase.RepairItem{{Secret: secret, Plaintext: []byte("half-moved")}})
	repairer.Close()

	activeKeyID, err := f.engine.ActiveKeyID(ctx)
	require.NoError(t, err)
	repaired, plaintext := f.envelopeOf(t, secret.ID)
	assert.Equal(t, activeKeyID, repaired.KeyID)
	assert.Equal(t, "half-moved", plaintext)
	assert.Equal(t, 1, m.count(usecase.RepairRepaired))
}

func TestReadRepair_ConcurrentUpdateWins(t *testing.T) {
	defer goleak.VerifyNone(t)
	ctx := context.Background()

	f := newFixture(t)
	m := newOutcomeMetrics()
	repairer := f.repairer(m)

	read := f.seed(t, uuid.New(), "RACE", "as-read")
	f.promote(t)

	newer, err := f.engine.Encrypt(ctx, []byte("written-by-user"))
	require.NoError(t, err)
	updated := *read
	updated.Value = newer.String()
	f.secrets.Put(&updated)

	repairer.Schedule(ctx, []usecase.RepairItem{{Secret: read, Plaintext: []byte("as-read")}})
	repairer.Close()

	_, plaintext := f.envelopeOf(t, read.ID)
	assert.Equal(t, "written-by-user", plaintext)
	assert.Equal(t, 1, m.count(usecase.RepairConflict))
}

func TestReadRepair_DropsWhenSaturated(t *testing.T) {
	defer goleak.VerifyNone(t)
	ctx := context.Background()

	f := newFixture(t)
	m := newOutcomeMetrics()
	blocker := &blockingUpdater{release: make(chan struct{}), next: f.secrets}
	repairer := usecase.NewReadRepairer(
		usecase.ReadRepairConfig{MaxInFlight: 1},
		f.engine, blocker, m, f.logger,
	)

	first := &secretsDomain.Secret{ID: uuid.Must(uuid.NewV7()), Value: f.legacyValue(t, "one")}
	second := &secretsDomain.Secret{ID: uuid.Must(uuid.NewV7()), Value: f.legacyValue(t, "two")}
	f.secrets.Put(first)
	f.secrets.Put(second)

	repairer.Schedule(ctx, []usecase.RepairItem{{Secret: first, Plaintext: []byte("one")}})
	repairer.Schedule(ctx, []usecase.RepairItem{{Secret: second, Plaintext: []byte("two")}})
	assert.Equal(t, 1, m.count(usecase.RepairDropped))

	close(blocker.release)
	repairer.Close()

	assert.Equal(t, 1, m.count(usecase.RepairRepaired))
	stored, err := f.secrets.Get(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, second.Value, stored.Value)
}

func TestReadRepair_IgnoresBatchesAfterClose(t *testing.T) {
	defer goleak.VerifyNone(t)
	ctx := context.Background()

	f := newFixture(t)
	m := newOutcomeMetrics()
	repairer := f.repairer(m)
	repairer.Close()

	secret := &secretsDomain.Secret{ID: uuid.Must(uuid.NewV7()), Value: f.legacyValue(t, "late")}
	f.secrets.Put(secret)

	repairer.Schedule(ctx, []usecase.RepairItem{{Secret: secret, Plaintext: []byte("late")}})

	stored, err := f.secrets.Get(ctx, secret.ID)
	require.NoError(t, err)
	assert.Equal(t, secret.Value, stored.Value)
	assert.Zero(t, m.count(usecase.RepairRepaired))
}

func TestReadRepair_OutlivesRequestContext(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newFixture(t)
	m := newOutcomeMetrics()
	repairer := f.repairer(m)

	secret := &secretsDomain.Secret{ID: uuid.Must(uuid.NewV7()), Value: f.legacyValue(t, "req")}
	f.secrets.Put(secret)

	ctx, cancel := context.WithCancel(context.Background())
	repairer.Schedule(ctx, []usecase.RepairItem{{Secret: secret, Plaintext: []byte("req")}})
	cancel()
	repairer.Close()

	envelope, plaintext := f.envelopeOf(t, secret.ID)
	assert.False(t, envelope.IsLegacy())
	assert.Equal(t, "req", plaintext)
}
