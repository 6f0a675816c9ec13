package postgres

import (
	"context"
	"testing"
	"time"

	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/regscan/enforcement-ingest/internal/domain/enforcement"
	"github.com/regscan/enforcement-ingest/internal/infra/storage"
)

func setupRecordTest(t *testing.T) (context.Context, *RecordStore, func()) {
	t.Helper()

	pool, cleanup := storage.SetupTestContainer(t)
	store := NewRecordStore(pool, storage.NoOpTracer())

	return context.Background(), store, cleanup
}

func convictionRecord(naturalKey string) *enforcement.Record {
	amount := 12000.0
	record := enforcement.NewRecord(enforcement.RawSummary{
		Agency:          enforcement.AgencyHSE,
		EnforcementType: enforcement.TypeCase,
		NaturalKey:      naturalKey,
		SubjectName:     "Acme Construction Ltd",
		Date:            time.Date(2025, 2, 14, 0, 0, 0, 0, time.UTC),
		ActionType:      enforcement.ActionTypeCourtCase,
		DetailURL:       "/register/case/" + naturalKey,
	})
	record.MonetaryAmount = &amount
	record.Description = "Breach of working at height regulations"
	record.Region = "North West"
	return record
}

func TestPGRecordStore_CreateAndFind(t *testing.T) {
	t.Parallel()

	ctx, store, cleanup := setupRecordTest(t)
	defer cleanup()

	record := convictionRecord("F120000123")
	require.NoError(t, store.Create(ctx, record))
	assert.False(t, record.LastSyncedAt.IsZero(), "Create should stamp LastSyncedAt")

	found, err := store.FindByNaturalKey(ctx, enforcement.AgencyHSE, "F120000123")
	require.NoError(t, err)
	require.NotNil(t, found)

	assert.Equal(t, record.ID, found.ID)
	assert.Equal(t, enforcement.AgencyHSE, found.Agency)
	assert.Equal(t, enforcement.TypeCase, found.EnforcementType)
	assert.Equal(t, "Acme Construction Ltd", found.SubjectName)
	assert.Equal(t, enforcement.ActionTypeCourtCase, found.ActionType)
	require.NotNil(t, found.MonetaryAmount)
	assert.Equal(t, 12000.0, *found.MonetaryAmount)
	assert.Equal(t, "Breach of working at height regulations", found.Description)
	assert.Equal(t, "North West", found.Region)
}

func TestPGRecordStore_DuplicateNaturalKey(t *testing.T) {
	t.Parallel()

	ctx, store, cleanup := setupRecordTest(t)
	defer cleanup()

	require.NoError(t, store.Create(ctx, convictionRecord("F120000200")))

	err := store.Create(ctx, convictionRecord("F120000200"))
	require.Error(t, err)
	assert.ErrorIs(t, err, enforcement.ErrDuplicateRecord)
}

func TestPGRecordStore_SameKeyDifferentAgency(t *testing.T) {
	t.Parallel()

	ctx, store, cleanup := setupRecordTest(t)
	defer cleanup()

	require.NoError(t, store.Create(ctx, convictionRecord("SHARED-KEY")))

	other := convictionRecord("SHARED-KEY")
	other.Agency = enforcement.AgencyEA
	require.NoError(t, store.Create(ctx, other), "uniqueness is scoped per agency")
}

func TestPGRecordStore_FindNonExistent(t *testing.T) {
	t.Parallel()

	ctx, store, cleanup := setupRecordTest(t)
	defer cleanup()

	found, err := store.FindByNaturalKey(ctx, enforcement.AgencyHSE, "missing")
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestPGRecordStore_TouchLastSynced(t *testing.T) {
	t.Parallel()

	ctx, store, cleanup := setupRecordTest(t)
	defer cleanup()

	record := convictionRecord("F120000300")
	require.NoError(t, store.Create(ctx, record))
	first := record.LastSyncedAt

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, store.TouchLastSynced(ctx, record.ID))

	found, err := store.FindByNaturalKey(ctx, enforcement.AgencyHSE, "F120000300")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.True(t, found.LastSyncedAt.After(first))
}

func TestPGRecordStore_TouchNonExistent(t *testing.T) {
	t.Parallel()

	ctx, store, cleanup := setupRecordTest(t)
	defer cleanup()

	err := store.TouchLastSynced(ctx, uuid.New())
	require.Error(t, err)
}

func TestPGRecordStore_NilMonetaryAmountRoundTrip(t *testing.T) {
	t.Parallel()

	ctx, store, cleanup := setupRecordTest(t)
	defer cleanup()

	record := convictionRecord("F120000400")
	record.MonetaryAmount = nil
	require.NoError(t, store.Create(ctx, record))

	found, err := store.FindByNaturalKey(ctx, enforcement.AgencyHSE, "F120000400")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Nil(t, found.MonetaryAmount)
}
