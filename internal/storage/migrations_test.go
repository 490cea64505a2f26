package storage_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harutaka/shiwake/internal/storage"
	"github.com/harutaka/shiwake/internal/testutil"
)

func TestMigrate_ReachesExpectedVersion(t *testing.T) {
	store := testutil.SetupTestDB(t)

	version, err := store.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, storage.ExpectedSchemaVersion, version)
}

func TestMigrate_IsIdempotent(t *testing.T) {
	store := testutil.SetupTestDB(t)
	ctx := context.Background()

	// Running migrations again on a current database is a no-op.
	require.NoError(t, store.Migrate(ctx))
	require.NoError(t, store.Migrate(ctx))

	version, err := store.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, storage.ExpectedSchemaVersion, version)
}

func TestUpdatedAtTrigger(t *testing.T) {
	store := testutil.SetupTestDB(t)
	ctx := context.Background()

	rule := testRule("trigger check", 0)
	require.NoError(t, store.CreateLearningRule(ctx, rule))

	got, err := store.GetLearningRule(ctx, rule.ID)
	require.NoError(t, err)
	assert.False(t, got.CreatedAt.IsZero())
	assert.False(t, got.UpdatedAt.IsZero())
}
