package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shadowmoose/grouppool/pkg/grouppool"
)

func TestDatabase_RecordAndCountByTag(t *testing.T) {
	ctx := context.Background()
	container, connStr := setupTestContainer(t, ctx)
	defer container.Terminate(ctx)

	db, err := New(ctx, Config{ConnectionString: connStr, MigrationsPath: "file://migrations"})
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.MigrateToLatest())

	require.NoError(t, db.Record(ctx, grouppool.Tag("ingest"), nil, "ok"))
	require.NoError(t, db.Record(ctx, grouppool.Tag("ingest"), errors.New("boom"), nil))
	require.NoError(t, db.Record(ctx, grouppool.Generic, nil, "ok"))

	succeeded, failed, err := db.CountByTag(ctx, grouppool.Tag("ingest"))
	require.NoError(t, err)
	require.Equal(t, int64(1), succeeded)
	require.Equal(t, int64(1), failed)

	genSucceeded, genFailed, err := db.CountByTag(ctx, grouppool.Generic)
	require.NoError(t, err)
	require.Equal(t, int64(1), genSucceeded)
	require.Equal(t, int64(0), genFailed)
}
