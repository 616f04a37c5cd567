package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"

	"github.com/smartbond/middleware/pkg/migrations/orchdb"
	"github.com/smartbond/middleware/pkg/orchestrator"
	"github.com/smartbond/middleware/pkg/pgutil"
	"github.com/smartbond/middleware/pkg/store"
)

func setupStore(t *testing.T) (*store.Store, *bun.DB) {
	t.Helper()

	db, cleanup := pgutil.SetupTestDB(t)
	t.Cleanup(cleanup)

	ctx := context.Background()
	migrator := migrate.NewMigrator(db, orchdb.Migrations)
	require.NoError(t, migrator.Init(ctx))
	group, err := migrator.Migrate(ctx)
	require.NoError(t, err)
	require.False(t, group.IsZero(), "expected migrations to run")

	pgutil.AssertTableExists(t, db, "workflow_runs")
	pgutil.AssertIndexExists(t, db, "idx_workflow_runs_bond")
	pgutil.AssertIndexExists(t, db, "idx_workflow_runs_status")

	return store.NewStore(db), db
}

func testRecord(workflow, bond, status string) *orchestrator.RunRecord {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &orchestrator.RunRecord{
		ID:         uuid.New(),
		Workflow:   workflow,
		Bond:       bond,
		Holder:     "0x00000000000000000000000000000000000000c1",
		TxHash:     "0x" + uuid.NewString()[:8],
		Status:     status,
		Attempts:   1,
		StartedAt:  now.Add(-time.Second),
		FinishedAt: now,
	}
}

func TestStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping testcontainers test in short mode")
	}

	s, _ := setupStore(t)
	ctx := context.Background()

	bondA := "0x00000000000000000000000000000000000000b1"
	bondB := "0x00000000000000000000000000000000000000b2"

	require.NoError(t, s.RecordRun(ctx, testRecord("issue_bond", "", "succeeded")))
	require.NoError(t, s.RecordRun(ctx, testRecord("buy_bond", bondA, "succeeded")))
	require.NoError(t, s.RecordRun(ctx, testRecord("redeem_bond", bondA, "pending")))
	require.NoError(t, s.RecordRun(ctx, testRecord("redeem_bond", bondB, "failed")))

	t.Run("ListRuns returns newest first up to the limit", func(t *testing.T) {
		runs, err := s.ListRuns(ctx, 3)
		require.NoError(t, err)
		assert.Len(t, runs, 3)
	})

	t.Run("RunsForBond filters by bond", func(t *testing.T) {
		runs, err := s.RunsForBond(ctx, bondA)
		require.NoError(t, err)
		require.Len(t, runs, 2)
		for _, run := range runs {
			require.NotNil(t, run.Bond)
			assert.Equal(t, bondA, *run.Bond)
		}
	})

	t.Run("RunsByStatus finds pending redemptions", func(t *testing.T) {
		runs, err := s.RunsByStatus(ctx, "pending")
		require.NoError(t, err)
		require.Len(t, runs, 1)
		assert.Equal(t, "redeem_bond", runs[0].Workflow)
		assert.Equal(t, 1, runs[0].Attempts)
	})

	t.Run("non-bond-scoped runs store a null bond", func(t *testing.T) {
		runs, err := s.RunsByStatus(ctx, "succeeded")
		require.NoError(t, err)
		var issueRun *store.WorkflowRunDao
		for _, run := range runs {
			if run.Workflow == "issue_bond" {
				issueRun = run
			}
		}
		require.NotNil(t, issueRun)
		assert.Nil(t, issueRun.Bond)
	})

	t.Run("error detail round-trips", func(t *testing.T) {
		rec := testRecord("close_issuance", bondB, "failed")
		rec.Detail = "execution reverted: Issuance already closed"
		require.NoError(t, s.RecordRun(ctx, rec))

		runs, err := s.RunsForBond(ctx, bondB)
		require.NoError(t, err)
		found := false
		for _, run := range runs {
			if run.Workflow == "close_issuance" {
				require.NotNil(t, run.Detail)
				assert.Equal(t, rec.Detail, *run.Detail)
				found = true
			}
		}
		assert.True(t, found)
	})
}
