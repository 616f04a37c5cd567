package store

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/smartbond/middleware/pkg/orchestrator"
)

// Store provides journal operations over the workflow_runs table. It
// implements orchestrator.Journal.
type Store struct {
	db *bun.DB
}

// NewStore wraps an existing database connection
func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

// RecordRun inserts the terminal record of one workflow run.
func (s *Store) RecordRun(ctx context.Context, rec *orchestrator.RunRecord) error {
	dao := &WorkflowRunDao{
		ID:         rec.ID,
		Workflow:   rec.Workflow,
		Holder:     rec.Holder,
		Status:     rec.Status,
		Attempts:   rec.Attempts,
		StartedAt:  rec.StartedAt,
		FinishedAt: rec.FinishedAt,
	}
	// the zero address means the workflow was not bond-scoped
	if rec.Bond != "" && rec.Bond != zeroAddressHex {
		dao.Bond = &rec.Bond
	}
	if rec.TxHash != "" {
		dao.TxHash = &rec.TxHash
	}
	if rec.Detail != "" {
		dao.Detail = &rec.Detail
	}

	if _, err := s.db.NewInsert().Model(dao).Exec(ctx); err != nil {
		return fmt.Errorf("failed to record workflow run: %w", err)
	}
	return nil
}

const zeroAddressHex = "0x0000000000000000000000000000000000000000"

// ListRuns returns the most recent workflow runs.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*WorkflowRunDao, error) {
	var runs []*WorkflowRunDao
	err := s.db.NewSelect().
		Model(&runs).
		Order("finished_at DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflow runs: %w", err)
	}
	return runs, nil
}

// RunsForBond returns all runs touching one bond, newest first.
func (s *Store) RunsForBond(ctx context.Context, bond string) ([]*WorkflowRunDao, error) {
	var runs []*WorkflowRunDao
	err := s.db.NewSelect().
		Model(&runs).
		Where("bond = ?", bond).
		Order("finished_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs for bond %s: %w", bond, err)
	}
	return runs, nil
}

// RunsByStatus returns runs with the given terminal status, newest first.
// Operators use this to find pending redemptions and timed-out submissions.
func (s *Store) RunsByStatus(ctx context.Context, status string) ([]*WorkflowRunDao, error) {
	var runs []*WorkflowRunDao
	err := s.db.NewSelect().
		Model(&runs).
		Where("status = ?", status).
		Order("finished_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s runs: %w", status, err)
	}
	return runs, nil
}
