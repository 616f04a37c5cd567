package orchdb

import (
	"context"
	"log"

	"github.com/uptrace/bun"

	"github.com/smartbond/middleware/pkg/pgutil"
	"github.com/smartbond/middleware/pkg/store"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		log.Println("creating workflow_runs table...")
		if err := pgutil.CreateSchema(ctx, db, &store.WorkflowRunDao{}); err != nil {
			return err
		}
		return pgutil.CreateModelIndexes(ctx, db, &store.WorkflowRunDao{}, "bond", "holder", "status")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping workflow_runs table...")
		return pgutil.DropTables(ctx, db, &store.WorkflowRunDao{})
	})
}
