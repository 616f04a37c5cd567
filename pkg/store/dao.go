// Package store persists the workflow run journal: one row per orchestrated
// workflow with its terminal status and transaction hash. The journal is an
// audit trail; workflow correctness never depends on it.
package store

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// WorkflowRunDao is a data access object that maps directly to the
// 'workflow_runs' table in PostgreSQL.
type WorkflowRunDao struct {
	bun.BaseModel `bun:"table:workflow_runs"`
	ID            uuid.UUID `json:"id" bun:",pk,type:uuid"`
	Workflow      string    `json:"workflow" bun:",notnull,type:VARCHAR(32)"`
	Bond          *string   `json:"bond,omitempty" bun:"bond,type:VARCHAR(42)"`
	Holder        string    `json:"holder" bun:",notnull,type:VARCHAR(42)"`
	TxHash        *string   `json:"tx_hash,omitempty" bun:"tx_hash,type:VARCHAR(66)"`
	Status        string    `json:"status" bun:",notnull,type:VARCHAR(16)"`
	Attempts      int       `json:"attempts" bun:",notnull,use_zero"`
	Detail        *string   `json:"detail,omitempty" bun:"detail,type:TEXT"`
	StartedAt     time.Time `json:"started_at" bun:",notnull"`
	FinishedAt    time.Time `json:"finished_at" bun:",notnull"`
}
