// Package orchdb holds all the migrations for the orchestrator database
package orchdb

import "github.com/uptrace/bun/migrate"

// Migrations is the collection the migrate commands run against
var Migrations = migrate.NewMigrations()
