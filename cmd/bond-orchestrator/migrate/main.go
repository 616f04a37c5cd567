package main

import (
	"flag"
	"log"

	"github.com/uptrace/bun/migrate"

	"github.com/smartbond/middleware/pkg/config"
	"github.com/smartbond/middleware/pkg/migrations/orchdb"
	"github.com/smartbond/middleware/pkg/pgutil"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Usage = pgutil.Usage
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("error reading configuration file: %s", err.Error())
	}

	db, err := pgutil.ConnectDB(&cfg.Database)
	if err != nil {
		log.Fatalf("error connecting to database: %s", err.Error())
	}
	defer db.Close()

	log.Printf("Running migrations for orchestrator database (%s)...\n", cfg.Database.Database)

	migrator := migrate.NewMigrator(db, orchdb.Migrations)

	if err := pgutil.RunMigrations(migrator, flag.Args()...); err != nil {
		pgutil.Exitf(err.Error())
	}
}
