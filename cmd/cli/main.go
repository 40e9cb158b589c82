// Command cli administers the library database directly: migrations,
// verification, backup and restore, maintenance jobs, and stats. It operates
// on the database file, not through the API server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"novelhub/internal/backup"
	"novelhub/internal/chapters"
	"novelhub/internal/feedback"
	"novelhub/internal/maintenance"
	"novelhub/internal/translations"
	"novelhub/pkg/database"
)

func main() {
	global := flag.NewFlagSet("novelhub", flag.ExitOnError)
	dbPath := global.String("db", "", "database path (defaults to NOVELHUB_DB_PATH or ~/.novelhub/library.db)")
	if err := global.Parse(os.Args[1:]); err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	args := global.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := database.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if *dbPath != "" {
		cfg.Path = *dbPath
	}
	if err := database.EnsureDataDir(cfg); err != nil {
		log.Fatalf("data dir: %v", err)
	}

	ctx := context.Background()
	cmd := args[0]

	switch cmd {
	case "migrate":
		runMigrate(ctx, cfg)
	case "verify":
		runVerify(ctx, cfg)
	case "version":
		runVersion(ctx, cfg)
	case "backup":
		runBackup(ctx, cfg)
	case "backup-status":
		runBackupStatus(cfg)
	case "restore":
		runRestore(ctx, cfg)
	case "restore-file":
		if len(args) < 2 {
			log.Fatal("usage: novelhub restore-file <backup.json>")
		}
		runRestoreFile(ctx, cfg, args[1])
	case "jobs":
		runJobs(ctx, cfg)
	case "stats":
		runStats(ctx, cfg)
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`usage: novelhub [-db path] <command>

commands:
  migrate         apply pending schema migrations (snapshot-guarded)
  verify          check the schema for missing stores and indexes
  version         print current and target schema versions
  backup          take a snapshot without migrating
  backup-status   show backup metadata
  restore         roll back to the last failed-upgrade snapshot
  restore-file    rebuild the database from an exported backup file
  jobs            run pending maintenance jobs
  stats           print record counts`)
}

func runMigrate(ctx context.Context, cfg database.Config) {
	db, err := backup.GuardedOpen(ctx, cfg)
	if err != nil {
		log.Fatalf("migrate: %v", err)
	}
	defer db.Close()

	v, err := db.SchemaVersion(ctx)
	if err != nil {
		log.Fatalf("schema version: %v", err)
	}
	fmt.Printf("database at schema version %d\n", v)
}

func runVerify(ctx context.Context, cfg database.Config) {
	db, err := database.Open(cfg)
	if err != nil {
		log.Fatalf("open: %v", err)
	}
	defer db.Close()

	if err := db.Verify(ctx); err != nil {
		log.Fatalf("verify: %v", err)
	}
	fmt.Println("schema ok")
}

func runVersion(ctx context.Context, cfg database.Config) {
	db, err := database.Open(cfg)
	if err != nil {
		log.Fatalf("open: %v", err)
	}
	defer db.Close()

	v, err := db.SchemaVersion(ctx)
	if err != nil {
		log.Fatalf("schema version: %v", err)
	}
	fmt.Printf("current: %d\ntarget:  %d\n", v, database.TargetVersion)
}

func runBackup(ctx context.Context, cfg database.Config) {
	db, err := database.Open(cfg)
	if err != nil {
		log.Fatalf("open: %v", err)
	}
	defer db.Close()

	mgr := backup.NewManager(cfg)
	meta, payload, err := mgr.Snapshot(ctx, db)
	if err != nil {
		log.Fatalf("snapshot: %v", err)
	}
	fmt.Printf("snapshot %s saved to %s (from v%d, %d bytes)\n",
		meta.ID, meta.Storage, meta.FromVersion, len(payload))
}

func runBackupStatus(cfg database.Config) {
	meta, err := backup.NewManager(cfg).Meta()
	if err != nil {
		log.Fatalf("backup status: %v", err)
	}
	fmt.Printf("id:       %s\nstatus:   %s\nstorage:  %s\nfrom:     v%d\ntaken at: %s\n",
		meta.ID, meta.Status, meta.Storage, meta.FromVersion, meta.Timestamp)
}

func runRestore(ctx context.Context, cfg database.Config) {
	db, report, err := backup.NewManager(cfg).RestoreFromBackup(ctx)
	if err != nil {
		log.Fatalf("restore: %v", err)
	}
	defer db.Close()

	fmt.Printf("restored %d chapters, %d translations, %d settings, %d feedback, %d other\n",
		report.Chapters, report.Translations, report.Settings, report.Feedback, report.Other)
}

func runRestoreFile(ctx context.Context, cfg database.Config, path string) {
	f, err := os.Open(path)
	if err != nil {
		log.Fatalf("open backup file: %v", err)
	}
	defer f.Close()

	db, report, err := backup.NewManager(cfg).EmergencyRestore(ctx, f)
	if err != nil {
		log.Fatalf("restore-file: %v", err)
	}
	defer db.Close()

	fmt.Printf("restored %d chapters, %d translations, %d settings, %d feedback, %d other\n",
		report.Chapters, report.Translations, report.Settings, report.Feedback, report.Other)
}

func runJobs(ctx context.Context, cfg database.Config) {
	db, err := database.OpenAndMigrate(ctx, cfg)
	if err != nil {
		log.Fatalf("open: %v", err)
	}
	defer db.Close()

	if err := maintenance.NewRunner(db).RunAll(ctx); err != nil {
		log.Fatalf("jobs: %v", err)
	}
	fmt.Println("maintenance jobs done")
}

func runStats(ctx context.Context, cfg database.Config) {
	db, err := database.Open(cfg)
	if err != nil {
		log.Fatalf("open: %v", err)
	}
	defer db.Close()

	nChapters, err := chapters.NewRepo(db).Count(ctx)
	if err != nil {
		log.Fatalf("count chapters: %v", err)
	}
	nTranslations, err := translations.NewRepo(db, nil).Count(ctx)
	if err != nil {
		log.Fatalf("count translations: %v", err)
	}
	nFeedback, err := feedback.NewRepo(db).Count(ctx)
	if err != nil {
		log.Fatalf("count feedback: %v", err)
	}

	v, err := db.SchemaVersion(ctx)
	if err != nil {
		log.Fatalf("schema version: %v", err)
	}

	fmt.Printf("schema:       v%d\nchapters:     %d\ntranslations: %d\nfeedback:     %d\n",
		v, nChapters, nTranslations, nFeedback)
}
