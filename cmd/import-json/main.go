// Command import-json merges a JSON envelope file into the library,
// printing progress as batches land.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"

	"novelhub/internal/porter"
	"novelhub/pkg/database"
	"novelhub/pkg/models"
)

func main() {
	in := flag.String("in", "", "envelope file to import (- for stdin)")
	dbPath := flag.String("db", "", "database path override")
	flag.Parse()

	if *in == "" {
		log.Fatal("usage: import-json -in <envelope.json>")
	}

	r := os.Stdin
	if *in != "-" {
		f, err := os.Open(*in)
		if err != nil {
			log.Fatalf("open %s: %v", *in, err)
		}
		defer f.Close()
		r = f
	}

	var env models.ExportEnvelope
	if err := json.NewDecoder(r).Decode(&env); err != nil {
		log.Fatalf("parse envelope: %v", err)
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
	db, err := database.OpenAndMigrate(ctx, cfg)
	if err != nil {
		log.Fatalf("open: %v", err)
	}
	defer db.Close()

	err = porter.NewImporter(db).Import(ctx, &env, func(p models.ImportProgress) {
		log.Printf("[import] %s: %d/%d %s", p.Stage, p.Current, p.Total, p.Message)
	})
	if err != nil {
		log.Fatalf("import: %v", err)
	}
}
