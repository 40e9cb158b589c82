// Command export-json writes the whole library to a JSON envelope file.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"

	"novelhub/internal/porter"
	"novelhub/pkg/database"
)

func main() {
	out := flag.String("out", "novelhub-export.json", "output file (- for stdout)")
	dbPath := flag.String("db", "", "database path override")
	flag.Parse()

	cfg, err := database.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if *dbPath != "" {
		cfg.Path = *dbPath
	}

	ctx := context.Background()
	db, err := database.OpenAndMigrate(ctx, cfg)
	if err != nil {
		log.Fatalf("open: %v", err)
	}
	defer db.Close()

	env, err := porter.NewExporter(db).BuildEnvelope(ctx)
	if err != nil {
		log.Fatalf("export: %v", err)
	}

	w := os.Stdout
	if *out != "-" {
		f, err := os.Create(*out)
		if err != nil {
			log.Fatalf("create %s: %v", *out, err)
		}
		defer f.Close()
		w = f
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(env); err != nil {
		log.Fatalf("write envelope: %v", err)
	}
	log.Printf("exported %d chapters", len(env.Chapters))
}
