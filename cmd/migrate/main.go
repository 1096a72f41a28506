// cmd/migrate applies the *.up.sql files in migrations/ to the configured
// database. Versions are tracked in a golang-migrate compatible
// schema_migrations table (bigint version + dirty flag).
//
// Usage:
//
//	go run ./cmd/migrate
//	DATABASE_URL=postgres://... go run ./cmd/migrate
//	go run ./cmd/migrate -dir path/to/migrations
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmerrifield20/donationcore/internal/config"
	"github.com/spf13/viper"
)

func main() {
	dir := flag.String("dir", "migrations", "directory holding the *.up.sql files")
	flag.Parse()

	if err := run(*dir); err != nil {
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		os.Exit(1)
	}
}

func run(dir string) error {
	v := viper.New()
	config.SetDefaults(v)
	if _, err := config.ReadFile(v); err != nil {
		return err
	}
	dbURL := v.GetString("database.url")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	db, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer db.Close()

	if err := db.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	fmt.Println("connected to database")

	if _, err := db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version bigint NOT NULL,
			dirty   boolean NOT NULL,
			PRIMARY KEY (version)
		)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	files, err := upFiles(dir)
	if err != nil {
		return err
	}

	applied := 0
	for _, f := range files {
		ver, err := versionFromFile(f)
		if err != nil {
			return fmt.Errorf("parse version from %s: %w", f, err)
		}

		var exists bool
		if err := db.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1 AND dirty = false)`,
			ver,
		).Scan(&exists); err != nil {
			return fmt.Errorf("check %s: %w", f, err)
		}
		if exists {
			fmt.Printf("  skip  %s (already applied)\n", f)
			continue
		}

		sql, err := os.ReadFile(filepath.Join(dir, f))
		if err != nil {
			return fmt.Errorf("read %s: %w", f, err)
		}

		// dirty stays true if the apply fails so the broken version is visible.
		if _, err := db.Exec(ctx,
			`INSERT INTO schema_migrations (version, dirty) VALUES ($1, true)
			 ON CONFLICT (version) DO UPDATE SET dirty = true`, ver,
		); err != nil {
			return fmt.Errorf("mark dirty %s: %w", f, err)
		}

		if _, err := db.Exec(ctx, string(sql)); err != nil {
			return fmt.Errorf("apply %s: %w", f, err)
		}

		if _, err := db.Exec(ctx,
			`UPDATE schema_migrations SET dirty = false WHERE version = $1`, ver,
		); err != nil {
			return fmt.Errorf("mark clean %s: %w", f, err)
		}

		fmt.Printf("  apply %s\n", f)
		applied++
	}

	if applied == 0 {
		fmt.Println("nothing to migrate, already up to date")
	} else {
		fmt.Printf("applied %d migration(s)\n", applied)
	}
	return nil
}

// upFiles lists the forward migrations in dir, sorted by name.
func upFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".up.sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

// versionFromFile extracts the leading integer from a migration filename:
// "001_init.up.sql" gives 1.
func versionFromFile(filename string) (int64, error) {
	prefix, _, ok := strings.Cut(filename, "_")
	if !ok {
		return 0, fmt.Errorf("unexpected filename format")
	}
	return strconv.ParseInt(prefix, 10, 64)
}
