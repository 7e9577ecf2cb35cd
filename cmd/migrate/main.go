package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/samirrijal/routekit/internal/pkg/config"
	"github.com/samirrijal/routekit/internal/pkg/logging"
)

const migrationsDir = "migrations"

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: migrate <up|down|status>")
	}

	cfg, err := config.Load("routekit-migrate")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.SetupFromEnv("routekit-migrate", "text")

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	if err := ensureLedger(ctx, pool); err != nil {
		log.Fatalf("ledger: %v", err)
	}

	switch os.Args[1] {
	case "up":
		err = runMigrations(ctx, pool)
	case "down":
		err = dropTables(ctx, pool)
	case "status":
		err = printStatus(ctx, pool)
	default:
		log.Fatalf("unknown command: %s", os.Args[1])
	}
	if err != nil {
		log.Fatalf("%s: %v", os.Args[1], err)
	}
}

func ensureLedger(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	return err
}

// migrationFiles returns the .sql files in version order.
func migrationFiles() ([]string, error) {
	files, err := filepath.Glob(filepath.Join(migrationsDir, "*.sql"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

func applied(ctx context.Context, pool *pgxpool.Pool) (map[string]bool, error) {
	rows, err := pool.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	versions, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	done := make(map[string]bool, len(versions))
	for _, v := range versions {
		done[v] = true
	}
	return done, nil
}

func version(path string) string {
	return strings.TrimSuffix(filepath.Base(path), ".sql")
}

// runMigrations applies each pending file in its own transaction.
func runMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	files, err := migrationFiles()
	if err != nil {
		return err
	}
	done, err := applied(ctx, pool)
	if err != nil {
		return err
	}

	count := 0
	for _, f := range files {
		v := version(f)
		if done[v] {
			continue
		}
		data, err := os.ReadFile(f)
		if err != nil {
			return fmt.Errorf("read %s: %w", f, err)
		}

		err = pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, string(data)); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, v)
			return err
		})
		if err != nil {
			return fmt.Errorf("exec %s: %w", f, err)
		}
		slog.Info("migration applied", "version", v)
		count++
	}

	slog.Info("migrations complete", "applied", count, "total", len(files))
	return nil
}

// dropTables removes the application tables in dependency order and clears
// the ledger. Extensions are left installed.
func dropTables(ctx context.Context, pool *pgxpool.Pool) error {
	for _, table := range []string{"routes", "pois", "regions"} {
		if _, err := pool.Exec(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE"); err != nil {
			return fmt.Errorf("drop %s: %w", table, err)
		}
		slog.Info("table dropped", "table", table)
	}
	if _, err := pool.Exec(ctx, `DELETE FROM schema_migrations WHERE version <> $1`, "001_init_extensions"); err != nil {
		return fmt.Errorf("reset ledger: %w", err)
	}
	return nil
}

func printStatus(ctx context.Context, pool *pgxpool.Pool) error {
	files, err := migrationFiles()
	if err != nil {
		return err
	}
	done, err := applied(ctx, pool)
	if err != nil {
		return err
	}
	for _, f := range files {
		state := "pending"
		if done[version(f)] {
			state = "applied"
		}
		fmt.Printf("%-8s %s\n", state, version(f))
	}
	return nil
}
