package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "github.com/lib/pq"
	"github.com/spf13/cobra"

	"github.com/ignite/subscriber-gateway/internal/config"
)

const createMigrationsTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
    name       TEXT PRIMARY KEY,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

var (
	dsnFlag    string
	dirFlag    string
	configFlag string
)

var rootCmd = &cobra.Command{
	Use:          "migrate",
	Short:        "Apply the subscriber gateway's SQL migrations",
	SilenceUsage: true,
}

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply every migration not yet recorded in schema_migrations",
	RunE:  runUp,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "List applied and pending migrations",
	RunE:  runStatus,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dsnFlag, "dsn", "", "Postgres URL (default: DATABASE_URL or database.url from config)")
	rootCmd.PersistentFlags().StringVar(&dirFlag, "dir", "migrations", "directory holding .sql migrations")
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "config/config.yaml", "config file used when no DSN is given")
	rootCmd.AddCommand(upCmd, statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveDSN picks the flag, then DATABASE_URL, then the config file.
func resolveDSN() (string, error) {
	if dsnFlag != "" {
		return dsnFlag, nil
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		return v, nil
	}
	if cfg, err := config.LoadFromEnv(configFlag); err == nil && cfg.Database.URL != "" {
		return cfg.Database.URL, nil
	}
	return "", fmt.Errorf("DATABASE_URL is required")
}

func connect() (*sql.DB, error) {
	dsn, err := resolveDSN()
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	log.Println("Connected to database")

	if _, err := db.Exec(createMigrationsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema_migrations: %w", err)
	}
	return db, nil
}

func runUp(cmd *cobra.Command, _ []string) error {
	db, err := connect()
	if err != nil {
		return err
	}
	defer db.Close()

	applied, err := appliedMigrations(db)
	if err != nil {
		return fmt.Errorf("read schema_migrations: %w", err)
	}
	files, err := migrationFiles(dirFlag)
	if err != nil {
		return fmt.Errorf("read migrations dir %s: %w", dirFlag, err)
	}

	out := cmd.OutOrStdout()
	var okCount int
	for _, f := range pending(files, applied) {
		data, err := os.ReadFile(filepath.Join(dirFlag, f))
		if err != nil {
			return err
		}
		if strings.TrimSpace(string(data)) == "" {
			continue
		}
		fmt.Fprintf(out, "  %s ... ", f)

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin %s: %w", f, err)
		}
		if _, err := tx.Exec(string(data)); err != nil {
			tx.Rollback()
			fmt.Fprintln(out, "ERROR")
			return fmt.Errorf("apply %s: %w", f, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_migrations (name) VALUES ($1)`, f); err != nil {
			tx.Rollback()
			return fmt.Errorf("record %s: %w", f, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit %s: %w", f, err)
		}
		fmt.Fprintln(out, "OK")
		okCount++
	}
	log.Printf("Done: %d applied, %d already up to date", okCount, len(files)-okCount)
	return nil
}

func runStatus(cmd *cobra.Command, _ []string) error {
	db, err := connect()
	if err != nil {
		return err
	}
	defer db.Close()

	applied, err := appliedMigrations(db)
	if err != nil {
		return fmt.Errorf("read schema_migrations: %w", err)
	}
	files, err := migrationFiles(dirFlag)
	if err != nil {
		return fmt.Errorf("read migrations dir %s: %w", dirFlag, err)
	}

	out := cmd.OutOrStdout()
	for _, f := range files {
		state := "pending"
		if applied[f] {
			state = "applied"
		}
		fmt.Fprintf(out, "  %-40s %s\n", f, state)
	}
	fmt.Fprintf(out, "Total: %d files, %d pending\n", len(files), len(pending(files, applied)))
	return nil
}

func appliedMigrations(db *sql.DB) (map[string]bool, error) {
	rows, err := db.Query(`SELECT name FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		applied[name] = true
	}
	return applied, rows.Err()
}

// migrationFiles returns the .sql files in dir in lexical order.
func migrationFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

func pending(files []string, applied map[string]bool) []string {
	var out []string
	for _, f := range files {
		if !applied[f] {
			out = append(out, f)
		}
	}
	return out
}
