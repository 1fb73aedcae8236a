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
)

// Applies the numbered .sql files in migrations/ in lexical order, one
// transaction per file. Files are idempotent (IF NOT EXISTS), so re-running
// against an up-to-date database is a no-op.
func main() {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("[Migrate] DATABASE_URL is required")
	}

	dir := "migrations"
	listOnly := false
	for _, a := range os.Args[1:] {
		if a == "--list" {
			listOnly = true
		} else {
			dir = a
		}
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatalf("[Migrate] connect: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("[Migrate] ping: %v", err)
	}
	log.Println("[Migrate] Connected to database")

	if listOnly {
		listTables(db)
		return
	}

	files, err := sqlFiles(dir)
	if err != nil {
		log.Fatalf("[Migrate] %v", err)
	}
	if len(files) == 0 {
		log.Fatalf("[Migrate] no .sql files in %s", dir)
	}

	applied, failed := 0, 0
	for _, f := range files {
		if err := applyFile(db, filepath.Join(dir, f)); err != nil {
			log.Printf("[Migrate] %s FAILED: %v", f, err)
			failed++
			continue
		}
		log.Printf("[Migrate] %s applied", f)
		applied++
	}

	log.Printf("[Migrate] Done: %d applied, %d failed", applied, failed)
	if failed > 0 {
		os.Exit(1)
	}
}

// listTables prints the briefing engine's tables that currently exist, so a
// fresh deployment can be checked without psql access.
func listTables(db *sql.DB) {
	rows, err := db.Query(`
		SELECT tablename FROM pg_tables
		WHERE schemaname = 'public'
		  AND tablename IN ('subscribers', 'email_logs', 'articles', 'api_keys')
		ORDER BY tablename
	`)
	if err != nil {
		log.Fatalf("[Migrate] list tables: %v", err)
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		var t string
		rows.Scan(&t)
		fmt.Println(" ", t)
		n++
	}
	fmt.Printf("%d of 4 expected tables present\n", n)
}

func sqlFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations dir %s: %w", dir, err)
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

// applyFile runs one migration file in its own transaction so a failing file
// leaves no partial schema behind.
func applyFile(db *sql.DB, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if _, err := tx.Exec(string(data)); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}
