package database

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// Migrate executes every "*.<direction>.sql" file in fsys. Up files run in
// lexical order, down files in reverse. It returns the names it executed.
func Migrate(ctx context.Context, db *sql.DB, fsys fs.FS, direction Direction) ([]string, error) {
	if direction != Up && direction != Down {
		return nil, fmt.Errorf("direction must be %q or %q, got %q", Up, Down, direction)
	}

	files, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read migration directory: %w", err)
	}

	suffix := fmt.Sprintf(".%s.sql", direction)
	var migrationFiles []string
	for _, file := range files {
		if !file.IsDir() && strings.HasSuffix(file.Name(), suffix) {
			migrationFiles = append(migrationFiles, file.Name())
		}
	}

	sort.Strings(migrationFiles)
	if direction == Down {
		for i, j := 0, len(migrationFiles)-1; i < j; i, j = i+1, j-1 {
			migrationFiles[i], migrationFiles[j] = migrationFiles[j], migrationFiles[i]
		}
	}

	for _, filename := range migrationFiles {
		content, err := fs.ReadFile(fsys, filename)
		if err != nil {
			return nil, fmt.Errorf("read migration file %s: %w", filename, err)
		}

		if _, err := db.ExecContext(ctx, string(content)); err != nil {
			return nil, fmt.Errorf("execute migration %s: %w", filename, err)
		}
	}

	return migrationFiles, nil
}
