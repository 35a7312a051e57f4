// Package migrations embeds the SQL schema and applies it. Every file is
// idempotent, so the runner keeps no version table and simply replays all
// files in lexical order.
package migrations

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"slices"
	"strings"

	"go.uber.org/zap"
)

//go:embed postgres/*.sql
var postgresFS embed.FS

//go:embed clickhouse/*.sql
var clickhouseFS embed.FS

// Execer runs one SQL statement.
type Execer func(ctx context.Context, stmt string) error

// sqlFiles lists the .sql files under dir, sorted.
func sqlFiles(fsys fs.FS, dir string) ([]string, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read embedded %s migrations: %w", dir, err)
	}
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	slices.Sort(files)
	return files, nil
}

// apply runs every file under dir. When split is set each file is cut into
// single statements first, for drivers without multi-statement support.
func apply(ctx context.Context, fsys fs.FS, dir string, split bool, exec Execer, logger *zap.Logger) ([]string, error) {
	files, err := sqlFiles(fsys, dir)
	if err != nil {
		return nil, err
	}

	applied := make([]string, 0, len(files))
	for _, file := range files {
		data, err := fs.ReadFile(fsys, dir+"/"+file)
		if err != nil {
			return applied, fmt.Errorf("read migration %s: %w", file, err)
		}

		stmts := []string{strings.TrimSpace(string(data))}
		if split {
			stmts = SplitStatements(string(data))
		}
		for _, stmt := range stmts {
			if stmt == "" {
				continue
			}
			if err := exec(ctx, stmt); err != nil {
				return applied, fmt.Errorf("apply migration %s: %w", file, err)
			}
		}
		applied = append(applied, file)
		logger.Info("migration applied", zap.String("dialect", dir), zap.String("file", file))
	}
	return applied, nil
}

// SplitStatements cuts SQL into statements on semicolons outside single
// quoted literals. Line comments are dropped; a semicolon inside a comment
// does not end a statement.
func SplitStatements(input string) []string {
	var (
		stmts    []string
		current  strings.Builder
		inString bool
	)
	flush := func() {
		if stmt := strings.TrimSpace(current.String()); stmt != "" {
			stmts = append(stmts, stmt)
		}
		current.Reset()
	}

	for i := 0; i < len(input); i++ {
		ch := input[i]
		switch {
		case inString:
			current.WriteByte(ch)
			if ch == '\'' {
				if i+1 < len(input) && input[i+1] == '\'' {
					current.WriteByte('\'')
					i++
					continue
				}
				inString = false
			}
		case ch == '\'':
			inString = true
			current.WriteByte(ch)
		case ch == '-' && i+1 < len(input) && input[i+1] == '-':
			for i < len(input) && input[i] != '\n' {
				i++
			}
			current.WriteByte('\n')
		case ch == ';':
			flush()
		default:
			current.WriteByte(ch)
		}
	}
	flush()
	return stmts
}
