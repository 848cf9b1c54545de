/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package db

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/carverauto/forceplate/pkg/logger"
)

const migrationsTable = "forceplate_schema_migrations"

//go:embed migrations/*.sql
var migrationsFS embed.FS

// RunMigrations applies every embedded *.up.sql file not yet recorded in the
// tracking table, in lexical order.
func RunMigrations(ctx context.Context, q Querier, log logger.Logger) error {
	if _, err := q.Exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		version     TEXT PRIMARY KEY,
		applied_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`, migrationsTable)); err != nil {
		return fmt.Errorf("%w: create tracking table: %w", ErrFailedToInit, err)
	}

	applied, err := appliedVersions(ctx, q)
	if err != nil {
		return err
	}

	names, err := migrationFiles()
	if err != nil {
		return err
	}

	for _, name := range names {
		version := extractVersion(name)
		if _, ok := applied[version]; ok {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("%w: read %s: %w", ErrFailedToInit, name, err)
		}

		for idx, stmt := range splitSQLStatements(string(content)) {
			if _, err := q.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("%w: statement %d in %s: %w", ErrFailedToInit, idx+1, name, err)
			}
		}

		if _, err := q.Exec(ctx, fmt.Sprintf(`INSERT INTO %s (version) VALUES ($1)`, migrationsTable), version); err != nil {
			return fmt.Errorf("%w: record %s: %w", ErrFailedToInit, name, err)
		}

		log.Info().Str("migration", name).Msg("Applied schema migration")
	}

	return nil
}

func appliedVersions(ctx context.Context, q Querier) (map[string]struct{}, error) {
	rows, err := q.Query(ctx, fmt.Sprintf(`SELECT version FROM %s`, migrationsTable))
	if err != nil {
		return nil, fmt.Errorf("%w: list applied versions: %w", ErrFailedToInit, err)
	}
	defer rows.Close()

	applied := make(map[string]struct{})

	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("%w: scan applied version: %w", ErrFailedToInit, err)
		}

		applied[version] = struct{}{}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate applied versions: %w", ErrFailedToInit, err)
	}

	return applied, nil
}

func migrationFiles() ([]string, error) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("%w: read embedded migrations: %w", ErrFailedToInit, err)
	}

	names := make([]string, 0, len(entries))

	for _, entry := range entries {
		// .down.sql files are for manual rollbacks only
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".up.sql") {
			continue
		}

		names = append(names, entry.Name())
	}

	sort.Strings(names)

	return names, nil
}

// extractVersion returns the numeric prefix of a migration file name,
// e.g. "00001" for "00001_initial_schema.up.sql".
func extractVersion(name string) string {
	if i := strings.IndexByte(name, '_'); i > 0 {
		return name[:i]
	}

	return strings.TrimSuffix(name, ".up.sql")
}

// splitSQLStatements splits a script on semicolons outside quotes and
// comments, dropping comments and empty statements.
func splitSQLStatements(script string) []string {
	var (
		out     []string
		current strings.Builder
		inQuote bool
	)

	flush := func() {
		if stmt := strings.TrimSpace(current.String()); stmt != "" {
			out = append(out, stmt)
		}

		current.Reset()
	}

	for i := 0; i < len(script); i++ {
		c := script[i]

		switch {
		case inQuote:
			current.WriteByte(c)

			if c == '\'' {
				inQuote = false
			}
		case c == '\'':
			inQuote = true

			current.WriteByte(c)
		case c == '-' && i+1 < len(script) && script[i+1] == '-':
			for i < len(script) && script[i] != '\n' {
				i++
			}

			current.WriteByte('\n')
		case c == ';':
			flush()
		default:
			current.WriteByte(c)
		}
	}

	flush()

	return out
}
