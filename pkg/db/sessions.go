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
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/carverauto/forceplate/pkg/models"
)

const (
	insertSessionSQL = `INSERT INTO sessions (user_id, platform_id, started_at) VALUES ($1, $2, $3) RETURNING id`

	finalizeSessionSQL = `UPDATE sessions SET ended_at = $2, duration_sec = $3, sample_count = $4 WHERE id = $1`

	deleteSessionSQL = `DELETE FROM sessions WHERE id = $1`

	sessionColumnsSQL = `
		SELECT s.id, COALESCE(s.user_id, 0), COALESCE(s.platform_id, 0),
		       COALESCE(u.name, ''), COALESCE(p.name, ''),
		       COALESCE(p.width_cm, 50), COALESCE(p.height_cm, 30),
		       s.started_at, s.ended_at, COALESCE(s.duration_sec, 0), s.sample_count
		FROM sessions s
		LEFT JOIN users u ON s.user_id = u.id
		LEFT JOIN platforms p ON s.platform_id = p.id`
)

// CreateSession opens a session row and returns its id.
func (db *DB) CreateSession(ctx context.Context, userID, platformID int64, startedAt time.Time) (int64, error) {
	var id int64
	if err := db.q.QueryRow(ctx, insertSessionSQL, userID, platformID, startedAt).Scan(&id); err != nil {
		return 0, fmt.Errorf("%w: session: %w", ErrFailedToInsert, err)
	}

	return id, nil
}

// FinalizeSession records the end time, duration and final sample count.
func (db *DB) FinalizeSession(ctx context.Context, sessionID int64, endedAt time.Time, duration time.Duration, sampleCount int) error {
	tag, err := db.q.Exec(ctx, finalizeSessionSQL, sessionID, endedAt, duration.Seconds(), sampleCount)
	if err != nil {
		return fmt.Errorf("%w: session %d: %w", ErrFailedToUpdate, sessionID, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %d", ErrSessionNotFound, sessionID)
	}

	return nil
}

// GetSession returns a session with its user, platform and board dimensions.
func (db *DB) GetSession(ctx context.Context, sessionID int64) (*models.Session, error) {
	row := db.q.QueryRow(ctx, sessionColumnsSQL+` WHERE s.id = $1`, sessionID)

	s, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrSessionNotFound, sessionID)
	}

	if err != nil {
		return nil, fmt.Errorf("%w: session %d: %w", ErrFailedToQuery, sessionID, err)
	}

	return &s, nil
}

// ListSessions returns sessions newest first, optionally filtered.
func (db *DB) ListSessions(ctx context.Context, filter models.SessionFilter) ([]models.Session, error) {
	query, args := buildListSessionsQuery(filter)

	rows, err := db.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: sessions: %w", ErrFailedToQuery, err)
	}

	return collect(rows, func(r pgx.Rows) (models.Session, error) {
		return scanSession(r)
	})
}

func buildListSessionsQuery(filter models.SessionFilter) (string, []any) {
	var (
		b     strings.Builder
		conds []string
		args  []any
	)

	b.WriteString(sessionColumnsSQL)

	if filter.UserID > 0 {
		args = append(args, filter.UserID)
		conds = append(conds, fmt.Sprintf("s.user_id = $%d", len(args)))
	}

	if filter.PlatformID > 0 {
		args = append(args, filter.PlatformID)
		conds = append(conds, fmt.Sprintf("s.platform_id = $%d", len(args)))
	}

	if len(conds) > 0 {
		b.WriteString("\n\t\tWHERE ")
		b.WriteString(strings.Join(conds, " AND "))
	}

	b.WriteString("\n\t\tORDER BY s.started_at DESC, s.id DESC")

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		fmt.Fprintf(&b, " LIMIT $%d", len(args))
	}

	return b.String(), args
}

// DeleteSession removes a session; its samples cascade.
func (db *DB) DeleteSession(ctx context.Context, sessionID int64) error {
	tag, err := db.q.Exec(ctx, deleteSessionSQL, sessionID)
	if err != nil {
		return fmt.Errorf("%w: delete session %d: %w", ErrDatabaseError, sessionID, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %d", ErrSessionNotFound, sessionID)
	}

	return nil
}

func scanSession(row pgx.Row) (models.Session, error) {
	var s models.Session

	err := row.Scan(
		&s.ID, &s.UserID, &s.PlatformID,
		&s.UserName, &s.PlatformName,
		&s.WidthCm, &s.HeightCm,
		&s.StartedAt, &s.EndedAt, &s.DurationSec, &s.SampleCount,
	)

	return s, err
}
