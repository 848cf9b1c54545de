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
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/carverauto/forceplate/pkg/models"
)

const (
	recentSessionsLimit = 10

	totalsSQL = `SELECT
		(SELECT COUNT(*) FROM users),
		(SELECT COUNT(*) FROM platforms),
		(SELECT COUNT(*) FROM sessions),
		(SELECT COUNT(*) FROM samples),
		(SELECT COALESCE(SUM(duration_sec), 0) FROM sessions)`

	perUserSQL = `SELECT u.name, COUNT(s.id),
		COALESCE(SUM(s.sample_count), 0), COALESCE(SUM(s.duration_sec), 0)
		FROM users u
		LEFT JOIN sessions s ON s.user_id = u.id
		GROUP BY u.id, u.name
		ORDER BY COUNT(s.id) DESC, u.name`

	perPlatformSQL = `SELECT p.name, COUNT(s.id),
		COALESCE(SUM(s.sample_count), 0), COALESCE(SUM(s.duration_sec), 0)
		FROM platforms p
		LEFT JOIN sessions s ON s.platform_id = p.id
		GROUP BY p.id, p.name
		ORDER BY COUNT(s.id) DESC, p.name`

	recentSessionsSQL = `SELECT s.id, s.started_at, COALESCE(s.duration_sec, 0), s.sample_count,
		COALESCE(u.name, ''), COALESCE(p.name, '')
		FROM sessions s
		LEFT JOIN users u ON s.user_id = u.id
		LEFT JOIN platforms p ON s.platform_id = p.id
		ORDER BY s.started_at DESC, s.id DESC
		LIMIT $1`
)

// GetStats aggregates usage for the monitoring heartbeat.
func (db *DB) GetStats(ctx context.Context) (*models.Stats, error) {
	var (
		stats                      models.Stats
		users, platforms, sessions int64
	)

	if err := db.q.QueryRow(ctx, totalsSQL).Scan(
		&users, &platforms, &sessions, &stats.SampleCount, &stats.TotalDurationSec,
	); err != nil {
		return nil, fmt.Errorf("%w: totals: %w", ErrFailedToQuery, err)
	}

	stats.UserCount = int(users)
	stats.PlatformCount = int(platforms)
	stats.SessionCount = int(sessions)

	var err error

	if stats.Users, err = db.breakdown(ctx, perUserSQL); err != nil {
		return nil, err
	}

	if stats.Platforms, err = db.breakdown(ctx, perPlatformSQL); err != nil {
		return nil, err
	}

	rows, err := db.q.Query(ctx, recentSessionsSQL, recentSessionsLimit)
	if err != nil {
		return nil, fmt.Errorf("%w: recent sessions: %w", ErrFailedToQuery, err)
	}

	stats.RecentSessions, err = collect(rows, func(r pgx.Rows) (models.RecentSession, error) {
		var rs models.RecentSession
		err := r.Scan(&rs.ID, &rs.StartedAt, &rs.DurationSec, &rs.SampleCount, &rs.UserName, &rs.PlatformName)

		return rs, err
	})
	if err != nil {
		return nil, err
	}

	return &stats, nil
}

func (db *DB) breakdown(ctx context.Context, query string) ([]models.UsageBreakdown, error) {
	rows, err := db.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: breakdown: %w", ErrFailedToQuery, err)
	}

	return collect(rows, func(r pgx.Rows) (models.UsageBreakdown, error) {
		var (
			b        models.UsageBreakdown
			sessions int64
		)

		err := r.Scan(&b.Name, &sessions, &b.Samples, &b.DurationSec)
		b.Sessions = int(sessions)

		return b, err
	})
}
