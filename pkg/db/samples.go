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
	insertSampleSQL = `INSERT INTO samples (session_id, t_ms, w0, w1, w2, w3, com_x, com_y)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	getSamplesSQL = `SELECT t_ms, w0, w1, w2, w3, com_x, com_y
		FROM samples WHERE session_id = $1 ORDER BY t_ms, id`
)

// InsertSamples bulk-inserts samples for a session in one batch.
func (db *DB) InsertSamples(ctx context.Context, sessionID int64, samples []models.RecordedSample) error {
	if len(samples) == 0 {
		return nil
	}

	batch := &pgx.Batch{}

	for i := range samples {
		s := &samples[i]
		batch.Queue(insertSampleSQL,
			sessionID, s.OffsetMs,
			s.Loads[0], s.Loads[1], s.Loads[2], s.Loads[3],
			s.CoM.X, s.CoM.Y,
		)
	}

	if err := execBatch(ctx, db.q, batch, "insert samples"); err != nil {
		return fmt.Errorf("%w: %w", ErrFailedToInsert, err)
	}

	return nil
}

// GetSamples returns a session's samples ordered by offset.
func (db *DB) GetSamples(ctx context.Context, sessionID int64) ([]models.RecordedSample, error) {
	rows, err := db.q.Query(ctx, getSamplesSQL, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: samples of session %d: %w", ErrFailedToQuery, sessionID, err)
	}

	return collect(rows, func(r pgx.Rows) (models.RecordedSample, error) {
		var s models.RecordedSample
		err := r.Scan(&s.OffsetMs, &s.Loads[0], &s.Loads[1], &s.Loads[2], &s.Loads[3], &s.CoM.X, &s.CoM.Y)

		return s, err
	})
}
