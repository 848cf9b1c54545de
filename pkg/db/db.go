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

// Package db persists users, platforms, sessions and samples in Postgres
// through pgx.
package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/carverauto/forceplate/pkg/logger"
	"github.com/carverauto/forceplate/pkg/models"
)

// DB implements Service on top of a pgx pool.
type DB struct {
	q      Querier
	close  func()
	logger logger.Logger
}

var _ Service = (*DB)(nil)

// New connects, applies pending migrations and returns the store.
func New(ctx context.Context, cfg *models.DatabaseConfig, log logger.Logger) (*DB, error) {
	pool, err := NewPool(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	if err := RunMigrations(ctx, pool, log); err != nil {
		pool.Close()
		return nil, err
	}

	return &DB{q: pool, close: pool.Close, logger: log}, nil
}

// NewWithQuerier wraps an existing connection; Close does not close it.
func NewWithQuerier(q Querier, log logger.Logger) *DB {
	return &DB{q: q, logger: log}
}

// Close releases the pool.
func (db *DB) Close() error {
	if db.close != nil {
		db.close()
	}

	return nil
}

func collect[T any](rows pgx.Rows, scan func(pgx.Rows) (T, error)) ([]T, error) {
	defer rows.Close()

	var out []T

	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFailedToScan, err)
		}

		out = append(out, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToQuery, err)
	}

	return out, nil
}
