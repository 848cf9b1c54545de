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
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/carverauto/forceplate/pkg/models"
)

const (
	insertUserSQL      = `INSERT INTO users (name) VALUES ($1) RETURNING id`
	listUsersSQL       = `SELECT id, name FROM users ORDER BY name`
	insertPlatformSQL  = `INSERT INTO platforms (name, width_cm, height_cm) VALUES ($1, $2, $3) RETURNING id`
	listPlatformsSQL   = `SELECT id, name, width_cm, height_cm FROM platforms ORDER BY name`
	defaultBoardWidth  = 50.0
	defaultBoardHeight = 30.0
)

// AddUser creates a user and returns its id.
func (db *DB) AddUser(ctx context.Context, name string) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, ErrInvalidName
	}

	var id int64
	if err := db.q.QueryRow(ctx, insertUserSQL, name).Scan(&id); err != nil {
		return 0, fmt.Errorf("%w: user %q: %w", ErrFailedToInsert, name, err)
	}

	return id, nil
}

// ListUsers returns users ordered by name.
func (db *DB) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := db.q.Query(ctx, listUsersSQL)
	if err != nil {
		return nil, fmt.Errorf("%w: users: %w", ErrFailedToQuery, err)
	}

	return collect(rows, func(r pgx.Rows) (models.User, error) {
		var u models.User
		err := r.Scan(&u.ID, &u.Name)

		return u, err
	})
}

// AddPlatform creates a platform; non-positive dimensions take the 50x30 cm default.
func (db *DB) AddPlatform(ctx context.Context, name string, widthCm, heightCm float64) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, ErrInvalidName
	}

	if widthCm <= 0 {
		widthCm = defaultBoardWidth
	}

	if heightCm <= 0 {
		heightCm = defaultBoardHeight
	}

	var id int64
	if err := db.q.QueryRow(ctx, insertPlatformSQL, name, widthCm, heightCm).Scan(&id); err != nil {
		return 0, fmt.Errorf("%w: platform %q: %w", ErrFailedToInsert, name, err)
	}

	return id, nil
}

// ListPlatforms returns platforms ordered by name.
func (db *DB) ListPlatforms(ctx context.Context) ([]models.Platform, error) {
	rows, err := db.q.Query(ctx, listPlatformsSQL)
	if err != nil {
		return nil, fmt.Errorf("%w: platforms: %w", ErrFailedToQuery, err)
	}

	return collect(rows, func(r pgx.Rows) (models.Platform, error) {
		var p models.Platform
		err := r.Scan(&p.ID, &p.Name, &p.WidthCm, &p.HeightCm)

		return p, err
	})
}
