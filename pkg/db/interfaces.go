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
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/carverauto/forceplate/pkg/models"
)

//go:generate mockgen -destination=mock_db.go -package=db github.com/carverauto/forceplate/pkg/db Service

// Querier is the subset of *pgxpool.Pool the store uses.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Service represents all persistence operations of the controller.
type Service interface {
	Close() error

	// Users and platforms.

	AddUser(ctx context.Context, name string) (int64, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	AddPlatform(ctx context.Context, name string, widthCm, heightCm float64) (int64, error)
	ListPlatforms(ctx context.Context) ([]models.Platform, error)

	// Sessions.

	CreateSession(ctx context.Context, userID, platformID int64, startedAt time.Time) (int64, error)
	FinalizeSession(ctx context.Context, sessionID int64, endedAt time.Time, duration time.Duration, sampleCount int) error
	GetSession(ctx context.Context, sessionID int64) (*models.Session, error)
	ListSessions(ctx context.Context, filter models.SessionFilter) ([]models.Session, error)
	DeleteSession(ctx context.Context, sessionID int64) error

	// Samples.

	InsertSamples(ctx context.Context, sessionID int64, samples []models.RecordedSample) error
	GetSamples(ctx context.Context, sessionID int64) ([]models.RecordedSample, error)

	// Statistics.

	GetStats(ctx context.Context) (*models.Stats, error)
}
