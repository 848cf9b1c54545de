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

package recorder

import (
	"context"
	"time"

	"github.com/carverauto/forceplate/pkg/models"
)

//go:generate mockgen -destination=mock_recorder.go -package=recorder github.com/carverauto/forceplate/pkg/recorder Store,SessionObserver

// Store is the persistence the recorder writes through. *db.DB satisfies it.
type Store interface {
	CreateSession(ctx context.Context, userID, platformID int64, startedAt time.Time) (int64, error)
	InsertSamples(ctx context.Context, sessionID int64, samples []models.RecordedSample) error
	FinalizeSession(ctx context.Context, sessionID int64, endedAt time.Time, duration time.Duration, sampleCount int) error
}

// SessionObserver is told when a session opens and when it is finalized.
type SessionObserver interface {
	SessionStarted(ctx context.Context, session models.Session)
	SessionFinalized(ctx context.Context, session models.Session)
}
