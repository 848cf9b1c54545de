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

// Package recorder buffers live samples for the active session and flushes
// them to storage in batches.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/carverauto/forceplate/pkg/logger"
	"github.com/carverauto/forceplate/pkg/models"
)

// Summary describes a finalized session.
type Summary struct {
	SessionID   int64
	UserID      int64
	PlatformID  int64
	StartedAt   time.Time
	EndedAt     time.Time
	Duration    time.Duration
	SampleCount int
}

// Recorder owns at most one active session. Record and the flushes it
// triggers run on the consumer tick; Start and Stop may come from any
// goroutine.
type Recorder struct {
	store    Store
	logger   logger.Logger
	observer SessionObserver
	now      func() time.Time

	threshold   int
	retain      bool
	maxRetained int

	// lifecycleMu serializes Start and Stop end to end.
	lifecycleMu sync.Mutex

	mu           sync.Mutex
	active       bool
	sessionID    int64
	userID       int64
	platformID   int64
	startedAt    time.Time
	lastOffset   int64
	count        int
	sinceAttempt int
	buffer       []models.RecordedSample
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithObserver registers a session lifecycle observer.
func WithObserver(o SessionObserver) Option {
	return func(r *Recorder) {
		r.observer = o
	}
}

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) {
		if now != nil {
			r.now = now
		}
	}
}

// New returns an idle recorder. A nil cfg uses the defaults.
func New(store Store, cfg *models.RecorderConfig, log logger.Logger, opts ...Option) *Recorder {
	r := &Recorder{
		store:       store,
		logger:      log,
		now:         time.Now,
		threshold:   models.DefaultFlushThreshold,
		maxRetained: models.DefaultMaxRetainedSamples,
	}

	if cfg != nil {
		if cfg.FlushThreshold > 0 {
			r.threshold = cfg.FlushThreshold
		}

		if cfg.MaxRetainedSamples > 0 {
			r.maxRetained = cfg.MaxRetainedSamples
		}

		r.retain = cfg.RetainFailedBatches
	}

	if r.maxRetained < r.threshold {
		r.maxRetained = r.threshold
	}

	for _, opt := range opts {
		opt(r)
	}

	r.buffer = make([]models.RecordedSample, 0, r.threshold)

	ensureRecorderMetrics()

	return r
}

// Start opens a new session, stopping the active one first.
func (r *Recorder) Start(ctx context.Context, userID, platformID int64) (int64, error) {
	if userID <= 0 {
		return 0, ErrNoUserSelected
	}

	if platformID <= 0 {
		return 0, ErrNoPlatformSelected
	}

	r.lifecycleMu.Lock()
	defer r.lifecycleMu.Unlock()

	if r.Active() {
		if _, err := r.stop(ctx); err != nil && !errors.Is(err, ErrNoSession) {
			r.logger.Warn().Err(err).Msg("Previous session did not stop cleanly")
		}
	}

	startedAt := r.now()

	id, err := r.store.CreateSession(ctx, userID, platformID, startedAt)
	if err != nil {
		return 0, fmt.Errorf("%w: create session: %w", ErrPersistence, err)
	}

	r.mu.Lock()
	r.active = true
	r.sessionID = id
	r.userID = userID
	r.platformID = platformID
	r.startedAt = startedAt
	r.lastOffset = 0
	r.count = 0
	r.sinceAttempt = 0
	r.buffer = r.buffer[:0]
	r.mu.Unlock()

	recorderMetricsData.active.Store(1)

	r.logger.Info().
		Int64("session_id", id).
		Int64("user_id", userID).
		Int64("platform_id", platformID).
		Msg("Recording started")

	if r.observer != nil {
		r.observer.SessionStarted(ctx, models.Session{
			ID:         id,
			UserID:     userID,
			PlatformID: platformID,
			StartedAt:  startedAt,
		})
	}

	return id, nil
}

// Record appends one sample to the active session; it is a no-op while
// idle. Reaching the flush threshold persists the buffer before returning.
func (r *Recorder) Record(ctx context.Context, offsetMs int64, loads models.Loads, com models.CoM) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.active {
		return nil
	}

	if offsetMs < r.lastOffset {
		offsetMs = r.lastOffset
	}

	r.lastOffset = offsetMs

	if len(r.buffer) >= r.maxRetained {
		r.dropOldestLocked(len(r.buffer) - r.maxRetained + 1)
	}

	r.buffer = append(r.buffer, models.RecordedSample{OffsetMs: offsetMs, Loads: loads, CoM: com})
	r.count++
	r.sinceAttempt++

	recorderMetricsData.samplesRecorded.Add(1)

	if r.sinceAttempt >= r.threshold {
		return r.flushLocked(ctx)
	}

	return nil
}

// Flush persists whatever is buffered.
func (r *Recorder) Flush(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.flushLocked(ctx)
}

func (r *Recorder) flushLocked(ctx context.Context) error {
	r.sinceAttempt = 0

	if len(r.buffer) == 0 || r.sessionID == 0 {
		return nil
	}

	n := len(r.buffer)

	if err := r.store.InsertSamples(ctx, r.sessionID, r.buffer); err != nil {
		recorderMetricsData.flushFailures.Add(1)

		if !r.retain {
			r.buffer = r.buffer[:0]
			recorderMetricsData.samplesDropped.Add(int64(n))
		}

		r.logger.Error().
			Err(err).
			Int64("session_id", r.sessionID).
			Int("samples", n).
			Bool("retained", r.retain).
			Msg("Failed to flush samples")

		return fmt.Errorf("%w: flush %d samples: %w", ErrPersistence, n, err)
	}

	r.buffer = r.buffer[:0]
	recorderMetricsData.samplesPersist.Add(int64(n))

	r.logger.Debug().Int64("session_id", r.sessionID).Int("samples", n).Msg("Flushed samples")

	return nil
}

func (r *Recorder) dropOldestLocked(n int) {
	copy(r.buffer, r.buffer[n:])
	r.buffer = r.buffer[:len(r.buffer)-n]
	recorderMetricsData.samplesDropped.Add(int64(n))
}

// Stop flushes the remainder and finalizes the session. It returns
// ErrNoSession when nothing is being recorded.
func (r *Recorder) Stop(ctx context.Context) (Summary, error) {
	r.lifecycleMu.Lock()
	defer r.lifecycleMu.Unlock()

	return r.stop(ctx)
}

func (r *Recorder) stop(ctx context.Context) (Summary, error) {
	r.mu.Lock()

	if !r.active {
		r.mu.Unlock()
		return Summary{}, ErrNoSession
	}

	r.active = false
	flushErr := r.flushLocked(ctx)

	endedAt := r.now()
	summary := Summary{
		SessionID:   r.sessionID,
		UserID:      r.userID,
		PlatformID:  r.platformID,
		StartedAt:   r.startedAt,
		EndedAt:     endedAt,
		Duration:    endedAt.Sub(r.startedAt),
		SampleCount: r.count,
	}

	if n := len(r.buffer); n > 0 {
		recorderMetricsData.samplesDropped.Add(int64(n))
	}

	r.sessionID = 0
	r.buffer = r.buffer[:0]
	r.mu.Unlock()

	recorderMetricsData.active.Store(0)

	var finalizeErr error
	if err := r.store.FinalizeSession(ctx, summary.SessionID, summary.EndedAt, summary.Duration, summary.SampleCount); err != nil {
		finalizeErr = fmt.Errorf("%w: finalize session %d: %w", ErrPersistence, summary.SessionID, err)
	}

	r.logger.Info().
		Int64("session_id", summary.SessionID).
		Int("samples", summary.SampleCount).
		Dur("duration", summary.Duration).
		Msg("Recording stopped")

	if r.observer != nil {
		endedAt := summary.EndedAt
		r.observer.SessionFinalized(ctx, models.Session{
			ID:          summary.SessionID,
			UserID:      summary.UserID,
			PlatformID:  summary.PlatformID,
			StartedAt:   summary.StartedAt,
			EndedAt:     &endedAt,
			DurationSec: summary.Duration.Seconds(),
			SampleCount: summary.SampleCount,
		})
	}

	return summary, errors.Join(flushErr, finalizeErr)
}

// Active reports whether a session is being recorded.
func (r *Recorder) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.active
}

// SessionID returns the active session id, or 0.
func (r *Recorder) SessionID() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.active {
		return 0
	}

	return r.sessionID
}

// SampleCount returns the samples recorded in the active session.
func (r *Recorder) SampleCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.count
}

// Buffered returns the samples waiting to be flushed.
func (r *Recorder) Buffered() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.buffer)
}

// Offset converts now into a session offset in milliseconds, never negative.
func (r *Recorder) Offset(now time.Time) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.active {
		return 0
	}

	if ms := now.Sub(r.startedAt).Milliseconds(); ms > 0 {
		return ms
	}

	return 0
}

// Elapsed returns the running time of the active session.
func (r *Recorder) Elapsed() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.active {
		return 0
	}

	return r.now().Sub(r.startedAt)
}
