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

// Package replay plays a recorded session back frame by frame at the
// original pacing scaled by a speed multiplier.
package replay

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/carverauto/forceplate/pkg/logger"
	"github.com/carverauto/forceplate/pkg/models"
)

const (
	// TrailLength bounds the CoM history carried with each frame.
	TrailLength = 15
	// FallbackDelay is used after the last frame, before playback stops.
	FallbackDelay = 16 * time.Millisecond

	minDelay = time.Millisecond
)

// State is the playback state.
type State int

const (
	StateStopped State = iota
	StatePaused
	StatePlaying
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StatePaused:
		return "paused"
	case StatePlaying:
		return "playing"
	default:
		return "unknown"
	}
}

// Source reads recorded sessions. *db.DB satisfies it.
type Source interface {
	GetSession(ctx context.Context, sessionID int64) (*models.Session, error)
	GetSamples(ctx context.Context, sessionID int64) ([]models.RecordedSample, error)
}

// Frame is one rendered replay position.
type Frame struct {
	Index    int
	Count    int
	OffsetMs int64
	Loads    models.Loads
	Total    float64
	CoM      models.CoM
	Trail    []models.CoM
}

// FrameHandler receives every rendered frame. It is called without the
// engine lock held, from the caller's goroutine or a timer goroutine.
type FrameHandler func(Frame)

// Engine replays one loaded session.
type Engine struct {
	logger    logger.Logger
	scheduler Scheduler
	handler   FrameHandler

	mu      sync.Mutex
	session *models.Session
	samples []models.RecordedSample
	index   int
	shown   int
	speed   float64
	state   State
	trail   []models.CoM
	gen     uint64
	timer   Timer
}

// Option configures an Engine.
type Option func(*Engine)

// WithScheduler overrides the timer source.
func WithScheduler(s Scheduler) Option {
	return func(e *Engine) {
		if s != nil {
			e.scheduler = s
		}
	}
}

// WithFrameHandler sets the frame consumer.
func WithFrameHandler(h FrameHandler) Option {
	return func(e *Engine) {
		e.handler = h
	}
}

// NewEngine returns an engine with nothing loaded, at 1x speed.
func NewEngine(log logger.Logger, opts ...Option) *Engine {
	e := &Engine{
		logger:    log,
		scheduler: realScheduler{},
		speed:     1,
		shown:     -1,
		trail:     make([]models.CoM, 0, TrailLength),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Load fetches a session and its samples, stops any playback and shows the
// first frame.
func (e *Engine) Load(ctx context.Context, src Source, sessionID int64) (*models.Session, error) {
	session, err := src.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	samples, err := src.GetSamples(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: session %d", ErrEmptySession, sessionID)
	}

	e.mu.Lock()
	e.cancelLocked()
	e.session = session
	e.samples = samples
	e.index = 0
	e.shown = -1
	e.state = StateStopped
	e.trail = e.trail[:0]
	frame := e.renderLocked(0)
	e.mu.Unlock()

	e.logger.Info().
		Int64("session_id", sessionID).
		Int("frames", len(samples)).
		Msg("Replay loaded")

	e.emit(frame)

	return session, nil
}

// Play starts or resumes playback. At the last frame it rewinds first.
func (e *Engine) Play() error {
	e.mu.Lock()

	if len(e.samples) == 0 {
		e.mu.Unlock()
		return ErrNotLoaded
	}

	if e.state == StatePlaying {
		e.mu.Unlock()
		return nil
	}

	if e.index >= len(e.samples)-1 {
		e.index = 0
		e.shown = -1
		e.trail = e.trail[:0]
	}

	e.state = StatePlaying
	e.gen++
	frame, rendered := e.stepLocked()
	e.mu.Unlock()

	if rendered {
		e.emit(frame)
	}

	return nil
}

// Pause cancels the pending advance and keeps the current frame.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StatePlaying {
		return
	}

	e.cancelLocked()
	e.state = StatePaused
}

// Seek shows frame i and clears the trail. Playback continues from there if
// it was running.
func (e *Engine) Seek(i int) error {
	e.mu.Lock()

	if len(e.samples) == 0 {
		e.mu.Unlock()
		return ErrNotLoaded
	}

	if i < 0 || i >= len(e.samples) {
		e.mu.Unlock()
		return fmt.Errorf("%w: %d not in [0,%d)", ErrFrameOutOfRange, i, len(e.samples))
	}

	e.index = i
	e.trail = e.trail[:0]
	frame := e.renderLocked(i)

	if e.state == StatePlaying {
		e.cancelLocked()
		e.stepLocked()
	}

	e.mu.Unlock()

	e.emit(frame)

	return nil
}

// SetSpeed changes the multiplier for advances scheduled from now on.
func (e *Engine) SetSpeed(multiplier float64) error {
	if multiplier <= 0 {
		return fmt.Errorf("%w: %g", ErrInvalidSpeed, multiplier)
	}

	e.mu.Lock()
	e.speed = multiplier
	e.mu.Unlock()

	return nil
}

// Close cancels any pending advance.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.cancelLocked()
	e.state = StateStopped
}

// State returns the playback state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.state
}

// Position returns the current frame index and the frame count.
func (e *Engine) Position() (index, count int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.index, len(e.samples)
}

// Speed returns the current multiplier.
func (e *Engine) Speed() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.speed
}

// Session returns the loaded session row.
func (e *Engine) Session() *models.Session {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.session
}

// stepLocked renders the current frame unless it is already on screen, then
// schedules the next advance.
func (e *Engine) stepLocked() (Frame, bool) {
	var (
		frame    Frame
		rendered bool
	)

	if e.index != e.shown {
		frame, rendered = e.renderLocked(e.index), true
	}

	gen := e.gen

	if e.index < len(e.samples)-1 {
		delay := e.delayLocked(e.samples[e.index].OffsetMs, e.samples[e.index+1].OffsetMs)
		e.index++
		e.timer = e.scheduler.AfterFunc(delay, func() { e.advance(gen) })
	} else {
		e.timer = e.scheduler.AfterFunc(FallbackDelay, func() { e.finish(gen) })
	}

	return frame, rendered
}

func (e *Engine) advance(gen uint64) {
	e.mu.Lock()

	if gen != e.gen || e.state != StatePlaying {
		e.mu.Unlock()
		return
	}

	frame, rendered := e.stepLocked()
	e.mu.Unlock()

	if rendered {
		e.emit(frame)
	}
}

func (e *Engine) finish(gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if gen != e.gen || e.state != StatePlaying {
		return
	}

	e.timer = nil
	e.state = StateStopped

	e.logger.Debug().Int("frames", len(e.samples)).Msg("Replay finished")
}

func (e *Engine) delayLocked(cur, next int64) time.Duration {
	ms := int64(float64(next-cur) / e.speed)

	if d := time.Duration(ms) * time.Millisecond; d > minDelay {
		return d
	}

	return minDelay
}

func (e *Engine) renderLocked(i int) Frame {
	s := e.samples[i]

	if len(e.trail) == TrailLength {
		copy(e.trail, e.trail[1:])
		e.trail = e.trail[:TrailLength-1]
	}

	e.trail = append(e.trail, s.CoM)
	e.shown = i

	return Frame{
		Index:    i,
		Count:    len(e.samples),
		OffsetMs: s.OffsetMs,
		Loads:    s.Loads,
		Total:    s.Loads.Total(),
		CoM:      s.CoM,
		Trail:    append([]models.CoM(nil), e.trail...),
	}
}

func (e *Engine) cancelLocked() {
	e.gen++

	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}

func (e *Engine) emit(frame Frame) {
	if e.handler != nil {
		e.handler(frame)
	}
}
