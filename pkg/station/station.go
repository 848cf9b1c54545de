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

// Package station wires the device link, telemetry, recording, replay and
// heartbeat into the surface exposed to operators.
package station

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/carverauto/forceplate/pkg/db"
	"github.com/carverauto/forceplate/pkg/lifecycle"
	"github.com/carverauto/forceplate/pkg/link"
	"github.com/carverauto/forceplate/pkg/logger"
	"github.com/carverauto/forceplate/pkg/models"
	"github.com/carverauto/forceplate/pkg/recorder"
	"github.com/carverauto/forceplate/pkg/replay"
	"github.com/carverauto/forceplate/pkg/telemetry"
)

const (
	// DefaultTick is the consumer cadence, about 60 Hz.
	DefaultTick = 16 * time.Millisecond
	// DefaultCalibrationDelay separates a new link from the get_calib request.
	DefaultCalibrationDelay = time.Second
)

// Agent is the part of the heartbeat agent the station drives.
type Agent interface {
	UpdateState(recording, connected bool)
	Stop(ctx context.Context) error
}

// ResponseHandler receives device status messages drained on each tick.
type ResponseHandler func(msg telemetry.Message)

// Station is the controller facade.
type Station struct {
	logger    logger.Logger
	store     db.Service
	link      *link.Manager
	processor *telemetry.Processor
	recorder  *recorder.Recorder
	replay    *replay.Engine
	agent     Agent

	baudRate   int
	tick       time.Duration
	calibDelay time.Duration
	now        func() time.Time
	onResponse ResponseHandler

	linkOpts     []link.Option
	recorderOpts []recorder.Option
	replayOpts   []replay.Option

	calibMu    sync.Mutex
	calibTimer *time.Timer
}

// Option configures a Station.
type Option func(*Station)

// WithLinkOptions passes extra options to the link manager.
func WithLinkOptions(opts ...link.Option) Option {
	return func(s *Station) {
		s.linkOpts = append(s.linkOpts, opts...)
	}
}

// WithRecorderOptions passes extra options to the recorder.
func WithRecorderOptions(opts ...recorder.Option) Option {
	return func(s *Station) {
		s.recorderOpts = append(s.recorderOpts, opts...)
	}
}

// WithReplayOptions passes extra options to the replay engine.
func WithReplayOptions(opts ...replay.Option) Option {
	return func(s *Station) {
		s.replayOpts = append(s.replayOpts, opts...)
	}
}

// WithAgent lets the tick report live state to the heartbeat agent.
func WithAgent(a Agent) Option {
	return func(s *Station) {
		s.agent = a
	}
}

// WithResponseHandler receives drained status messages.
func WithResponseHandler(h ResponseHandler) Option {
	return func(s *Station) {
		s.onResponse = h
	}
}

// WithTick overrides the consumer cadence.
func WithTick(d time.Duration) Option {
	return func(s *Station) {
		if d > 0 {
			s.tick = d
		}
	}
}

// WithCalibrationDelay overrides the wait before get_calib on a new link.
func WithCalibrationDelay(d time.Duration) Option {
	return func(s *Station) {
		if d > 0 {
			s.calibDelay = d
		}
	}
}

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *Station) {
		if now != nil {
			s.now = now
		}
	}
}

// New assembles a station around store.
func New(cfg *models.Config, store db.Service, log logger.Logger, opts ...Option) *Station {
	s := &Station{
		logger:     log,
		store:      store,
		processor:  telemetry.NewProcessor(),
		baudRate:   cfg.Device.BaudRate,
		tick:       DefaultTick,
		calibDelay: DefaultCalibrationDelay,
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	linkOpts := []link.Option{
		link.WithTargetName(cfg.Device.TargetName),
		link.WithProbeWindow(time.Duration(cfg.Device.ProbeWindow)),
		link.WithReconnect(cfg.Device.Reconnect()),
		link.WithLineHandler(s.processor.HandleLine),
		link.WithStateListener(s.onLinkState),
	}

	s.link = link.NewManager(logger.Component(log, "link"), append(linkOpts, s.linkOpts...)...)

	recorderOpts := append([]recorder.Option{recorder.WithClock(s.now)}, s.recorderOpts...)
	s.recorder = recorder.New(store, &cfg.Recorder, logger.Component(log, "recorder"), recorderOpts...)
	s.replay = replay.NewEngine(logger.Component(log, "replay"), s.replayOpts...)

	return s
}

// Ports lists the transports available for Connect.
func (s *Station) Ports() ([]link.PortInfo, error) {
	return s.link.Discover()
}

// PortLabel renders a port for display.
func (s *Station) PortLabel(p link.PortInfo) string {
	return p.Label(s.link.TargetName())
}

// Connect opens the named transport. A zero rate uses the configured rate.
func (s *Station) Connect(ctx context.Context, port string, rate int) error {
	if rate == 0 {
		rate = s.baudRate
	}

	sel, err := s.link.Lookup(port)
	if err != nil {
		return fmt.Errorf("%w: %w", link.ErrTransport, err)
	}

	return s.link.Connect(ctx, sel, rate)
}

// Disconnect closes the link.
func (s *Station) Disconnect() {
	s.link.Disconnect()
}

// Link exposes the link manager.
func (s *Station) Link() *link.Manager {
	return s.link
}

// StartRecording opens a session for user on platform.
func (s *Station) StartRecording(ctx context.Context, userID, platformID int64) (int64, error) {
	return s.recorder.Start(ctx, userID, platformID)
}

// StopRecording finalizes the active session.
func (s *Station) StopRecording(ctx context.Context) (recorder.Summary, error) {
	return s.recorder.Stop(ctx)
}

// Recorder exposes the session recorder.
func (s *Station) Recorder() *recorder.Recorder {
	return s.recorder
}

// OpenReplay loads a recorded session into the replay engine.
func (s *Station) OpenReplay(ctx context.Context, sessionID int64) (*models.Session, error) {
	return s.replay.Load(ctx, s.store, sessionID)
}

// Replay exposes the replay engine.
func (s *Station) Replay() *replay.Engine {
	return s.replay
}

// Stats returns the aggregate usage statistics.
func (s *Station) Stats(ctx context.Context) (*models.Stats, error) {
	return s.store.GetStats(ctx)
}

// Tare zeroes all sensors.
func (s *Station) Tare() {
	s.link.Send(telemetry.TareCommand())
}

// Calibrate calibrates one sensor against a known weight in grams.
func (s *Station) Calibrate(sensor int, weightGrams float64) error {
	cmd, err := telemetry.CalibrateCommand(sensor, weightGrams)
	if err != nil {
		return err
	}

	s.link.Send(cmd)

	return nil
}

// RequestCalibration asks the controller for its calibration table.
func (s *Station) RequestCalibration() {
	s.link.Send(telemetry.GetCalibrationCommand())
}

// Calibration returns the last calibration table reported by the device.
func (s *Station) Calibration() telemetry.CalibrationTable {
	return s.processor.Calibration()
}

// Snapshot returns the latest telemetry.
func (s *Station) Snapshot() telemetry.Sample {
	return s.processor.Snapshot()
}

// Health classifies the link from the age of the last device activity.
func (s *Station) Health() telemetry.Health {
	return s.processor.Health(s.now(), s.link.Connected())
}

// Run drives the link read worker and the consumer tick until ctx ends.
func (s *Station) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.link.Run(gctx)
	})

	g.Go(func() error {
		ticker := time.NewTicker(s.tick)
		defer ticker.Stop()

		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				s.Tick(gctx)
			}
		}
	})

	return g.Wait()
}

// Tick is one consumer pass: drain status responses, record the current
// sample and publish live state. It never blocks on the device.
func (s *Station) Tick(ctx context.Context) {
	for _, msg := range s.processor.DrainResponses() {
		s.logResponse(msg)

		if s.onResponse != nil {
			s.onResponse(msg)
		}
	}

	now := s.now()

	if s.recorder.Active() {
		sample := s.processor.Snapshot()

		if err := s.recorder.Record(ctx, s.recorder.Offset(now), sample.Loads, sample.CoM); err != nil {
			s.logger.Debug().Err(err).Msg("Record failed")
		}
	}

	if s.agent != nil {
		connected := s.processor.Health(now, s.link.Connected()) == telemetry.HealthConnected
		s.agent.UpdateState(s.recorder.Active(), connected)
	}
}

func (s *Station) logResponse(msg telemetry.Message) {
	switch m := msg.(type) {
	case telemetry.TareAck:
		s.logger.Info().Msg("Tare complete")
	case telemetry.CalibrationResult:
		s.logger.Info().Int("sensor", m.Sensor).Float64("scale", m.Scale).Int64("offset", m.Offset).Msg("Sensor calibrated")
	case telemetry.CalibrationError:
		s.logger.Warn().Str("msg", m.Msg).Msg("Calibration failed")
	case telemetry.CalibrationSnapshot:
		s.logger.Info().Interface("table", m.Table).Msg("Calibration values received")
	}
}

func (s *Station) onLinkState(state link.State, port link.PortInfo) {
	s.logger.Info().Str("state", state.String()).Str("port", port.Name).Msg("Link state changed")

	s.calibMu.Lock()
	defer s.calibMu.Unlock()

	if s.calibTimer != nil {
		s.calibTimer.Stop()
		s.calibTimer = nil
	}

	if state != link.StateConnected {
		return
	}

	s.processor.MarkConnected(s.now())
	s.calibTimer = time.AfterFunc(s.calibDelay, s.RequestCalibration)
}

// Shutdown stops recording, then the heartbeat, then the link and replay.
// Each step is abandoned after lifecycle.DefaultStepTimeout.
func (s *Station) Shutdown(ctx context.Context) error {
	steps := []lifecycle.Step{
		{Name: "recorder", Run: func(ctx context.Context) error {
			if _, err := s.recorder.Stop(ctx); err != nil && !errors.Is(err, recorder.ErrNoSession) {
				return err
			}

			return nil
		}},
	}

	if s.agent != nil {
		steps = append(steps, lifecycle.Step{Name: "heartbeat", Run: s.agent.Stop})
	}

	steps = append(steps,
		lifecycle.Step{Name: "link", Run: func(ctx context.Context) error {
			s.calibMu.Lock()
			if s.calibTimer != nil {
				s.calibTimer.Stop()
				s.calibTimer = nil
			}
			s.calibMu.Unlock()

			return s.link.Close(ctx)
		}},
		lifecycle.Step{Name: "replay", Run: func(context.Context) error {
			s.replay.Close()
			return nil
		}},
	)

	return lifecycle.Shutdown(ctx, s.logger, lifecycle.DefaultStepTimeout, steps...)
}
