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

// Package heartbeat reports installation status to the monitoring server
// and pulls self-updates from it.
package heartbeat

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/carverauto/forceplate/pkg/logger"
	"github.com/carverauto/forceplate/pkg/models"
	"github.com/carverauto/forceplate/pkg/version"
)

const maxErrorLen = 200

// StatsSource provides the aggregate usage snapshot. *db.DB satisfies it.
type StatsSource interface {
	GetStats(ctx context.Context) (*models.Stats, error)
}

// Installer verifies and stages a downloaded binary. *selfupdate.Updater
// satisfies it.
type Installer interface {
	Apply(data []byte) error
}

// UpdateReadyFunc is called once when a new binary has been staged.
type UpdateReadyFunc func(newVersion int)

// Agent runs the heartbeat loop.
type Agent struct {
	client      *Client
	identity    Identity
	stats       StatsSource
	installer   Installer
	logger      logger.Logger
	interval    time.Duration
	updateEvery int
	timeout     time.Duration
	buildNumber int
	now         func() time.Time
	onReady     UpdateReadyFunc

	recording atomic.Bool
	connected atomic.Bool
	count     atomic.Int64
	staged    atomic.Bool
	readyOnce sync.Once

	mu          sync.Mutex
	lastError   string
	lastSuccess time.Time
	cancel      context.CancelFunc
	done        chan struct{}
}

// Option configures an Agent.
type Option func(*Agent)

// WithInstaller enables self-update through inst.
func WithInstaller(inst Installer) Option {
	return func(a *Agent) {
		a.installer = inst
	}
}

// WithUpdateReady registers the callback fired after staging an update.
func WithUpdateReady(fn UpdateReadyFunc) Option {
	return func(a *Agent) {
		a.onReady = fn
	}
}

// WithBuildNumber overrides the running build number.
func WithBuildNumber(n int) Option {
	return func(a *Agent) {
		a.buildNumber = n
	}
}

// WithClock overrides the wall clock used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(a *Agent) {
		if now != nil {
			a.now = now
		}
	}
}

// NewAgent builds an agent for cfg. Updates run only when an installer is
// supplied.
func NewAgent(cfg *models.RemoteConfig, id Identity, stats StatsSource, log logger.Logger, opts ...Option) (*Agent, error) {
	if cfg == nil || cfg.ServerURL == "" {
		return nil, ErrMissingServerURL
	}

	interval := time.Duration(cfg.Interval)
	if interval <= 0 {
		interval = models.DefaultHeartbeatInterval
	}

	updateEvery := cfg.UpdateEvery
	if updateEvery <= 0 {
		updateEvery = models.DefaultUpdateEvery
	}

	requestTimeout := time.Duration(cfg.RequestTimeout)
	if requestTimeout <= 0 {
		requestTimeout = models.DefaultRequestTimeout
	}

	downloadTimeout := time.Duration(cfg.DownloadTimeout)
	if downloadTimeout <= 0 {
		downloadTimeout = models.DefaultDownloadTimeout
	}

	client, err := NewClient(cfg.ServerURL, cfg.APIKey, requestTimeout, downloadTimeout)
	if err != nil {
		return nil, err
	}

	a := &Agent{
		client:      client,
		identity:    id,
		stats:       stats,
		logger:      log,
		interval:    interval,
		updateEvery: updateEvery,
		timeout:     requestTimeout,
		buildNumber: version.GetBuildNumber(),
		now:         time.Now,
		done:        make(chan struct{}),
	}

	for _, opt := range opts {
		opt(a)
	}

	ensureHeartbeatMetrics()

	return a, nil
}

// UpdateState records the live flags reported with the next heartbeat.
func (a *Agent) UpdateState(recording, connected bool) {
	a.recording.Store(recording)
	a.connected.Store(connected)
}

// LastError returns the most recent heartbeat failure, or "" after a success.
func (a *Agent) LastError() string {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.lastError
}

// LastSuccess returns when the last heartbeat was accepted.
func (a *Agent) LastSuccess() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.lastSuccess
}

// Heartbeats returns the number of loop ticks so far.
func (a *Agent) Heartbeats() int64 {
	return a.count.Load()
}

// UpdateStaged reports whether a new binary is waiting for restart.
func (a *Agent) UpdateStaged() bool {
	return a.staged.Load()
}

// Run sends heartbeats until ctx is cancelled or Stop is called, then sends
// one best-effort offline status. It must be called once.
func (a *Agent) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)

	a.mu.Lock()
	a.cancel = cancel
	a.mu.Unlock()

	defer close(a.done)
	defer cancel()

	a.logger.Info().
		Dur("interval", a.interval).
		Int("update_every", a.updateEvery).
		Int("build", a.buildNumber).
		Msg("Heartbeat agent started")

	a.tryUpdate(runCtx)

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-runCtx.Done():
			a.sendOffline(ctx)
			a.logger.Info().Msg("Heartbeat agent stopped")

			return nil
		default:
		}

		a.send(runCtx, StatusOnline)

		if n := a.count.Add(1); n%int64(a.updateEvery) == 0 {
			a.tryUpdate(runCtx)
		}

		select {
		case <-runCtx.Done():
			a.sendOffline(ctx)
			a.logger.Info().Msg("Heartbeat agent stopped")

			return nil
		case <-ticker.C:
		}
	}
}

// Stop ends Run and waits for the offline status to go out, or for ctx.
func (a *Agent) Stop(ctx context.Context) error {
	a.mu.Lock()
	cancel := a.cancel
	a.mu.Unlock()

	if cancel == nil {
		return nil
	}

	cancel()

	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Agent) payload(ctx context.Context, status string) *Payload {
	var stats *models.Stats

	if a.stats != nil {
		s, err := a.stats.GetStats(ctx)
		if err != nil {
			a.logger.Warn().Err(err).Msg("Failed to collect usage statistics")
		} else {
			stats = s
		}
	}

	return BuildPayload(a.identity, a.buildNumber, status, a.recording.Load(), a.connected.Load(), stats, a.now())
}

func (a *Agent) send(ctx context.Context, status string) {
	reqCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	err := a.client.PostHeartbeat(reqCtx, a.payload(reqCtx, status))

	// A send cut short by Stop says nothing about the server.
	if err != nil && ctx.Err() != nil {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if err != nil {
		heartbeatMetricsData.failed.Add(1)

		a.lastError = truncate(err.Error(), maxErrorLen)
		a.logger.Warn().Err(err).Msg("Heartbeat failed")

		return
	}

	heartbeatMetricsData.sent.Add(1)

	a.lastError = ""
	a.lastSuccess = a.now()
}

func (a *Agent) sendOffline(parent context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), a.timeout)
	defer cancel()

	if err := a.client.PostHeartbeat(ctx, a.payload(ctx, StatusOffline)); err != nil {
		a.logger.Debug().Err(err).Msg("Offline status not delivered")
	}
}

func (a *Agent) tryUpdate(ctx context.Context) {
	if a.installer == nil || a.staged.Load() {
		return
	}

	if a.buildNumber <= 0 {
		a.logger.Debug().Msg("Development build, skipping update check")
		return
	}

	heartbeatMetricsData.updateChecks.Add(1)

	checkCtx, cancel := context.WithTimeout(ctx, a.timeout)
	info, err := a.client.CheckVersion(checkCtx)

	cancel()

	if err != nil {
		a.logger.Warn().Err(err).Msg("Update check failed")
		return
	}

	if info.Version <= a.buildNumber || info.DownloadURL == "" {
		a.logger.Debug().Int("server", info.Version).Int("current", a.buildNumber).Msg("No update available")
		return
	}

	a.logger.Info().Int("server", info.Version).Int("current", a.buildNumber).Msg("Update available, downloading")

	data, err := a.client.Download(ctx, info.DownloadURL)
	if err != nil {
		a.logger.Warn().Err(err).Msg("Update download failed")
		return
	}

	if err := a.installer.Apply(data); err != nil {
		heartbeatMetricsData.updateRejects.Add(1)
		a.logger.Error().Err(err).Int("bytes", len(data)).Msg("Update rejected")

		return
	}

	a.staged.Store(true)

	a.readyOnce.Do(func() {
		a.logger.Info().Int("version", info.Version).Msg("Update ready")

		if a.onReady != nil {
			a.onReady(info.Version)
		}
	})
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}

	return s[:n]
}
