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

// Package link discovers, probes and maintains the serial connection to the
// force plate controller.
package link

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/carverauto/forceplate/pkg/logger"
)

const (
	DefaultBaudRate    = 115200
	DefaultProbeWindow = 2500 * time.Millisecond
	DefaultTargetName  = "ForcePlatform"

	defaultProbeReadTimeout = 500 * time.Millisecond
	defaultReadTimeout      = 100 * time.Millisecond
	defaultIdlePoll         = 50 * time.Millisecond
	defaultReconnectBackoff = 500 * time.Millisecond
)

// State is the lifecycle of the single device link.
type State int

const (
	StateDisconnected State = iota
	StateProbing
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateProbing:
		return "probing"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// StateListener is told about every state transition.
type StateListener func(state State, port PortInfo)

type activeLink struct {
	port   Port
	reader *lineReader
	info   PortInfo
	rate   int
}

// Manager owns at most one open device link.
type Manager struct {
	opener     Opener
	enumerator Enumerator
	logger     logger.Logger
	handler    LineHandler
	onState    StateListener
	targetName string
	reconnect  bool
	clock      func() time.Time

	probeWindow      time.Duration
	probeReadTimeout time.Duration
	readTimeout      time.Duration
	idlePoll         time.Duration
	backoff          time.Duration

	// connectMu serializes Connect, Disconnect and automatic reopening.
	connectMu sync.Mutex
	writeMu   sync.Mutex

	mu         sync.Mutex
	current    *activeLink
	state      State
	excluded   map[string]struct{}
	resume     *PortInfo
	resumeRate int
	nextRetry  time.Time
}

// Option configures a Manager.
type Option func(*Manager)

func WithOpener(o Opener) Option { return func(m *Manager) { m.opener = o } }

func WithEnumerator(e Enumerator) Option { return func(m *Manager) { m.enumerator = e } }

func WithLineHandler(h LineHandler) Option { return func(m *Manager) { m.handler = h } }

func WithStateListener(l StateListener) Option { return func(m *Manager) { m.onState = l } }

func WithClock(now func() time.Time) Option { return func(m *Manager) { m.clock = now } }

// WithReconnect controls whether a lost link is reopened by Run.
func WithReconnect(enabled bool) Option { return func(m *Manager) { m.reconnect = enabled } }

// WithTargetName sets the identity string that marks the controller's port.
func WithTargetName(name string) Option {
	return func(m *Manager) {
		if name != "" {
			m.targetName = name
		}
	}
}

// WithProbeWindow bounds how long each candidate may take to answer.
func WithProbeWindow(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.probeWindow = d
			m.probeReadTimeout = min(m.probeReadTimeout, d)
		}
	}
}

// WithTimings overrides the read timeout, idle poll and reconnect backoff.
func WithTimings(readTimeout, idlePoll, backoff time.Duration) Option {
	return func(m *Manager) {
		if readTimeout > 0 {
			m.readTimeout = readTimeout
		}

		if idlePoll > 0 {
			m.idlePoll = idlePoll
		}

		if backoff > 0 {
			m.backoff = backoff
		}
	}
}

// NewManager returns a disconnected Manager using real serial ports unless
// overridden.
func NewManager(log logger.Logger, opts ...Option) *Manager {
	ensureLinkMetrics()

	m := &Manager{
		opener:           SerialOpener{},
		enumerator:       SerialEnumerator{},
		logger:           log,
		targetName:       DefaultTargetName,
		reconnect:        true,
		clock:            time.Now,
		probeWindow:      DefaultProbeWindow,
		probeReadTimeout: defaultProbeReadTimeout,
		readTimeout:      defaultReadTimeout,
		idlePoll:         defaultIdlePoll,
		backoff:          defaultReconnectBackoff,
		excluded:         make(map[string]struct{}),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// TargetName returns the configured controller identity string.
func (m *Manager) TargetName() string {
	return m.targetName
}

// Discover lists transports ordered target first, then wireless, then by
// name. Wireless candidates excluded by an earlier probe are omitted.
func (m *Manager) Discover() ([]PortInfo, error) {
	ports, err := m.enumerator.Ports()
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	excluded := make(map[string]struct{}, len(m.excluded))
	for name := range m.excluded {
		excluded[name] = struct{}{}
	}
	m.mu.Unlock()

	out := make([]PortInfo, 0, len(ports))

	for _, p := range ports {
		if _, skip := excluded[p.Name]; skip {
			continue
		}

		p.Kind = classify(p, m.targetName)
		out = append(out, p)
	}

	sortPorts(out)

	return out, nil
}

// Lookup resolves a device name against discovery. Names the enumerator
// does not report are treated as plain ports.
func (m *Manager) Lookup(name string) (PortInfo, error) {
	ports, err := m.Discover()
	if err != nil {
		return PortInfo{}, err
	}

	for _, p := range ports {
		if p.Name == name {
			return p, nil
		}
	}

	return PortInfo{Name: name, Kind: KindPlain}, nil
}

// Connect opens the selected transport at rate, closing any previous link
// first. Target and wireless selections are probed, followed by every other
// wireless candidate; the first to answer wins and the remaining wireless
// candidates are excluded for the rest of the run. Failures are returned,
// never retried.
func (m *Manager) Connect(ctx context.Context, sel PortInfo, rate int) error {
	if rate < 0 {
		return ErrInvalidRate
	}

	if rate == 0 {
		rate = DefaultBaudRate
	}

	m.connectMu.Lock()
	defer m.connectMu.Unlock()

	m.mu.Lock()
	m.resume = nil
	m.mu.Unlock()

	m.closeCurrent()

	if !sel.Kind.Probed() {
		return m.connectDirect(sel, rate)
	}

	candidates := m.probeCandidates(sel)

	for i, cand := range candidates {
		if err := ctx.Err(); err != nil {
			m.setState(StateDisconnected, sel)
			return err
		}

		m.setState(StateProbing, cand)

		port, reader, err := m.probe(ctx, cand, rate)
		if err != nil {
			m.logger.Debug().Err(err).Str("port", cand.Name).Msg("Probe candidate did not answer")
			continue
		}

		if err := port.SetReadTimeout(m.readTimeout); err != nil {
			_ = port.Close()

			m.logger.Warn().Err(err).Str("port", cand.Name).Msg("Failed to set read timeout")

			continue
		}

		m.excludeOthers(candidates, i)
		m.install(&activeLink{port: port, reader: reader, info: cand, rate: rate})

		m.logger.Info().Str("port", cand.Name).Int("baud", rate).Int("probed", i+1).Msg("Device link established")

		return nil
	}

	m.setState(StateDisconnected, sel)

	return fmt.Errorf("%w: %w (%d candidates)", ErrTransport, ErrNoCandidate, len(candidates))
}

func (m *Manager) connectDirect(sel PortInfo, rate int) error {
	port, err := m.opener.Open(sel.Name, rate)
	if err != nil {
		m.setState(StateDisconnected, sel)
		return wrapTransport(err)
	}

	if err := port.SetReadTimeout(m.readTimeout); err != nil {
		_ = port.Close()

		m.setState(StateDisconnected, sel)

		return wrapTransport(err)
	}

	m.install(&activeLink{port: port, reader: newLineReader(port), info: sel, rate: rate})

	m.logger.Info().Str("port", sel.Name).Int("baud", rate).Msg("Device link established")

	return nil
}

// probeCandidates returns the selection followed by the other wireless ports.
func (m *Manager) probeCandidates(sel PortInfo) []PortInfo {
	candidates := []PortInfo{sel}

	ports, err := m.Discover()
	if err != nil {
		m.logger.Warn().Err(err).Msg("Port discovery failed, probing selection only")
		return candidates
	}

	for _, p := range ports {
		if p.Kind == KindWireless && p.Name != sel.Name {
			candidates = append(candidates, p)
		}
	}

	return candidates
}

func (m *Manager) probe(ctx context.Context, cand PortInfo, rate int) (Port, *lineReader, error) {
	port, err := m.opener.Open(cand.Name, rate)
	if err != nil {
		return nil, nil, wrapTransport(err)
	}

	if err := port.SetReadTimeout(m.probeReadTimeout); err != nil {
		_ = port.Close()
		return nil, nil, wrapTransport(err)
	}

	reader := newLineReader(port)
	deadline := m.clock().Add(m.probeWindow)

	for m.clock().Before(deadline) {
		if err := ctx.Err(); err != nil {
			_ = port.Close()
			return nil, nil, err
		}

		line, err := reader.ReadLine()

		switch {
		case err == nil:
		case errors.Is(err, errReadTimeout), errors.Is(err, errLineTooLong):
			continue
		default:
			_ = port.Close()
			return nil, nil, wrapTransport(err)
		}

		if isDeviceMessage(line) {
			return port, reader, nil
		}
	}

	_ = port.Close()

	return nil, nil, ErrNoCandidate
}

// isDeviceMessage accepts a JSON object carrying telemetry or a status.
func isDeviceMessage(line []byte) bool {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(line, &fields); err != nil {
		return false
	}

	_, telemetry := fields["weight1"]
	_, status := fields["status"]

	return telemetry || status
}

func (m *Manager) excludeOthers(candidates []PortInfo, winner int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, c := range candidates {
		if i == winner || c.Kind != KindWireless || c.Name == candidates[winner].Name {
			continue
		}

		m.excluded[c.Name] = struct{}{}
	}
}

// Excluded lists wireless candidates dropped by earlier probes.
func (m *Manager) Excluded() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.excluded))
	for name := range m.excluded {
		out = append(out, name)
	}

	sort.Strings(out)

	return out
}

func (m *Manager) install(l *activeLink) {
	m.mu.Lock()
	m.current = l
	m.resume = &l.info
	m.resumeRate = l.rate
	m.mu.Unlock()

	m.setState(StateConnected, l.info)
}

// closeCurrent drops the active link. The read worker sees its port close
// and, finding the link no longer current, treats it as intentional.
func (m *Manager) closeCurrent() {
	m.mu.Lock()
	l := m.current
	m.current = nil
	m.mu.Unlock()

	if l == nil {
		return
	}

	if err := l.port.Close(); err != nil {
		m.logger.Debug().Err(err).Str("port", l.info.Name).Msg("Error closing previous link")
	}
}

// Disconnect closes the link and disables automatic reopening.
func (m *Manager) Disconnect() {
	m.connectMu.Lock()
	defer m.connectMu.Unlock()

	m.mu.Lock()
	info := PortInfo{}
	if m.current != nil {
		info = m.current.info
	}
	m.resume = nil
	m.mu.Unlock()

	m.closeCurrent()
	m.setState(StateDisconnected, info)
}

// Close disconnects; it satisfies shutdown step signatures.
func (m *Manager) Close(_ context.Context) error {
	m.Disconnect()
	return nil
}

// State returns the current link state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.state
}

// Connected reports whether a link is open.
func (m *Manager) Connected() bool {
	return m.State() == StateConnected
}

// Device returns the connected port, if any.
func (m *Manager) Device() (PortInfo, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return PortInfo{}, false
	}

	return m.current.info, true
}

// Send writes cmd as one JSON line. Without a link it does nothing; write
// failures are logged and counted, not returned.
func (m *Manager) Send(cmd interface{}) {
	l := m.active()
	if l == nil {
		return
	}

	data, err := json.Marshal(cmd)
	if err != nil {
		m.logger.Error().Err(err).Msg("Failed to encode device command")
		return
	}

	data = append(data, '\n')

	m.writeMu.Lock()
	_, err = l.port.Write(data)
	m.writeMu.Unlock()

	if err != nil {
		linkMetricsData.writeErrors.Add(1)
		m.logger.Warn().Err(err).Str("port", l.info.Name).Msg("Failed to write device command")
	}
}

func (m *Manager) active() *activeLink {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.current
}

// Run is the read worker. It delivers lines to the handler, tears the link
// down on I/O errors and, when enabled, reopens it after a fixed backoff.
// It returns when ctx is cancelled.
func (m *Manager) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		l := m.active()
		if l == nil {
			m.maybeReopen()

			if !sleepCtx(ctx, m.idlePoll) {
				return nil
			}

			continue
		}

		line, err := l.reader.ReadLine()

		switch {
		case err == nil:
		case errors.Is(err, errReadTimeout):
			continue
		case errors.Is(err, errLineTooLong):
			linkMetricsData.linesDiscarded.Add(1)
			continue
		default:
			m.linkLost(l, err)

			if !sleepCtx(ctx, m.backoff) {
				return nil
			}

			continue
		}

		if len(line) == 0 {
			continue
		}

		linkMetricsData.linesReceived.Add(1)

		if m.handler == nil {
			continue
		}

		if err := m.handler(line, m.clock()); err != nil {
			linkMetricsData.linesDiscarded.Add(1)
			m.logger.Trace().Err(err).Msg("Discarded device line")
		}
	}
}

func (m *Manager) linkLost(l *activeLink, cause error) {
	m.mu.Lock()
	if m.current != l {
		m.mu.Unlock()
		return
	}

	m.current = nil
	m.nextRetry = m.clock().Add(m.backoff)
	m.mu.Unlock()

	_ = l.port.Close()

	linkMetricsData.linkLost.Add(1)
	m.logger.Warn().Err(cause).Str("port", l.info.Name).Msg("Device link lost")

	m.setState(StateDisconnected, l.info)
}

func (m *Manager) maybeReopen() {
	if !m.reconnect {
		return
	}

	m.mu.Lock()
	due := m.resume != nil && m.current == nil && !m.clock().Before(m.nextRetry)
	m.mu.Unlock()

	if !due || !m.connectMu.TryLock() {
		return
	}
	defer m.connectMu.Unlock()

	m.mu.Lock()
	if m.resume == nil || m.current != nil {
		m.mu.Unlock()
		return
	}

	info, rate := *m.resume, m.resumeRate
	m.mu.Unlock()

	port, err := m.opener.Open(info.Name, rate)
	if err == nil {
		err = port.SetReadTimeout(m.readTimeout)
		if err != nil {
			_ = port.Close()
		}
	}

	if err != nil {
		m.mu.Lock()
		m.nextRetry = m.clock().Add(m.backoff)
		m.mu.Unlock()

		m.logger.Debug().Err(err).Str("port", info.Name).Msg("Reopen attempt failed")

		return
	}

	m.install(&activeLink{port: port, reader: newLineReader(port), info: info, rate: rate})
	linkMetricsData.reconnects.Add(1)

	m.logger.Info().Str("port", info.Name).Msg("Device link reopened")
}

func (m *Manager) setState(s State, info PortInfo) {
	m.mu.Lock()
	changed := m.state != s
	m.state = s
	m.mu.Unlock()

	linkMetricsData.state.Store(int64(s))

	if changed && m.onState != nil {
		m.onState(s, info)
	}
}

func wrapTransport(err error) error {
	if errors.Is(err, ErrTransport) {
		return err
	}

	return fmt.Errorf("%w: %w", ErrTransport, err)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
