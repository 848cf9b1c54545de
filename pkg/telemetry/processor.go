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

package telemetry

import (
	"sync"
	"time"

	"github.com/carverauto/forceplate/pkg/models"
)

const (
	// DefaultResponseCapacity bounds the status queue between drains.
	DefaultResponseCapacity = 64

	healthyAge = 2 * time.Second
	waitingAge = 5 * time.Second
)

// Health classifies the link from the age of the last device activity.
type Health int

const (
	HealthDisconnected Health = iota
	HealthConnected
	HealthWaiting
	HealthTimeout
)

func (h Health) String() string {
	switch h {
	case HealthConnected:
		return "connected"
	case HealthWaiting:
		return "waiting"
	case HealthTimeout:
		return "timeout"
	case HealthDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Sample is a consistent copy of the current telemetry state.
type Sample struct {
	Loads      models.Loads
	Total      float64
	CoM        models.CoM
	Frequency  float64
	ReceivedAt time.Time
	Valid      bool
}

// Processor holds the latest sample and the pending status responses.
// The link worker writes through Apply/HandleLine; the consumer tick reads
// through Snapshot and DrainResponses.
type Processor struct {
	mu            sync.Mutex
	loads         models.Loads
	lastTelemetry time.Time
	lastActivity  time.Time
	frequency     float64
	valid         bool
	calibration   CalibrationTable

	respMu    sync.Mutex
	responses []Message
	capacity  int
	dropped   uint64
}

// Option configures a Processor.
type Option func(*Processor)

// WithResponseCapacity overrides the status queue bound.
func WithResponseCapacity(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.capacity = n
		}
	}
}

// NewProcessor returns an empty processor.
func NewProcessor(opts ...Option) *Processor {
	p := &Processor{capacity: DefaultResponseCapacity}

	for _, opt := range opts {
		opt(p)
	}

	p.responses = make([]Message, 0, p.capacity)

	return p
}

// HandleLine decodes and applies one device line. Undecodable lines leave
// the state untouched and return an error wrapping ErrProtocol.
func (p *Processor) HandleLine(line []byte, receivedAt time.Time) error {
	msg, err := Decode(line)
	if err != nil {
		return err
	}

	p.Apply(msg, receivedAt)

	return nil
}

// Apply folds a decoded message into the processor state.
func (p *Processor) Apply(msg Message, receivedAt time.Time) {
	switch m := msg.(type) {
	case Telemetry:
		p.applyTelemetry(m, receivedAt)
	case CalibrationResult:
		p.mu.Lock()
		p.calibration[m.Sensor-1] = SensorCalibration{Offset: m.Offset, Scale: m.Scale}
		p.lastActivity = receivedAt
		p.mu.Unlock()
		p.enqueue(m)
	case CalibrationSnapshot:
		p.mu.Lock()
		p.calibration = m.Table
		p.lastActivity = receivedAt
		p.mu.Unlock()
		p.enqueue(m)
	default:
		p.mu.Lock()
		p.lastActivity = receivedAt
		p.mu.Unlock()
		p.enqueue(m)
	}
}

func (p *Processor) applyTelemetry(t Telemetry, receivedAt time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.lastTelemetry.IsZero() {
		if d := receivedAt.Sub(p.lastTelemetry); d > 0 {
			p.frequency = 1 / d.Seconds()
		}
	}

	p.loads = t.Loads
	p.lastTelemetry = receivedAt
	p.lastActivity = receivedAt
	p.valid = true
}

func (p *Processor) enqueue(m Message) {
	p.respMu.Lock()
	defer p.respMu.Unlock()

	if len(p.responses) >= p.capacity {
		copy(p.responses, p.responses[1:])
		p.responses = p.responses[:len(p.responses)-1]
		p.dropped++
	}

	p.responses = append(p.responses, m)
}

// Snapshot returns the current sample with its center of mass recomputed
// from the stored loads.
func (p *Processor) Snapshot() Sample {
	p.mu.Lock()
	loads, freq, at, valid := p.loads, p.frequency, p.lastTelemetry, p.valid
	p.mu.Unlock()

	return Sample{
		Loads:      loads,
		Total:      loads.Total(),
		CoM:        CenterOfMass(loads),
		Frequency:  freq,
		ReceivedAt: at,
		Valid:      valid,
	}
}

// DrainResponses returns every queued status message in arrival order and
// empties the queue.
func (p *Processor) DrainResponses() []Message {
	p.respMu.Lock()
	defer p.respMu.Unlock()

	if len(p.responses) == 0 {
		return nil
	}

	out := make([]Message, len(p.responses))
	copy(out, p.responses)
	p.responses = p.responses[:0]

	return out
}

// Dropped counts status messages discarded because the queue was full.
func (p *Processor) Dropped() uint64 {
	p.respMu.Lock()
	defer p.respMu.Unlock()

	return p.dropped
}

// Calibration returns the last known calibration table.
func (p *Processor) Calibration() CalibrationTable {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.calibration
}

// MarkConnected starts the health clock for a fresh link and forgets the
// previous frequency baseline.
func (p *Processor) MarkConnected(at time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.lastActivity = at
	p.lastTelemetry = time.Time{}
	p.frequency = 0
}

// Health classifies the link at now. linked reports whether a transport is open.
func (p *Processor) Health(now time.Time, linked bool) Health {
	if !linked {
		return HealthDisconnected
	}

	p.mu.Lock()
	last := p.lastActivity
	p.mu.Unlock()

	switch age := now.Sub(last); {
	case age < healthyAge:
		return HealthConnected
	case age < waitingAge:
		return HealthWaiting
	default:
		return HealthTimeout
	}
}
