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

package link

import (
	"errors"
	"io"
	"sync"
	"time"
)

var errUnplugged = errors.New("device unplugged")

// fakePort feeds queued bytes to Read and simulates read timeouts.
type fakePort struct {
	name string

	mu      sync.Mutex
	data    chan []byte
	pending []byte
	written [][]byte
	timeout time.Duration
	closed  bool
	failErr error
	done    chan struct{}
}

func newFakePort(name string) *fakePort {
	return &fakePort{
		name:    name,
		data:    make(chan []byte, 64),
		timeout: 5 * time.Millisecond,
		done:    make(chan struct{}),
	}
}

func (p *fakePort) feed(s string) { p.data <- []byte(s) }

func (p *fakePort) fail(err error) {
	p.mu.Lock()
	p.failErr = err
	p.mu.Unlock()
}

func (p *fakePort) Read(b []byte) (int, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return 0, io.ErrClosedPipe
	}

	if p.failErr != nil {
		err := p.failErr
		p.mu.Unlock()

		return 0, err
	}

	if len(p.pending) > 0 {
		n := copy(b, p.pending)
		p.pending = p.pending[n:]
		p.mu.Unlock()

		return n, nil
	}

	timeout := p.timeout
	p.mu.Unlock()

	select {
	case chunk := <-p.data:
		p.mu.Lock()
		n := copy(b, chunk)
		p.pending = append(p.pending, chunk[n:]...)
		p.mu.Unlock()

		return n, nil
	case <-p.done:
		return 0, io.ErrClosedPipe
	case <-time.After(timeout):
		return 0, nil
	}
}

func (p *fakePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return 0, io.ErrClosedPipe
	}

	p.written = append(p.written, append([]byte(nil), b...))

	return len(b), nil
}

func (p *fakePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.closed {
		p.closed = true
		close(p.done)
	}

	return nil
}

func (p *fakePort) SetReadTimeout(t time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if t > 0 && t < p.timeout {
		p.timeout = t
	}

	return nil
}

func (p *fakePort) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.closed
}

func (p *fakePort) writes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]string, 0, len(p.written))
	for _, w := range p.written {
		out = append(out, string(w))
	}

	return out
}

// fakeOpener hands out ports from a factory keyed by device name.
type fakeOpener struct {
	mu      sync.Mutex
	factory func(name string) (*fakePort, error)
	opened  []string
	ports   []*fakePort
}

func (o *fakeOpener) Open(name string, _ int) (Port, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.opened = append(o.opened, name)

	p, err := o.factory(name)
	if err != nil {
		return nil, err
	}

	o.ports = append(o.ports, p)

	return p, nil
}

func (o *fakeOpener) openedNames() []string {
	o.mu.Lock()
	defer o.mu.Unlock()

	return append([]string(nil), o.opened...)
}

func (o *fakeOpener) lastPort() *fakePort {
	o.mu.Lock()
	defer o.mu.Unlock()

	if len(o.ports) == 0 {
		return nil
	}

	return o.ports[len(o.ports)-1]
}

type fakeEnumerator struct {
	ports []PortInfo
	err   error
}

func (e fakeEnumerator) Ports() ([]PortInfo, error) {
	return append([]PortInfo(nil), e.ports...), e.err
}
