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
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/forceplate/pkg/logger"
)

const telemetryLine = `{"weight1":10,"weight2":20,"weight3":30,"weight4":40}` + "\n"

func newTestManager(opener *fakeOpener, ports []PortInfo, opts ...Option) *Manager {
	base := []Option{
		WithOpener(opener),
		WithEnumerator(fakeEnumerator{ports: ports}),
		WithProbeWindow(60 * time.Millisecond),
		WithTimings(5*time.Millisecond, 2*time.Millisecond, 10*time.Millisecond),
	}

	return NewManager(logger.NewTestLogger(), append(base, opts...)...)
}

func TestDiscoverClassifiesAndOrders(t *testing.T) {
	ports := []PortInfo{
		{Name: "/dev/ttyS0"},
		{Name: "COM7", Description: "Standard Serial over Bluetooth link"},
		{Name: "/dev/ttyACM0", Description: "ForcePlatform v2", IsUSB: true},
		{Name: "/dev/rfcomm0"},
		{Name: "/dev/ttyUSB1", SerialNumber: "forceplatform-0042"},
	}

	m := newTestManager(&fakeOpener{}, ports)

	got, err := m.Discover()
	require.NoError(t, err)

	names := make([]string, 0, len(got))
	for _, p := range got {
		names = append(names, p.Name)
	}

	assert.Equal(t, []string{"/dev/ttyACM0", "/dev/ttyUSB1", "/dev/rfcomm0", "COM7", "/dev/ttyS0"}, names)
	assert.Equal(t, KindTarget, got[0].Kind)
	assert.Equal(t, KindWireless, got[2].Kind)
	assert.Equal(t, KindPlain, got[4].Kind)
	assert.Equal(t, "[ForcePlatform] /dev/ttyACM0  --  ForcePlatform v2", got[0].Label(m.TargetName()))
	assert.Equal(t, "[BT] /dev/rfcomm0", got[2].Label(m.TargetName()))
}

func TestDiscoverPropagatesEnumeratorError(t *testing.T) {
	m := NewManager(logger.NewTestLogger(), WithEnumerator(fakeEnumerator{err: ErrTransport}))

	_, err := m.Discover()
	require.ErrorIs(t, err, ErrTransport)
}

func TestConnectProbesUntilThirdWirelessCandidateAnswers(t *testing.T) {
	ports := []PortInfo{
		{Name: "/dev/rfcomm0", Description: "Bluetooth"},
		{Name: "/dev/rfcomm1", Description: "Bluetooth"},
		{Name: "/dev/rfcomm2", Description: "Bluetooth"},
		{Name: "/dev/ttyUSB0"},
	}

	opener := &fakeOpener{factory: func(name string) (*fakePort, error) {
		p := newFakePort(name)
		if name == "/dev/rfcomm2" {
			p.feed("boot banner\n")
			p.feed(telemetryLine)
		}

		return p, nil
	}}

	var (
		mu     sync.Mutex
		states []State
	)

	m := newTestManager(opener, ports, WithStateListener(func(s State, _ PortInfo) {
		mu.Lock()
		states = append(states, s)
		mu.Unlock()
	}))

	discovered, err := m.Discover()
	require.NoError(t, err)
	require.Equal(t, "/dev/rfcomm0", discovered[0].Name)

	require.NoError(t, m.Connect(context.Background(), discovered[0], 9600))

	assert.Equal(t, []string{"/dev/rfcomm0", "/dev/rfcomm1", "/dev/rfcomm2"}, opener.openedNames())

	dev, ok := m.Device()
	require.True(t, ok)
	assert.Equal(t, "/dev/rfcomm2", dev.Name)
	assert.Equal(t, StateConnected, m.State())
	assert.Equal(t, []string{"/dev/rfcomm0", "/dev/rfcomm1"}, m.Excluded())

	after, err := m.Discover()
	require.NoError(t, err)

	var names []string
	for _, p := range after {
		names = append(names, p.Name)
	}

	assert.Equal(t, []string{"/dev/rfcomm2", "/dev/ttyUSB0"}, names)

	mu.Lock()
	assert.Equal(t, []State{StateProbing, StateConnected}, states)
	mu.Unlock()

	m.Disconnect()
}

func TestConnectFailsWhenNoCandidateAnswers(t *testing.T) {
	ports := []PortInfo{
		{Name: "/dev/rfcomm0", Description: "Bluetooth"},
		{Name: "/dev/rfcomm1", Description: "Bluetooth"},
	}

	opener := &fakeOpener{factory: func(name string) (*fakePort, error) {
		p := newFakePort(name)
		p.feed("not json\n")

		return p, nil
	}}

	m := newTestManager(opener, ports)

	err := m.Connect(context.Background(), PortInfo{Name: "/dev/rfcomm0", Kind: KindWireless}, 0)
	require.ErrorIs(t, err, ErrTransport)
	require.ErrorIs(t, err, ErrNoCandidate)

	assert.Equal(t, StateDisconnected, m.State())
	assert.Empty(t, m.Excluded())

	for _, p := range opener.ports {
		assert.True(t, p.isClosed(), p.name)
	}
}

func TestConnectPlainOpensDirectly(t *testing.T) {
	opener := &fakeOpener{factory: func(name string) (*fakePort, error) {
		return newFakePort(name), nil
	}}

	m := newTestManager(opener, []PortInfo{
		{Name: "/dev/ttyS0"},
		{Name: "/dev/rfcomm0", Description: "Bluetooth"},
	})

	info, err := m.Lookup("/dev/ttyS0")
	require.NoError(t, err)
	require.NoError(t, m.Connect(context.Background(), info, 115200))

	assert.Equal(t, []string{"/dev/ttyS0"}, opener.openedNames())
	assert.True(t, m.Connected())
}

func TestConnectOpenFailureIsTransportError(t *testing.T) {
	opener := &fakeOpener{factory: func(string) (*fakePort, error) {
		return nil, errors.New("permission denied")
	}}

	m := newTestManager(opener, nil)

	err := m.Connect(context.Background(), PortInfo{Name: "/dev/ttyS9"}, 115200)
	require.ErrorIs(t, err, ErrTransport)
	assert.Equal(t, StateDisconnected, m.State())

	require.ErrorIs(t, m.Connect(context.Background(), PortInfo{Name: "x"}, -1), ErrInvalidRate)
}

func TestConnectClosesPreviousLink(t *testing.T) {
	opener := &fakeOpener{factory: func(name string) (*fakePort, error) {
		return newFakePort(name), nil
	}}

	m := newTestManager(opener, nil)

	require.NoError(t, m.Connect(context.Background(), PortInfo{Name: "a"}, 0))
	first := opener.lastPort()

	require.NoError(t, m.Connect(context.Background(), PortInfo{Name: "b"}, 0))

	assert.True(t, first.isClosed())

	dev, _ := m.Device()
	assert.Equal(t, "b", dev.Name)
}

func TestRunDeliversLinesAndSendWrites(t *testing.T) {
	opener := &fakeOpener{factory: func(name string) (*fakePort, error) {
		return newFakePort(name), nil
	}}

	lines := make(chan string, 8)

	m := newTestManager(opener, nil, WithLineHandler(func(line []byte, _ time.Time) error {
		lines <- string(line)
		return nil
	}))

	m.Send(map[string]string{"cmd": "tare"})

	require.NoError(t, m.Connect(context.Background(), PortInfo{Name: "/dev/ttyUSB0"}, 0))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() { done <- m.Run(ctx) }()

	port := opener.lastPort()
	port.feed(`{"weight1":1,"weight2":2,` + "\r\n")
	port.feed(`"weight3":3,"weight4":4}` + "\n")
	port.feed(`{"status":"tare_ok"}` + "\n")

	select {
	case got := <-lines:
		assert.Equal(t, `{"weight1":1,"weight2":2,`, got)
	case <-time.After(time.Second):
		t.Fatal("no line delivered")
	}

	m.Send(map[string]string{"cmd": "tare"})
	assert.Equal(t, []string{"{\"cmd\":\"tare\"}\n"}, port.writes())

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestRunReopensLostLink(t *testing.T) {
	opener := &fakeOpener{factory: func(name string) (*fakePort, error) {
		return newFakePort(name), nil
	}}

	var (
		mu     sync.Mutex
		states []State
	)

	m := newTestManager(opener, nil, WithStateListener(func(s State, _ PortInfo) {
		mu.Lock()
		states = append(states, s)
		mu.Unlock()
	}))

	require.NoError(t, m.Connect(context.Background(), PortInfo{Name: "/dev/ttyUSB0"}, 0))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = m.Run(ctx) }()

	first := opener.lastPort()
	first.fail(errUnplugged)

	require.Eventually(t, func() bool {
		return len(opener.openedNames()) == 2 && m.Connected()
	}, 2*time.Second, 5*time.Millisecond)

	assert.True(t, first.isClosed())

	mu.Lock()
	assert.Equal(t, []State{StateConnected, StateDisconnected, StateConnected}, states)
	mu.Unlock()
}

func TestRunDoesNotReopenAfterDisconnect(t *testing.T) {
	opener := &fakeOpener{factory: func(name string) (*fakePort, error) {
		return newFakePort(name), nil
	}}

	m := newTestManager(opener, nil)

	require.NoError(t, m.Connect(context.Background(), PortInfo{Name: "/dev/ttyUSB0"}, 0))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = m.Run(ctx) }()

	m.Disconnect()
	time.Sleep(60 * time.Millisecond)

	assert.Len(t, opener.openedNames(), 1)
	assert.Equal(t, StateDisconnected, m.State())
}

func TestRunWithoutReconnectStaysDown(t *testing.T) {
	opener := &fakeOpener{factory: func(name string) (*fakePort, error) {
		return newFakePort(name), nil
	}}

	m := newTestManager(opener, nil, WithReconnect(false))

	require.NoError(t, m.Connect(context.Background(), PortInfo{Name: "/dev/ttyUSB0"}, 0))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = m.Run(ctx) }()

	opener.lastPort().fail(errUnplugged)

	require.Eventually(t, func() bool { return m.State() == StateDisconnected }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	assert.Len(t, opener.openedNames(), 1)
}

func TestLineReader(t *testing.T) {
	long := strings.Repeat("x", maxLineLength+100)
	p := newFakePort("r")
	p.feed("a\nb")
	p.feed("c\n" + long)
	p.feed("\n  d  \n")

	r := newLineReader(p)

	line, err := r.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "a", string(line))

	line, err = r.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "bc", string(line))

	_, err = r.ReadLine()
	require.ErrorIs(t, err, errLineTooLong)

	line, err = r.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "d", string(line))

	_, err = r.ReadLine()
	require.ErrorIs(t, err, errReadTimeout)
}

func TestIsDeviceMessage(t *testing.T) {
	assert.True(t, isDeviceMessage([]byte(`{"weight1":0}`)))
	assert.True(t, isDeviceMessage([]byte(`{"status":"tare_ok"}`)))
	assert.False(t, isDeviceMessage([]byte(`{"hello":1}`)))
	assert.False(t, isDeviceMessage([]byte(`[1,2]`)))
	assert.False(t, isDeviceMessage([]byte(`weight1`)))
}
