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

package heartbeat

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/forceplate/pkg/logger"
	"github.com/carverauto/forceplate/pkg/models"
)

var errStats = errors.New("stats unavailable")

// fakeServer plays the monitoring endpoint.
type fakeServer struct {
	mu        sync.Mutex
	statuses  []string
	recording []bool
	checks    int
	downloads int
	version   int
	binary    []byte
	failPosts bool
}

func (f *fakeServer) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		if r.Method == http.MethodGet && r.URL.Query().Get("action") == "version" {
			f.checks++
			_ = json.NewEncoder(w).Encode(map[string]any{
				"version":      f.version,
				"download_url": "http://" + r.Host + "/bin",
			})

			return
		}

		if f.failPosts {
			http.Error(w, "down", http.StatusBadGateway)
			return
		}

		var p Payload

		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &p)

		f.statuses = append(f.statuses, p.Status)
		f.recording = append(f.recording, p.IsRecording)
	})

	mux.HandleFunc("/bin", func(w http.ResponseWriter, _ *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		f.downloads++
		_, _ = w.Write(f.binary)
	})

	return mux
}

func (f *fakeServer) snapshot() (statuses []string, checks, downloads int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.statuses...), f.checks, f.downloads
}

type fakeStats struct {
	err error
}

func (s fakeStats) GetStats(context.Context) (*models.Stats, error) {
	if s.err != nil {
		return nil, s.err
	}

	return &models.Stats{SessionCount: 3}, nil
}

type fakeInstaller struct {
	mu      sync.Mutex
	applied [][]byte
	err     error
}

func (f *fakeInstaller) Apply(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.applied = append(f.applied, data)

	return f.err
}

func (f *fakeInstaller) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.applied)
}

func newTestAgent(t *testing.T, srv *httptest.Server, opts ...Option) *Agent {
	t.Helper()

	cfg := &models.RemoteConfig{
		Enabled:     true,
		ServerURL:   srv.URL + "/api",
		APIKey:      "k",
		Interval:    models.Duration(10 * time.Millisecond),
		UpdateEvery: 2,
	}

	a, err := NewAgent(cfg, Identity{AppID: "test"}, fakeStats{}, logger.NewTestLogger(), opts...)
	require.NoError(t, err)

	return a
}

func runAgent(t *testing.T, a *Agent) (stop func()) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)

	go func() { errCh <- a.Run(ctx) }()

	return func() {
		cancel()

		select {
		case err := <-errCh:
			require.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("agent did not stop")
		}
	}
}

func TestAgent_SendsHeartbeatsAndOfflineOnStop(t *testing.T) {
	fs := &fakeServer{}
	srv := httptest.NewServer(fs.handler())
	defer srv.Close()

	a := newTestAgent(t, srv, WithBuildNumber(5))
	a.UpdateState(true, true)

	stop := runAgent(t, a)

	require.Eventually(t, func() bool { return a.Heartbeats() >= 3 }, 2*time.Second, 5*time.Millisecond)
	stop()

	statuses, _, _ := fs.snapshot()
	require.GreaterOrEqual(t, len(statuses), 4)
	assert.Equal(t, StatusOnline, statuses[0])
	assert.Equal(t, StatusOffline, statuses[len(statuses)-1])
	assert.True(t, fs.recording[0])
	assert.Empty(t, a.LastError())
	assert.False(t, a.LastSuccess().IsZero())
}

func TestAgent_FailuresDoNotStopLoop(t *testing.T) {
	fs := &fakeServer{failPosts: true}
	srv := httptest.NewServer(fs.handler())
	defer srv.Close()

	cfg := &models.RemoteConfig{ServerURL: srv.URL + "/api", Interval: models.Duration(5 * time.Millisecond)}

	a, err := NewAgent(cfg, Identity{}, fakeStats{err: errStats}, logger.NewTestLogger(), WithBuildNumber(0))
	require.NoError(t, err)

	stop := runAgent(t, a)

	require.Eventually(t, func() bool { return a.Heartbeats() >= 3 }, 2*time.Second, 5*time.Millisecond)
	stop()

	assert.Contains(t, a.LastError(), "502")
	assert.True(t, a.LastSuccess().IsZero())
}

func TestAgent_StagesUpdateOnceAndSignals(t *testing.T) {
	fs := &fakeServer{version: 8, binary: []byte("\x7fELF-new-binary")}
	srv := httptest.NewServer(fs.handler())
	defer srv.Close()

	inst := &fakeInstaller{}

	var (
		readyMu sync.Mutex
		ready   []int
	)

	a := newTestAgent(t, srv,
		WithBuildNumber(7),
		WithInstaller(inst),
		WithUpdateReady(func(v int) {
			readyMu.Lock()
			ready = append(ready, v)
			readyMu.Unlock()
		}),
	)

	stop := runAgent(t, a)

	require.Eventually(t, func() bool { return a.Heartbeats() >= 5 }, 2*time.Second, 5*time.Millisecond)
	stop()

	_, checks, downloads := fs.snapshot()
	assert.Equal(t, 1, checks, "no checks after an update is staged")
	assert.Equal(t, 1, downloads)
	assert.Equal(t, 1, inst.calls())
	assert.True(t, a.UpdateStaged())

	readyMu.Lock()
	defer readyMu.Unlock()
	assert.Equal(t, []int{8}, ready)
}

func TestAgent_RejectedUpdateRetriesOnSchedule(t *testing.T) {
	fs := &fakeServer{version: 8, binary: []byte("tiny")}
	srv := httptest.NewServer(fs.handler())
	defer srv.Close()

	inst := &fakeInstaller{err: errors.New("too small")}

	a := newTestAgent(t, srv, WithBuildNumber(7), WithInstaller(inst))

	stop := runAgent(t, a)

	require.Eventually(t, func() bool { return a.Heartbeats() >= 4 }, 2*time.Second, 5*time.Millisecond)
	stop()

	_, checks, _ := fs.snapshot()
	assert.GreaterOrEqual(t, checks, 2)
	assert.False(t, a.UpdateStaged())
}

func TestAgent_SkipsUpdatesForDevelopmentOrCurrentBuild(t *testing.T) {
	for _, build := range []int{0, 8, 9} {
		fs := &fakeServer{version: 8}
		srv := httptest.NewServer(fs.handler())

		inst := &fakeInstaller{}
		a := newTestAgent(t, srv, WithBuildNumber(build), WithInstaller(inst))

		stop := runAgent(t, a)
		require.Eventually(t, func() bool { return a.Heartbeats() >= 2 }, 2*time.Second, 5*time.Millisecond)
		stop()

		_, checks, downloads := fs.snapshot()
		if build == 0 {
			assert.Zero(t, checks)
		} else {
			assert.Positive(t, checks)
		}

		assert.Zero(t, downloads)
		assert.Zero(t, inst.calls())

		srv.Close()
	}
}

func TestAgent_StopWaitsForRun(t *testing.T) {
	fs := &fakeServer{}
	srv := httptest.NewServer(fs.handler())
	defer srv.Close()

	a := newTestAgent(t, srv)

	go func() { _ = a.Run(context.Background()) }()

	require.Eventually(t, func() bool { return a.Heartbeats() >= 1 }, 2*time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, a.Stop(ctx))

	statuses, _, _ := fs.snapshot()
	assert.Equal(t, StatusOffline, statuses[len(statuses)-1])
}

func TestNewAgent_RequiresServerURL(t *testing.T) {
	_, err := NewAgent(&models.RemoteConfig{}, Identity{}, nil, logger.NewTestLogger())
	require.ErrorIs(t, err, ErrMissingServerURL)
}

func TestAgent_StopDuringPostKeepsLastServerError(t *testing.T) {
	var (
		mu    sync.Mutex
		posts int
	)

	hung := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		posts++
		n := posts
		mu.Unlock()

		if n == 1 {
			http.Error(w, "down", http.StatusBadGateway)
			return
		}

		if n == 2 {
			close(hung)
			<-r.Context().Done()
		}
	}))
	defer srv.Close()

	cfg := &models.RemoteConfig{ServerURL: srv.URL + "/api", Interval: models.Duration(5 * time.Millisecond)}

	a, err := NewAgent(cfg, Identity{}, fakeStats{}, logger.NewTestLogger(), WithBuildNumber(0))
	require.NoError(t, err)

	stop := runAgent(t, a)

	select {
	case <-hung:
	case <-time.After(2 * time.Second):
		t.Fatal("second heartbeat never reached the server")
	}

	stop()

	assert.Contains(t, a.LastError(), "502")
	assert.NotContains(t, a.LastError(), context.Canceled.Error())
}
