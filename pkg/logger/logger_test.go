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

package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriterLevels(t *testing.T) {
	tests := []struct {
		name      string
		config    Config
		debugSeen bool
		wantErr   bool
	}{
		{name: "info default", config: Config{}, debugSeen: false},
		{name: "debug flag", config: Config{Debug: true}, debugSeen: true},
		{name: "explicit debug level", config: Config{Level: "debug"}, debugSeen: true},
		{name: "bad level", config: Config{Level: "loud"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer

			l, err := NewWithWriter(&tt.config, &buf)
			if tt.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)

			l.Debug().Msg("debug line")

			assert.Equal(t, tt.debugSeen, buf.Len() > 0)
		})
	}
}

func TestComponentLoggerAddsField(t *testing.T) {
	var buf bytes.Buffer

	l, err := NewWithWriter(&Config{Level: "info"}, &buf)
	require.NoError(t, err)

	Component(l, "link").Info().Str("port", "COM3").Msg("connected")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))

	assert.Equal(t, "link", line["component"])
	assert.Equal(t, "COM3", line["port"])
	assert.Equal(t, "connected", line["message"])
}

func TestSetDebugToggles(t *testing.T) {
	var buf bytes.Buffer

	l, err := NewWithWriter(&Config{}, &buf)
	require.NoError(t, err)

	l.SetDebug(true)
	l.Debug().Msg("visible")
	assert.NotZero(t, buf.Len())

	buf.Reset()
	l.SetLevel(zerolog.ErrorLevel)
	l.Warn().Msg("hidden")
	assert.Zero(t, buf.Len())
}

func TestInitializeMetricsDisabled(t *testing.T) {
	_, err := InitializeMetrics(context.Background(), MetricsConfig{})
	require.ErrorIs(t, err, ErrOTelMetricsDisabled)

	_, err = InitializeMetrics(context.Background(), MetricsConfig{OTel: &OTelConfig{Enabled: true}})
	require.ErrorIs(t, err, ErrOTelMetricsDisabled)

	require.NoError(t, ShutdownMetrics())
}

func TestSetupTLSConfig(t *testing.T) {
	cfg, err := setupTLSConfig(&TLSConfig{})
	require.NoError(t, err)
	assert.Nil(t, cfg.RootCAs)
	assert.Empty(t, cfg.Certificates)

	bad := filepath.Join(t.TempDir(), "ca.pem")
	require.NoError(t, os.WriteFile(bad, []byte("not a certificate"), 0o600))

	_, err = setupTLSConfig(&TLSConfig{CAFile: bad})
	require.ErrorIs(t, err, errFailedToParseCACert)

	_, err = setupTLSConfig(&TLSConfig{CAFile: filepath.Join(t.TempDir(), "missing.pem")})
	require.ErrorIs(t, err, os.ErrNotExist)
}
