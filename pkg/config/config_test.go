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

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/forceplate/pkg/logger"
	"github.com/carverauto/forceplate/pkg/models"
)

func TestLoadAndValidateFromFile(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "")

	path := filepath.Join(t.TempDir(), "forceplate.json")
	doc := `{
		"device": {"target_name": "Plate", "baud_rate": 9600, "probe_window": "1s"},
		"recorder": {"flush_threshold": 250},
		"remote": {"enabled": true, "server_url": "https://monitor.example.com/api.php", "api_key": "k", "interval": "30s"}
	}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	var cfg models.Config
	require.NoError(t, NewConfig(logger.NewTestLogger()).LoadAndValidate(context.Background(), path, &cfg))

	assert.Equal(t, "Plate", cfg.Device.TargetName)
	assert.Equal(t, 9600, cfg.Device.BaudRate)
	assert.Equal(t, time.Second, time.Duration(cfg.Device.ProbeWindow))
	assert.Equal(t, 250, cfg.Recorder.FlushThreshold)
	assert.Equal(t, 30*time.Second, time.Duration(cfg.Remote.Interval))
	assert.Equal(t, models.DefaultUpdateEvery, cfg.Remote.UpdateEvery)
}

func TestLoadAndValidateWithoutPathUsesDefaults(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "file")

	var cfg models.Config
	require.NoError(t, NewConfig(nil).LoadAndValidate(context.Background(), "", &cfg))

	assert.Equal(t, models.DefaultTargetName, cfg.Device.TargetName)
}

func TestLoadAndValidateMissingFile(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "")

	var cfg models.Config
	err := NewConfig(nil).LoadAndValidate(context.Background(), filepath.Join(t.TempDir(), "nope.json"), &cfg)
	require.Error(t, err)
}

func TestLoadAndValidateRejectsUnknownSource(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "kv")

	var cfg models.Config
	err := NewConfig(nil).LoadAndValidate(context.Background(), "", &cfg)
	require.ErrorIs(t, err, errInvalidConfigSource)
}

func TestLoadAndValidateReportsValidationError(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "env")
	t.Setenv("FORCEPLATE_REMOTE_ENABLED", "true")

	var cfg models.Config
	err := NewConfig(nil).LoadAndValidate(context.Background(), "", &cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server_url")
}

func TestEnvConfigLoaderNestedFields(t *testing.T) {
	t.Setenv("FORCEPLATE_DEVICE_BAUD_RATE", "57600")
	t.Setenv("FORCEPLATE_DEVICE_AUTO_RECONNECT", "false")
	t.Setenv("FORCEPLATE_DEVICE_PROBE_WINDOW", "3s")
	t.Setenv("FORCEPLATE_DATABASE_MAX_CONNECTIONS", "8")
	t.Setenv("FORCEPLATE_REMOTE_SERVER_URL", "http://localhost:8080")
	t.Setenv("FORCEPLATE_REMOTE_INTERVAL", "15000000000")
	t.Setenv("FORCEPLATE_LOGGING_LEVEL", "debug")
	t.Setenv("FORCEPLATE_RECORDER_FLUSH_THRESHOLD", "many")

	var cfg models.Config
	require.NoError(t, NewEnvConfigLoader(nil, "FORCEPLATE_").Load(context.Background(), "", &cfg))

	assert.Equal(t, 57600, cfg.Device.BaudRate)
	assert.False(t, cfg.Device.Reconnect())
	assert.Equal(t, 3*time.Second, time.Duration(cfg.Device.ProbeWindow))
	assert.EqualValues(t, 8, cfg.Database.MaxConnections)
	assert.Equal(t, "http://localhost:8080", cfg.Remote.ServerURL)
	assert.Equal(t, 15*time.Second, time.Duration(cfg.Remote.Interval))
	require.NotNil(t, cfg.Logging)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Zero(t, cfg.Recorder.FlushThreshold)
}

func TestEnvConfigLoaderConfigJSON(t *testing.T) {
	t.Setenv("FORCEPLATE_CONFIG_JSON", `{"events":{"enabled":true,"nats_url":"nats://127.0.0.1:4222"}}`)
	t.Setenv("FORCEPLATE_EVENTS_STREAM", "ignored")

	var cfg models.Config
	require.NoError(t, NewEnvConfigLoader(nil, "FORCEPLATE_").Load(context.Background(), "", &cfg))

	assert.True(t, cfg.Events.Enabled)
	assert.Equal(t, "nats://127.0.0.1:4222", cfg.Events.NATSURL)
	assert.Empty(t, cfg.Events.Stream)
}

func TestEnvConfigLoaderRejectsNonPointer(t *testing.T) {
	loader := NewEnvConfigLoader(nil, "X_")

	require.ErrorIs(t, loader.Load(context.Background(), "", models.Config{}), ErrDstMustBeNonNilPointer)

	s := "x"
	require.ErrorIs(t, loader.Load(context.Background(), "", &s), ErrDstMustBePointerToStruct)
}
