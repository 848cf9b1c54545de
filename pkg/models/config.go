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

package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/carverauto/forceplate/pkg/logger"
)

var (
	errInvalidDuration     = errors.New("invalid duration")
	errInvalidBaudRate     = errors.New("device baud_rate must be positive")
	errInvalidFlush        = errors.New("recorder flush_threshold must be positive")
	errMissingServerURL    = errors.New("remote server_url is required when remote is enabled")
	errInvalidServerURL    = errors.New("remote server_url must be an absolute http(s) URL")
	errMissingNATSURL      = errors.New("events nats_url is required when events are enabled")
	errMissingOTelEndpoint = errors.New("metrics endpoint is required when metrics are enabled")
	errMissingDatabaseHost = errors.New("database host or url is required")
)

const (
	DefaultTargetName         = "ForcePlatform"
	DefaultBaudRate           = 115200
	DefaultProbeWindow        = 2500 * time.Millisecond
	DefaultFlushThreshold     = 500
	DefaultMaxRetainedSamples = 5000
	DefaultHeartbeatInterval  = 60 * time.Second
	DefaultUpdateEvery        = 5
	DefaultRequestTimeout     = 10 * time.Second
	DefaultDownloadTimeout    = 120 * time.Second
	DefaultMinUpdateSize      = 100000
	DefaultSettingsFile       = "forceplate_settings.json"
	DefaultEventsStream       = "FORCEPLATE"
	DefaultEventsSubject      = "forceplate.sessions"
	DefaultDatabaseHost       = "localhost"
	DefaultDatabasePort       = 5432
	DefaultDatabaseName       = "forceplate"
	DefaultSSLMode            = "prefer"
	DefaultMaxConnections     = 4
)

// Duration is a wrapper around time.Duration that supports JSON unmarshaling
// from both nanosecond numbers and "1m30s" style strings.
type Duration time.Duration

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))
		return nil
	case string:
		dur, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("%w: %w", errInvalidDuration, err)
		}

		*d = Duration(dur)

		return nil
	default:
		return errInvalidDuration
	}
}

// MarshalJSON renders the duration in its string form.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Config is the complete controller configuration.
type Config struct {
	Logging  *logger.Config `json:"logging,omitempty"`
	Device   DeviceConfig   `json:"device"`
	Database DatabaseConfig `json:"database"`
	Recorder RecorderConfig `json:"recorder"`
	Remote   RemoteConfig   `json:"remote"`
	Update   UpdateConfig   `json:"update"`
	Events   EventsConfig   `json:"events"`
	Metrics  MetricsConfig  `json:"metrics"`
}

// DeviceConfig describes the sensor controller link.
type DeviceConfig struct {
	TargetName    string   `json:"target_name"`
	BaudRate      int      `json:"baud_rate"`
	AutoReconnect *bool    `json:"auto_reconnect,omitempty"`
	ProbeWindow   Duration `json:"probe_window"`
}

// Reconnect reports whether a lost link should be reopened; it defaults to true.
func (c DeviceConfig) Reconnect() bool {
	return c.AutoReconnect == nil || *c.AutoReconnect
}

// DatabaseConfig points at the Postgres instance holding sessions and samples.
type DatabaseConfig struct {
	URL             string `json:"url,omitempty"`
	Host            string `json:"host"`
	Port            int    `json:"port"`
	Database        string `json:"database"`
	Username        string `json:"username"`
	Password        string `json:"password"`
	SSLMode         string `json:"ssl_mode"`
	ApplicationName string `json:"application_name"`
	MaxConnections  int32  `json:"max_connections"`
	MinConnections  int32  `json:"min_connections"`
}

// RecorderConfig tunes session buffering.
type RecorderConfig struct {
	FlushThreshold      int  `json:"flush_threshold"`
	RetainFailedBatches bool `json:"retain_failed_batches"`
	MaxRetainedSamples  int  `json:"max_retained_samples"`
}

// RemoteConfig configures the monitoring endpoint used for heartbeats and updates.
type RemoteConfig struct {
	Enabled         bool     `json:"enabled"`
	ServerURL       string   `json:"server_url"`
	APIKey          string   `json:"api_key"`
	Interval        Duration `json:"interval"`
	UpdateEvery     int      `json:"update_every"`
	RequestTimeout  Duration `json:"request_timeout"`
	DownloadTimeout Duration `json:"download_timeout"`
}

// UpdateConfig controls self-update integrity checks.
type UpdateConfig struct {
	Enabled      bool   `json:"enabled"`
	MinSize      int64  `json:"min_size"`
	Signature    string `json:"signature,omitempty"`
	SettingsPath string `json:"settings_path,omitempty"`
}

// EventsConfig enables the NATS JetStream session feed.
type EventsConfig struct {
	Enabled bool   `json:"enabled"`
	NATSURL string `json:"nats_url"`
	Stream  string `json:"stream"`
	Subject string `json:"subject"`
}

// MetricsConfig enables OTLP metric export.
type MetricsConfig struct {
	Enabled        bool              `json:"enabled"`
	Endpoint       string            `json:"endpoint"`
	Insecure       bool              `json:"insecure"`
	TLS            *logger.TLSConfig `json:"tls,omitempty"`
	ExportInterval Duration          `json:"export_interval"`
}

// ApplyDefaults fills every zero value that has a documented default.
func (c *Config) ApplyDefaults() {
	if c.Logging == nil {
		c.Logging = logger.DefaultConfig()
	}

	if c.Device.TargetName == "" {
		c.Device.TargetName = DefaultTargetName
	}

	if c.Device.BaudRate == 0 {
		c.Device.BaudRate = DefaultBaudRate
	}

	if c.Device.ProbeWindow <= 0 {
		c.Device.ProbeWindow = Duration(DefaultProbeWindow)
	}

	c.Database.applyDefaults()

	if c.Recorder.FlushThreshold == 0 {
		c.Recorder.FlushThreshold = DefaultFlushThreshold
	}

	if c.Recorder.MaxRetainedSamples <= 0 {
		c.Recorder.MaxRetainedSamples = DefaultMaxRetainedSamples
	}

	if c.Remote.Interval <= 0 {
		c.Remote.Interval = Duration(DefaultHeartbeatInterval)
	}

	if c.Remote.UpdateEvery <= 0 {
		c.Remote.UpdateEvery = DefaultUpdateEvery
	}

	if c.Remote.RequestTimeout <= 0 {
		c.Remote.RequestTimeout = Duration(DefaultRequestTimeout)
	}

	if c.Remote.DownloadTimeout <= 0 {
		c.Remote.DownloadTimeout = Duration(DefaultDownloadTimeout)
	}

	if c.Update.MinSize <= 0 {
		c.Update.MinSize = DefaultMinUpdateSize
	}

	if c.Update.SettingsPath == "" {
		c.Update.SettingsPath = DefaultSettingsFile
	}

	if c.Events.Stream == "" {
		c.Events.Stream = DefaultEventsStream
	}

	if c.Events.Subject == "" {
		c.Events.Subject = DefaultEventsSubject
	}
}

func (c *DatabaseConfig) applyDefaults() {
	if c.URL != "" {
		return
	}

	if c.Host == "" {
		c.Host = DefaultDatabaseHost
	}

	if c.Port == 0 {
		c.Port = DefaultDatabasePort
	}

	if c.Database == "" {
		c.Database = DefaultDatabaseName
	}

	if c.SSLMode == "" {
		c.SSLMode = DefaultSSLMode
	}

	if c.ApplicationName == "" {
		c.ApplicationName = "forceplate"
	}

	if c.MaxConnections <= 0 {
		c.MaxConnections = DefaultMaxConnections
	}
}

// Validate implements config.Validator.
func (c *Config) Validate() error {
	c.ApplyDefaults()

	if c.Device.BaudRate < 0 {
		return errInvalidBaudRate
	}

	if c.Recorder.FlushThreshold < 0 {
		return errInvalidFlush
	}

	if c.Database.URL == "" && c.Database.Host == "" {
		return errMissingDatabaseHost
	}

	if c.Remote.Enabled {
		if c.Remote.ServerURL == "" {
			return errMissingServerURL
		}

		u, err := url.Parse(c.Remote.ServerURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%w: %q", errInvalidServerURL, c.Remote.ServerURL)
		}
	}

	if c.Events.Enabled && c.Events.NATSURL == "" {
		return errMissingNATSURL
	}

	if c.Metrics.Enabled && c.Metrics.Endpoint == "" {
		return errMissingOTelEndpoint
	}

	return nil
}
