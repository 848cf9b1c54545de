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
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v3/host"

	"github.com/carverauto/forceplate/pkg/logger"
)

const appIDLength = 12

// Identity names this installation to the monitoring server.
type Identity struct {
	AppID    string
	AppName  string
	Hostname string
	OS       string
}

// LoadIdentity reads app_id and app_name from the settings file, creating
// and persisting an app_id on first use. Unknown keys in the file are kept.
func LoadIdentity(ctx context.Context, settingsPath string, log logger.Logger) (Identity, error) {
	id := hostIdentity(ctx, log)

	settings := map[string]any{}

	raw, err := os.ReadFile(settingsPath)

	switch {
	case err == nil:
		if jsonErr := json.Unmarshal(raw, &settings); jsonErr != nil {
			log.Warn().Err(jsonErr).Str("path", settingsPath).Msg("Ignoring unreadable settings file")

			settings = map[string]any{}
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return Identity{}, fmt.Errorf("read settings: %w", err)
	}

	if name, ok := settings["app_name"].(string); ok && strings.TrimSpace(name) != "" {
		id.AppName = name
	} else {
		id.AppName = id.Hostname
	}

	if appID, ok := settings["app_id"].(string); ok && appID != "" {
		id.AppID = appID
		return id, nil
	}

	id.AppID = newAppID()
	settings["app_id"] = id.AppID

	if err := saveSettings(settingsPath, settings); err != nil {
		return id, err
	}

	log.Info().Str("app_id", id.AppID).Str("path", settingsPath).Msg("Generated installation id")

	return id, nil
}

// SettingsPath resolves name relative to the running executable unless it
// is already absolute.
func SettingsPath(name string) string {
	if filepath.IsAbs(name) {
		return name
	}

	exe, err := os.Executable()
	if err != nil {
		return name
	}

	return filepath.Join(filepath.Dir(exe), name)
}

func newAppID() string {
	return uuid.NewString()[:appIDLength]
}

func saveSettings(path string, settings map[string]any) error {
	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

func hostIdentity(ctx context.Context, log logger.Logger) Identity {
	id := Identity{OS: runtime.GOOS}

	info, err := host.InfoWithContext(ctx)
	if err != nil {
		log.Debug().Err(err).Msg("Host info unavailable")
	} else {
		id.Hostname = info.Hostname

		if osName := strings.TrimSpace(info.Platform + " " + info.PlatformVersion); osName != "" {
			id.OS = osName
		}
	}

	if id.Hostname == "" {
		if h, err := os.Hostname(); err == nil {
			id.Hostname = h
		}
	}

	return id
}
