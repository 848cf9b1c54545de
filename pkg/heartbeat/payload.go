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
	"time"

	"github.com/carverauto/forceplate/pkg/models"
)

const (
	StatusOnline  = "online"
	StatusOffline = "offline"

	timestampLayout = "2006-01-02 15:04:05"
)

// Payload is the heartbeat body. Stats fields are inlined at the top level.
type Payload struct {
	AppID       string `json:"app_id"`
	AppName     string `json:"app_name"`
	AppVersion  int    `json:"app_version"`
	Hostname    string `json:"hostname"`
	OS          string `json:"os"`
	Status      string `json:"status"`
	IsRecording bool   `json:"is_recording"`
	Connected   bool   `json:"connected"`
	Timestamp   string `json:"timestamp"`

	models.Stats
}

// BuildPayload assembles a heartbeat. A nil stats snapshot reports zeros.
func BuildPayload(id Identity, appVersion int, status string, recording, connected bool, stats *models.Stats, now time.Time) *Payload {
	p := &Payload{
		AppID:       id.AppID,
		AppName:     id.AppName,
		AppVersion:  appVersion,
		Hostname:    id.Hostname,
		OS:          id.OS,
		Status:      status,
		IsRecording: recording,
		Connected:   connected,
		Timestamp:   now.Local().Format(timestampLayout),
	}

	if stats != nil {
		p.Stats = *stats
	}

	if p.Users == nil {
		p.Users = []models.UsageBreakdown{}
	}

	if p.Platforms == nil {
		p.Platforms = []models.UsageBreakdown{}
	}

	if p.RecentSessions == nil {
		p.RecentSessions = []models.RecentSession{}
	}

	return p
}
