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

import "time"

// Loads holds the four corner readings in grams, ordered
// top-right, top-left, bottom-right, bottom-left (w0..w3).
type Loads [4]float64

// Total sums the loads in sensor order.
func (l Loads) Total() float64 {
	return l[0] + l[1] + l[2] + l[3]
}

// CoM is a center-of-mass position expressed as ratios in [-1, 1].
type CoM struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// XPercent returns the horizontal position as a percentage of the half width.
func (c CoM) XPercent() float64 { return c.X * 100 }

// YPercent returns the vertical position as a percentage of the half height.
func (c CoM) YPercent() float64 { return c.Y * 100 }

// RecordedSample is one persisted reading within a session.
type RecordedSample struct {
	OffsetMs int64 `json:"t_ms"`
	Loads    Loads `json:"loads"`
	CoM      CoM   `json:"com"`
}

// User owns sessions.
type User struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Platform is a physical board with its dimensions.
type Platform struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	WidthCm  float64 `json:"width_cm"`
	HeightCm float64 `json:"height_cm"`
}

// Session is a recording tied to a user and a platform. EndedAt stays nil
// until the session is finalized.
type Session struct {
	ID           int64      `json:"id"`
	UserID       int64      `json:"user_id"`
	PlatformID   int64      `json:"platform_id"`
	UserName     string     `json:"user_name,omitempty"`
	PlatformName string     `json:"platform_name,omitempty"`
	WidthCm      float64    `json:"width_cm,omitempty"`
	HeightCm     float64    `json:"height_cm,omitempty"`
	StartedAt    time.Time  `json:"started_at"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`
	DurationSec  float64    `json:"duration_sec"`
	SampleCount  int        `json:"sample_count"`
}

// Finalized reports whether the session has been stopped.
func (s *Session) Finalized() bool {
	return s.EndedAt != nil
}

// SessionFilter narrows ListSessions. Zero fields do not filter.
type SessionFilter struct {
	UserID     int64
	PlatformID int64
	Limit      int
}

// UsageBreakdown aggregates sessions for one user or platform.
type UsageBreakdown struct {
	Name        string  `json:"name"`
	Sessions    int     `json:"sessions"`
	Samples     int64   `json:"samples"`
	DurationSec float64 `json:"duration_sec"`
}

// RecentSession is the short session form carried by heartbeats.
type RecentSession struct {
	ID           int64     `json:"id"`
	StartedAt    time.Time `json:"started_at"`
	DurationSec  float64   `json:"duration_sec"`
	SampleCount  int       `json:"sample_count"`
	UserName     string    `json:"user_name"`
	PlatformName string    `json:"platform_name"`
}

// Stats is the aggregate usage snapshot reported to the monitoring endpoint.
type Stats struct {
	UserCount        int              `json:"user_count"`
	PlatformCount    int              `json:"platform_count"`
	SessionCount     int              `json:"session_count"`
	SampleCount      int64            `json:"sample_count"`
	TotalDurationSec float64          `json:"total_duration_sec"`
	Users            []UsageBreakdown `json:"users"`
	Platforms        []UsageBreakdown `json:"platforms"`
	RecentSessions   []RecentSession  `json:"recent_sessions"`
}
