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
	"fmt"
	"sort"
	"strings"
)

// PortKind orders discovery results.
type PortKind int

const (
	KindPlain PortKind = iota
	KindWireless
	KindTarget
)

func (k PortKind) String() string {
	switch k {
	case KindTarget:
		return "target"
	case KindWireless:
		return "wireless"
	case KindPlain:
		return "plain"
	default:
		return "unknown"
	}
}

// Probed reports whether connecting to this kind goes through probing.
func (k PortKind) Probed() bool {
	return k == KindTarget || k == KindWireless
}

// PortInfo describes one discovered transport.
type PortInfo struct {
	Name         string   `json:"name"`
	Description  string   `json:"description,omitempty"`
	Kind         PortKind `json:"kind"`
	IsUSB        bool     `json:"is_usb"`
	VID          string   `json:"vid,omitempty"`
	PID          string   `json:"pid,omitempty"`
	SerialNumber string   `json:"serial_number,omitempty"`
}

// Label is the human readable form shown in port pickers.
func (p PortInfo) Label(targetName string) string {
	prefix := ""

	switch p.Kind {
	case KindTarget:
		prefix = "[" + targetName + "] "
	case KindWireless:
		prefix = "[BT] "
	case KindPlain:
	}

	if p.Description == "" {
		return prefix + p.Name
	}

	return fmt.Sprintf("%s%s  --  %s", prefix, p.Name, p.Description)
}

var wirelessMarkers = []string{"bluetooth", "standard serial", "rfcomm", "bth"}

// classify matches the target identity against name, description and serial
// number, then falls back to wireless markers.
func classify(p PortInfo, targetName string) PortKind {
	target := strings.ToLower(targetName)
	name := strings.ToLower(p.Name)
	desc := strings.ToLower(p.Description)
	serial := strings.ToLower(p.SerialNumber)

	if target != "" && (strings.Contains(name, target) || strings.Contains(desc, target) || strings.Contains(serial, target)) {
		return KindTarget
	}

	for _, marker := range wirelessMarkers {
		if strings.Contains(desc, marker) || strings.Contains(name, marker) {
			return KindWireless
		}
	}

	return KindPlain
}

// sortPorts orders target ports first, then wireless, then by name.
func sortPorts(ports []PortInfo) {
	sort.SliceStable(ports, func(i, j int) bool {
		if ports[i].Kind != ports[j].Kind {
			return ports[i].Kind > ports[j].Kind
		}

		return ports[i].Name < ports[j].Name
	})
}
