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

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// SerialOpener opens real serial ports with 8N1 framing.
type SerialOpener struct{}

var _ Opener = SerialOpener{}

// Open implements Opener.
func (SerialOpener) Open(name string, baud int) (Port, error) {
	p, err := serial.Open(name, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrTransport, name, err)
	}

	return p, nil
}

// SerialEnumerator lists ports through the OS enumerator, including USB
// product strings where the platform exposes them.
type SerialEnumerator struct{}

var _ Enumerator = SerialEnumerator{}

// Ports implements Enumerator.
func (SerialEnumerator) Ports() ([]PortInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("%w: enumerate ports: %w", ErrTransport, err)
	}

	out := make([]PortInfo, 0, len(details))

	for _, d := range details {
		out = append(out, PortInfo{
			Name:         d.Name,
			Description:  d.Product,
			IsUSB:        d.IsUSB,
			VID:          d.VID,
			PID:          d.PID,
			SerialNumber: d.SerialNumber,
		})
	}

	return out, nil
}
