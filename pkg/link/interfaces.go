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
	"io"
	"time"
)

// Port is an open serial transport. A Read that times out returns (0, nil).
type Port interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
}

// Opener opens a transport by device name at a data rate.
type Opener interface {
	Open(name string, baud int) (Port, error)
}

// Enumerator lists the transports present on the host. Kind is left unset;
// the Manager classifies each entry.
type Enumerator interface {
	Ports() ([]PortInfo, error)
}

// LineHandler receives every complete line read from the device. A non-nil
// error marks the line as discarded.
type LineHandler func(line []byte, receivedAt time.Time) error
