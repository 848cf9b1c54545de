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

package telemetry

import "errors"

var (
	// ErrProtocol marks a device line that is not a recognised message.
	ErrProtocol = errors.New("protocol error")

	ErrMalformedJSON  = errors.New("malformed JSON")
	ErrUnknownMessage = errors.New("unknown message shape")
	ErrUnknownStatus  = errors.New("unknown status")
	ErrMissingField   = errors.New("missing field")
	ErrInvalidSensor  = errors.New("sensor index out of range")
	ErrInvalidWeight  = errors.New("calibration weight must be positive")
)

func protocolError(err error, detail string) error {
	if detail == "" {
		return errors.Join(ErrProtocol, err)
	}

	return errors.Join(ErrProtocol, err, errors.New(detail))
}
