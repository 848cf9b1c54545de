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

import "errors"

var (
	// ErrTransport wraps every open, read and write failure of the device link.
	ErrTransport = errors.New("transport error")

	ErrNoCandidate = errors.New("no candidate answered within the probe window")
	ErrInvalidRate = errors.New("baud rate must be positive")
	errReadTimeout = errors.New("read timeout")
	errLineTooLong = errors.New("line exceeds maximum length")
)
