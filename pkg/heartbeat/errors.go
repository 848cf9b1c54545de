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

import "errors"

var (
	// ErrNetwork marks any failed exchange with the monitoring server.
	ErrNetwork = errors.New("network error")

	ErrMissingServerURL = errors.New("remote server url is not configured")
	errInvalidVersion   = errors.New("version is neither a number nor a numeric string")
	errDownloadTooLarge = errors.New("download exceeds size limit")
)
