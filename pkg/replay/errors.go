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

package replay

import "errors"

var (
	ErrEmptySession    = errors.New("session has no recorded samples")
	ErrNotLoaded       = errors.New("no session loaded")
	ErrFrameOutOfRange = errors.New("frame index out of range")
	ErrInvalidSpeed    = errors.New("speed multiplier must be positive")
)
