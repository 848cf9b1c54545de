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

package selfupdate

import (
	"errors"
	"fmt"
)

var (
	// ErrUpdateIntegrity marks a downloaded binary that failed verification.
	ErrUpdateIntegrity = errors.New("update integrity check failed")

	ErrUpdateTooSmall = fmt.Errorf("%w: payload below minimum size", ErrUpdateIntegrity)
	ErrBadSignature   = fmt.Errorf("%w: unexpected executable signature", ErrUpdateIntegrity)

	ErrUnsupportedPlatform = errors.New("self-update restart not supported on this platform")
	ErrNothingStaged       = errors.New("no update staged")
)
