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

package recorder

import (
	"errors"
	"fmt"
)

var (
	// ErrPersistence marks a storage failure while flushing or finalizing.
	ErrPersistence = errors.New("persistence error")
	// ErrUserInput marks a request the operator has to correct.
	ErrUserInput = errors.New("invalid recording request")

	ErrNoUserSelected     = fmt.Errorf("%w: no user selected", ErrUserInput)
	ErrNoPlatformSelected = fmt.Errorf("%w: no platform selected", ErrUserInput)
	ErrNoSession          = errors.New("no active session")
)
