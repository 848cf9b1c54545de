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

package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetBuildNumber(t *testing.T) {
	orig := buildNumber
	t.Cleanup(func() { buildNumber = orig })

	tests := []struct {
		raw  string
		want int
	}{
		{raw: "0", want: 0},
		{raw: "4", want: 4},
		{raw: "-2", want: 0},
		{raw: "v4", want: 0},
	}

	for _, tt := range tests {
		buildNumber = tt.raw
		assert.Equal(t, tt.want, GetBuildNumber(), tt.raw)
		assert.Equal(t, tt.want == 0, IsDevelopment(), tt.raw)
	}
}
