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

// Package version carries the build identity injected at link time.
package version

import "strconv"

// Set with -ldflags "-X github.com/carverauto/forceplate/pkg/version.version=..."
//
//nolint:gochecknoglobals // ldflags targets
var (
	version     = "dev"
	buildID     = "unknown"
	buildNumber = "0"
)

// GetVersion returns the human readable release string.
func GetVersion() string {
	return version
}

// GetBuildID returns the current build ID
func GetBuildID() string {
	return buildID
}

// GetBuildNumber returns the integer build number compared against the
// update server's descriptor. Development and malformed builds report 0.
func GetBuildNumber() int {
	n, err := strconv.Atoi(buildNumber)
	if err != nil || n < 0 {
		return 0
	}

	return n
}

// IsDevelopment reports whether this binary was built without a build number.
func IsDevelopment() bool {
	return GetBuildNumber() == 0
}

// GetFullVersion returns version with build ID
func GetFullVersion() string {
	return version + " (build: " + buildID + ", #" + strconv.Itoa(GetBuildNumber()) + ")"
}
