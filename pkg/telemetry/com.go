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

import "github.com/carverauto/forceplate/pkg/models"

// NearZeroThreshold is the per-sensor load in grams below which a reading
// counts as unloaded.
const NearZeroThreshold = 50.0

// CenterOfMass derives the normalized center of mass from four corner loads.
// An unloaded board, or a total of one gram or less, yields the centre (0, 0).
// Negative loads are treated as zero.
func CenterOfMass(loads models.Loads) models.CoM {
	w := clip(loads)
	total := w[0] + w[1] + w[2] + w[3]

	if total <= 1 || allBelow(w, NearZeroThreshold) {
		return models.CoM{}
	}

	return models.CoM{
		X: (w[0] + w[2] - w[1] - w[3]) / total,
		Y: (w[2] + w[3] - w[0] - w[1]) / total,
	}
}

func clip(loads models.Loads) models.Loads {
	for i, v := range loads {
		if v < 0 {
			loads[i] = 0
		}
	}

	return loads
}

func allBelow(w models.Loads, threshold float64) bool {
	for _, v := range w {
		if v >= threshold {
			return false
		}
	}

	return true
}
