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

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/carverauto/forceplate/pkg/models"
)

func TestCenterOfMass(t *testing.T) {
	tests := []struct {
		name  string
		loads models.Loads
		want  models.CoM
	}{
		{name: "unloaded", loads: models.Loads{0, 0, 0, 0}, want: models.CoM{}},
		{name: "all below threshold", loads: models.Loads{49, 49.9, 10, 0}, want: models.CoM{}},
		{name: "balanced", loads: models.Loads{1000, 1000, 1000, 1000}, want: models.CoM{}},
		{name: "top right only", loads: models.Loads{2000, 0, 0, 0}, want: models.CoM{X: 1, Y: -1}},
		{name: "bottom left only", loads: models.Loads{0, 0, 0, 2000}, want: models.CoM{X: -1, Y: 1}},
		{name: "right side", loads: models.Loads{500, 0, 500, 0}, want: models.CoM{X: 1, Y: 0}},
		{name: "one sensor at threshold", loads: models.Loads{50, 0, 0, 0}, want: models.CoM{X: 1, Y: -1}},
		{name: "negative clipped", loads: models.Loads{-300, 0, 600, 0}, want: models.CoM{X: 1, Y: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CenterOfMass(tt.loads)

			assert.InDelta(t, tt.want.X, got.X, 1e-12)
			assert.InDelta(t, tt.want.Y, got.Y, 1e-12)
		})
	}
}

func TestCenterOfMassBoundedAndIdempotent(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 10000; i++ {
		loads := models.Loads{
			rng.Float64() * 80000,
			rng.Float64() * 80000,
			rng.Float64() * 80000,
			rng.Float64() * 80000,
		}

		first := CenterOfMass(loads)
		second := CenterOfMass(loads)

		assert.Equal(t, first, second)
		assert.GreaterOrEqual(t, first.X, -1.0)
		assert.LessOrEqual(t, first.X, 1.0)
		assert.GreaterOrEqual(t, first.Y, -1.0)
		assert.LessOrEqual(t, first.Y, 1.0)
	}
}

func TestCenterOfMassMatchesSumOrder(t *testing.T) {
	loads := models.Loads{1234.5, 678.25, 90.125, 4321}
	total := loads[0] + loads[1] + loads[2] + loads[3]

	got := CenterOfMass(loads)

	assert.Equal(t, (loads[0]+loads[2]-loads[1]-loads[3])/total, got.X)
	assert.Equal(t, (loads[2]+loads[3]-loads[0]-loads[1])/total, got.Y)
}
