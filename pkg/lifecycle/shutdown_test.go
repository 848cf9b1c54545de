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

package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/forceplate/pkg/logger"
)

var errBoom = errors.New("boom")

func TestRunStepReturnsStepError(t *testing.T) {
	err := RunStep(context.Background(), "recorder", time.Second, func(context.Context) error {
		return errBoom
	})

	require.ErrorIs(t, err, errBoom)
	assert.Contains(t, err.Error(), "recorder")
}

func TestRunStepTimesOutHungStep(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	start := time.Now()
	err := RunStep(context.Background(), "link", 20*time.Millisecond, func(context.Context) error {
		<-release
		return nil
	})

	require.ErrorIs(t, err, ErrStepTimeout)
	assert.Less(t, time.Since(start), time.Second)
}

func TestShutdownContinuesAfterFailure(t *testing.T) {
	var order []string

	steps := []Step{
		{Name: "recorder", Run: func(context.Context) error {
			order = append(order, "recorder")
			return errBoom
		}},
		{Name: "agent", Run: func(context.Context) error {
			order = append(order, "agent")
			return nil
		}},
		{Name: "link", Run: func(context.Context) error {
			order = append(order, "link")
			return nil
		}},
	}

	err := Shutdown(context.Background(), logger.NewTestLogger(), time.Second, steps...)

	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, []string{"recorder", "agent", "link"}, order)
}
