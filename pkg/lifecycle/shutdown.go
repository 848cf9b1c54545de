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
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/carverauto/forceplate/pkg/logger"
)

const DefaultStepTimeout = 5 * time.Second

var ErrStepTimeout = errors.New("shutdown step timed out")

// Step is one unit of teardown work.
type Step struct {
	Name string
	Run  func(ctx context.Context) error
}

// RunStep executes fn with its own deadline. A step that does not return in
// time is abandoned and reported as ErrStepTimeout so the caller can move on.
func RunStep(ctx context.Context, name string, timeout time.Duration, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		timeout = DefaultStepTimeout
	}

	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)

	go func() {
		done <- fn(stepCtx)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}

		return nil
	case <-stepCtx.Done():
		return fmt.Errorf("%s: %w", name, ErrStepTimeout)
	}
}

// Shutdown runs every step in order, each bounded by timeout, and keeps
// going after failures. The joined error of all failed steps is returned.
func Shutdown(ctx context.Context, log logger.Logger, timeout time.Duration, steps ...Step) error {
	var errs []error

	for _, step := range steps {
		if err := RunStep(ctx, step.Name, timeout, step.Run); err != nil {
			log.Warn().Err(err).Str("step", step.Name).Msg("Shutdown step failed")
			errs = append(errs, err)

			continue
		}

		log.Debug().Str("step", step.Name).Msg("Shutdown step complete")
	}

	return errors.Join(errs...)
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
