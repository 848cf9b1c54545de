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

// Package selfupdate verifies a downloaded controller binary and swaps it
// in for the running one.
package selfupdate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/carverauto/forceplate/pkg/logger"
	"github.com/carverauto/forceplate/pkg/models"
)

const stagedSuffix = ".new"

// Applier puts a staged binary in place of the running executable.
type Applier interface {
	// Install replaces exe with staged, or arranges for it to be replaced
	// once the process exits.
	Install(exe, staged string) error
	// Restart relaunches exe. On success it may never return.
	Restart(exe string, args []string) error
}

// Updater stages verified binaries next to the running executable.
type Updater struct {
	applier    Applier
	exe        string
	minSize    int64
	signatures [][]byte
	logger     logger.Logger

	mu        sync.Mutex
	installed bool
}

// Option configures an Updater.
type Option func(*Updater)

// WithApplier overrides the platform strategy.
func WithApplier(a Applier) Option {
	return func(u *Updater) {
		u.applier = a
	}
}

// WithExecutable overrides the path of the binary being replaced.
func WithExecutable(path string) Option {
	return func(u *Updater) {
		u.exe = path
	}
}

// NewUpdater resolves the running executable and the platform applier.
func NewUpdater(cfg *models.UpdateConfig, log logger.Logger, opts ...Option) (*Updater, error) {
	u := &Updater{
		minSize:    models.DefaultMinUpdateSize,
		signatures: Signatures(runtime.GOOS),
		logger:     log,
	}

	if cfg != nil {
		if cfg.MinSize > 0 {
			u.minSize = cfg.MinSize
		}

		if cfg.Signature != "" {
			u.signatures = [][]byte{[]byte(cfg.Signature)}
		}
	}

	for _, opt := range opts {
		opt(u)
	}

	if u.exe == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("locate executable: %w", err)
		}

		if resolved, err := filepath.EvalSymlinks(exe); err == nil {
			exe = resolved
		}

		u.exe = exe
	}

	if u.applier == nil {
		u.applier = NewApplier(log)
	}

	return u, nil
}

// Executable returns the path being replaced.
func (u *Updater) Executable() string {
	return u.exe
}

// Apply verifies data, writes it as <exe>.new and installs it. The staged
// file is removed when any step fails.
func (u *Updater) Apply(data []byte) (err error) {
	if err := Verify(data, u.minSize, u.signatures); err != nil {
		return err
	}

	staged := u.exe + stagedSuffix

	defer func() {
		if err != nil {
			if rmErr := os.Remove(staged); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
				u.logger.Warn().Err(rmErr).Str("path", staged).Msg("Failed to remove staged update")
			}
		}
	}()

	if err = os.WriteFile(staged, data, 0o755); err != nil { //nolint:gosec // executable must stay runnable
		return fmt.Errorf("write staged update: %w", err)
	}

	if err = u.applier.Install(u.exe, staged); err != nil {
		return fmt.Errorf("install update: %w", err)
	}

	u.mu.Lock()
	u.installed = true
	u.mu.Unlock()

	u.logger.Info().Str("executable", u.exe).Int("bytes", len(data)).Msg("Update staged")

	return nil
}

// Pending reports whether an update waits for Restart.
func (u *Updater) Pending() bool {
	u.mu.Lock()
	defer u.mu.Unlock()

	return u.installed
}

// Restart hands off to the new binary. Call it after shutdown completes.
func (u *Updater) Restart(args []string) error {
	if !u.Pending() {
		return ErrNothingStaged
	}

	return u.applier.Restart(u.exe, args)
}
