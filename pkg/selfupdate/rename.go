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
	"fmt"
	"os"

	"github.com/carverauto/forceplate/pkg/logger"
)

// RenameApplier renames the staged file over the running executable and
// re-executes it in place.
type RenameApplier struct {
	logger logger.Logger
}

// NewRenameApplier returns the in-place strategy.
func NewRenameApplier(log logger.Logger) *RenameApplier {
	return &RenameApplier{logger: log}
}

// Install atomically replaces exe; the running process keeps its old inode.
func (r *RenameApplier) Install(exe, staged string) error {
	if err := os.Chmod(staged, 0o755); err != nil { //nolint:gosec // executable must stay runnable
		return fmt.Errorf("chmod staged update: %w", err)
	}

	if err := os.Rename(staged, exe); err != nil {
		return fmt.Errorf("rename staged update: %w", err)
	}

	return nil
}

// Restart replaces the current process image with exe.
func (r *RenameApplier) Restart(exe string, args []string) error {
	r.logger.Info().Str("executable", exe).Msg("Re-executing updated binary")

	return reexec(exe, args, os.Environ())
}
