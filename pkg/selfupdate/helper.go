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
	"path/filepath"
	"strings"

	"github.com/carverauto/forceplate/pkg/logger"
)

const helperScriptName = "forceplate_update.bat"

// HelperApplier swaps the binary from a detached batch script, for
// platforms that lock a running executable.
type HelperApplier struct {
	logger logger.Logger
	script string
}

// NewHelperApplier returns a batch-helper strategy.
func NewHelperApplier(log logger.Logger) *HelperApplier {
	return &HelperApplier{logger: log}
}

// Install writes the helper script next to exe. Nothing is swapped until
// Restart launches it.
func (h *HelperApplier) Install(exe, staged string) error {
	script := filepath.Join(filepath.Dir(exe), helperScriptName)

	if err := os.WriteFile(script, []byte(helperScript(exe, staged)), 0o600); err != nil {
		return fmt.Errorf("write update helper: %w", err)
	}

	h.script = script

	return nil
}

// Restart launches the helper detached and returns; the caller must exit so
// the helper can delete the running binary.
func (h *HelperApplier) Restart(exe string, _ []string) error {
	if h.script == "" {
		return ErrNothingStaged
	}

	if err := startDetached(h.script); err != nil {
		return fmt.Errorf("launch update helper: %w", err)
	}

	h.logger.Info().Str("executable", exe).Str("helper", h.script).Msg("Update helper launched")

	return nil
}

// helperScript waits for the parent to exit, retries the delete until the
// binary is unlocked, moves the staged file into place, relaunches it and
// removes itself.
func helperScript(exe, staged string) string {
	var b strings.Builder

	b.WriteString("@echo off\r\n")
	b.WriteString("timeout /t 2 /nobreak >nul\r\n")
	b.WriteString(":retry\r\n")
	fmt.Fprintf(&b, "del /f /q \"%s\" >nul 2>&1\r\n", exe)
	fmt.Fprintf(&b, "if exist \"%s\" (\r\n", exe)
	b.WriteString("    timeout /t 1 /nobreak >nul\r\n")
	b.WriteString("    goto retry\r\n")
	b.WriteString(")\r\n")
	fmt.Fprintf(&b, "move /y \"%s\" \"%s\" >nul\r\n", staged, exe)
	fmt.Fprintf(&b, "start \"\" \"%s\"\r\n", exe)
	b.WriteString("(goto) 2>nul & del \"%~f0\"\r\n")

	return b.String()
}
