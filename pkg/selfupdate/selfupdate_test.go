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
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/forceplate/pkg/logger"
	"github.com/carverauto/forceplate/pkg/models"
)

var errInstall = errors.New("install refused")

func payload(sig []byte, size int) []byte {
	data := bytes.Repeat([]byte{0x90}, size)
	copy(data, sig)

	return data
}

func TestVerify(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		goos    string
		wantErr error
	}{
		{name: "elf ok", data: payload(sigELF, 100000), goos: "linux"},
		{name: "pe ok", data: payload(sigPE, 200000), goos: "windows"},
		{name: "macho ok", data: payload([]byte{0xcf, 0xfa, 0xed, 0xfe}, 100000), goos: "darwin"},
		{name: "too small", data: payload(sigELF, 99999), goos: "linux", wantErr: ErrUpdateTooSmall},
		{name: "wrong signature", data: payload(sigPE, 100000), goos: "linux", wantErr: ErrBadSignature},
		{name: "html error page", data: payload([]byte("<html>"), 150000), goos: "windows", wantErr: ErrBadSignature},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Verify(tt.data, models.DefaultMinUpdateSize, Signatures(tt.goos))
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}

			require.ErrorIs(t, err, tt.wantErr)
			require.ErrorIs(t, err, ErrUpdateIntegrity)
		})
	}
}

type fakeApplier struct {
	installErr error
	installs   [][2]string
	restarts   int
}

func (f *fakeApplier) Install(exe, staged string) error {
	f.installs = append(f.installs, [2]string{exe, staged})
	return f.installErr
}

func (f *fakeApplier) Restart(string, []string) error {
	f.restarts++
	return nil
}

func newTestUpdater(t *testing.T, applier Applier) (*Updater, string) {
	t.Helper()

	exe := filepath.Join(t.TempDir(), "forceplate")
	require.NoError(t, os.WriteFile(exe, []byte("old"), 0o600))

	u, err := NewUpdater(&models.UpdateConfig{MinSize: 16, Signature: "\x7fELF"}, logger.NewTestLogger(),
		WithApplier(applier), WithExecutable(exe))
	require.NoError(t, err)

	return u, exe
}

func TestUpdater_RejectsInvalidPayloadWithoutStaging(t *testing.T) {
	applier := &fakeApplier{}
	u, exe := newTestUpdater(t, applier)

	err := u.Apply(payload(sigPE, 64))
	require.ErrorIs(t, err, ErrBadSignature)

	_, statErr := os.Stat(exe + stagedSuffix)
	assert.True(t, os.IsNotExist(statErr))
	assert.Empty(t, applier.installs)
	assert.False(t, u.Pending())
	require.ErrorIs(t, u.Restart(nil), ErrNothingStaged)
}

func TestUpdater_RemovesStagedFileOnInstallFailure(t *testing.T) {
	applier := &fakeApplier{installErr: errInstall}
	u, exe := newTestUpdater(t, applier)

	err := u.Apply(payload(sigELF, 64))
	require.ErrorIs(t, err, errInstall)

	require.Len(t, applier.installs, 1)
	assert.Equal(t, [2]string{exe, exe + stagedSuffix}, applier.installs[0])

	_, statErr := os.Stat(exe + stagedSuffix)
	assert.True(t, os.IsNotExist(statErr))
	assert.False(t, u.Pending())
}

func TestUpdater_StagesAndRestarts(t *testing.T) {
	applier := &fakeApplier{}
	u, exe := newTestUpdater(t, applier)

	data := payload(sigELF, 64)
	require.NoError(t, u.Apply(data))

	staged, err := os.ReadFile(exe + stagedSuffix)
	require.NoError(t, err)
	assert.Equal(t, data, staged)
	assert.True(t, u.Pending())

	require.NoError(t, u.Restart([]string{exe}))
	assert.Equal(t, 1, applier.restarts)
}

func TestRenameApplier_Install(t *testing.T) {
	dir := t.TempDir()
	exe := filepath.Join(dir, "forceplate")
	staged := exe + stagedSuffix

	require.NoError(t, os.WriteFile(exe, []byte("old"), 0o600))
	require.NoError(t, os.WriteFile(staged, []byte("new"), 0o600))

	require.NoError(t, NewRenameApplier(logger.NewTestLogger()).Install(exe, staged))

	got, err := os.ReadFile(exe)
	require.NoError(t, err)
	assert.Equal(t, "new", string(got))

	_, statErr := os.Stat(staged)
	assert.True(t, os.IsNotExist(statErr))
}

func TestHelperApplier_WritesScript(t *testing.T) {
	dir := t.TempDir()
	exe := filepath.Join(dir, "forceplate.exe")

	h := NewHelperApplier(logger.NewTestLogger())
	require.NoError(t, h.Install(exe, exe+stagedSuffix))

	script, err := os.ReadFile(filepath.Join(dir, helperScriptName))
	require.NoError(t, err)
	assert.Equal(t, helperScript(exe, exe+stagedSuffix), string(script))
}

func TestHelperScript(t *testing.T) {
	script := helperScript(`C:\fp\forceplate.exe`, `C:\fp\forceplate.exe.new`)

	lines := strings.Split(script, "\r\n")
	require.Greater(t, len(lines), 8)

	assert.Equal(t, "@echo off", lines[0])
	assert.Contains(t, script, ":retry")
	assert.Contains(t, script, `del /f /q "C:\fp\forceplate.exe"`)
	assert.Contains(t, script, "goto retry")
	assert.Contains(t, script, `move /y "C:\fp\forceplate.exe.new" "C:\fp\forceplate.exe"`)
	assert.Contains(t, script, `start "" "C:\fp\forceplate.exe"`)
	assert.Contains(t, script, `del "%~f0"`)

	assert.Less(t, strings.Index(script, "goto retry"), strings.Index(script, "move /y"))
	assert.Less(t, strings.Index(script, "move /y"), strings.Index(script, "start \"\""))
}
