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
	"fmt"
)

//nolint:gochecknoglobals // read-only magic numbers
var (
	sigPE    = []byte("MZ")
	sigELF   = []byte("\x7fELF")
	sigMachO = [][]byte{
		{0xfe, 0xed, 0xfa, 0xce},
		{0xfe, 0xed, 0xfa, 0xcf},
		{0xce, 0xfa, 0xed, 0xfe},
		{0xcf, 0xfa, 0xed, 0xfe},
		{0xca, 0xfe, 0xba, 0xbe},
	}
)

// Signatures returns the accepted leading bytes of an executable for goos.
func Signatures(goos string) [][]byte {
	switch goos {
	case "windows":
		return [][]byte{sigPE}
	case "darwin", "ios":
		return sigMachO
	default:
		return [][]byte{sigELF}
	}
}

// Verify checks the size and leading signature of a downloaded binary.
func Verify(data []byte, minSize int64, signatures [][]byte) error {
	if int64(len(data)) < minSize {
		return fmt.Errorf("%w: %d < %d bytes", ErrUpdateTooSmall, len(data), minSize)
	}

	for _, sig := range signatures {
		if bytes.HasPrefix(data, sig) {
			return nil
		}
	}

	head := data
	if len(head) > 4 {
		head = head[:4]
	}

	return fmt.Errorf("%w: leading bytes %x", ErrBadSignature, head)
}
