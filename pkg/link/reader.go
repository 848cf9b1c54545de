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

package link

import (
	"bytes"
	"io"
)

const (
	maxLineLength = 4096
	readChunkSize = 512
)

// lineReader splits a serial stream into newline-terminated lines. Unlike
// bufio it tolerates reads that time out with (0, nil), surfacing them as
// errReadTimeout so callers can check deadlines between reads.
type lineReader struct {
	r          io.Reader
	buf        []byte
	chunk      []byte
	discarding bool
}

func newLineReader(r io.Reader) *lineReader {
	return &lineReader{
		r:     r,
		buf:   make([]byte, 0, readChunkSize),
		chunk: make([]byte, readChunkSize),
	}
}

// ReadLine returns the next line without its terminator and surrounding
// whitespace. Lines longer than maxLineLength are dropped whole.
func (lr *lineReader) ReadLine() ([]byte, error) {
	for {
		if i := bytes.IndexByte(lr.buf, '\n'); i >= 0 {
			line := bytes.TrimSpace(lr.buf[:i])
			out := make([]byte, len(line))
			copy(out, line)

			lr.buf = lr.buf[:copy(lr.buf, lr.buf[i+1:])]

			if lr.discarding {
				lr.discarding = false
				return nil, errLineTooLong
			}

			return out, nil
		}

		if len(lr.buf) > maxLineLength {
			lr.buf = lr.buf[:0]
			lr.discarding = true
		}

		n, err := lr.r.Read(lr.chunk)
		if n > 0 {
			lr.buf = append(lr.buf, lr.chunk[:n]...)
			continue
		}

		if err != nil {
			return nil, err
		}

		return nil, errReadTimeout
	}
}
