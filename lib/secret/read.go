// Copyright 2026 The Gantry Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

// ReadFromPath reads secret material from a file into a protected
// buffer. If path is "-", the secret is read from stdin instead, which
// lets operators pipe secrets from a manager without touching disk.
//
// Trailing whitespace (including the newline most editors and echo
// append) is stripped. Intermediate heap copies are zeroed before
// returning.
func ReadFromPath(path string) (*Buffer, error) {
	var raw []byte
	var err error

	if path == "-" {
		raw, err = io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("secret: reading from stdin: %w", err)
		}
	} else {
		raw, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("secret: reading %s: %w", path, err)
		}
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		Zero(raw)
		return nil, fmt.Errorf("secret: %s is empty", describeSource(path))
	}

	buffer, err := New(len(trimmed))
	if err != nil {
		Zero(raw)
		return nil, err
	}
	copy(buffer.Bytes(), trimmed)

	// trimmed aliases raw, so zeroing raw covers both.
	Zero(raw)

	return buffer, nil
}

func describeSource(path string) string {
	if path == "-" {
		return "stdin"
	}
	return path
}
