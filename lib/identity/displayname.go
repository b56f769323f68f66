// Copyright 2026 The Gantry Authors
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"fmt"
	"strings"
)

// namePlaceholder is the token in a displayname template that the
// observed remote name replaces.
const namePlaceholder = "{name}"

// ellipsis terminates truncated display names.
const ellipsis = "…"

// DisplayNameFormatter renders the Matrix display name a ghost should
// carry for an observed remote profile name. Like the codec it is
// built once from configuration and is immutable.
type DisplayNameFormatter struct {
	prefix string
	suffix string

	// maxLength caps the rendered name in runes; 0 means no cap.
	// Remote networks do not bound profile names, homeservers do.
	maxLength int
}

// NewDisplayNameFormatter builds a formatter from a displayname
// template (e.g. "{name} (LINE)") and an optional rune cap. The
// template must contain the {name} placeholder exactly once.
func NewDisplayNameFormatter(template string, maxLength int) (*DisplayNameFormatter, error) {
	prefix, suffix, found := strings.Cut(template, namePlaceholder)
	if !found {
		return nil, fmt.Errorf("identity: displayname template %q does not contain %s", template, namePlaceholder)
	}
	if strings.Contains(suffix, namePlaceholder) {
		return nil, fmt.Errorf("identity: displayname template %q contains %s more than once", template, namePlaceholder)
	}
	if maxLength < 0 {
		return nil, fmt.Errorf("identity: displayname max length %d is negative", maxLength)
	}
	return &DisplayNameFormatter{
		prefix:    prefix,
		suffix:    suffix,
		maxLength: maxLength,
	}, nil
}

// Format renders the display name for an observed remote name,
// truncating to the configured rune cap with a trailing ellipsis.
func (f *DisplayNameFormatter) Format(observedName string) string {
	name := f.prefix + observedName + f.suffix
	if f.maxLength == 0 {
		return name
	}
	runes := []rune(name)
	if len(runes) <= f.maxLength {
		return name
	}
	return string(runes[:f.maxLength-1]) + ellipsis
}
