// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package fsutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// diacriticStripper decomposes runes and drops combining marks, so that
// e.g. "Réunion" slugifies to "reunion" instead of dropping the letter
// outright.
var diacriticStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Slugify reduces name to a filesystem-safe, lowercase token: diacritics
// are stripped, the result is lowercased, and every byte outside
// [a-z0-9-_] becomes "-", with runs of "-" collapsed. An empty result
// falls back to fallbackID, so a name that slugifies to nothing still
// yields a unique, stable token.
func Slugify(name, fallbackID string) string {
	stripped, _, err := transform.String(diacriticStripper, name)
	if err != nil {
		stripped = name
	}
	stripped = strings.ToLower(stripped)

	var b strings.Builder
	lastDash := false
	for _, r := range stripped {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}

	out := strings.Trim(b.String(), "-")
	if out == "" {
		return fallbackID
	}
	return out
}
