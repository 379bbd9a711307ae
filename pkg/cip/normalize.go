// Package cip canonicalizes CIP program codes into the NN.NNNN form.
package cip

import (
	"regexp"
	"strings"
)

// codePattern matches a two-digit family, a dot, and up to four detail digits.
var codePattern = regexp.MustCompile(`^(\d{2})\.(\d{1,4})`)

// Normalize converts a raw CIP code into NN.NNNN form.
//
// Examples:
//   - "512001"  -> "51.2001"
//   - "51.2"    -> "51.2000"
//   - "=51.20"  -> "51.2000"
//
// Input that cannot be shaped into a code is returned with every character
// other than digits and dots stripped. It never matches a real code.
func Normalize(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()

	// Run-together codes such as 512001 lose their dot in some exports
	if !strings.Contains(cleaned, ".") && len(cleaned) >= 4 {
		cleaned = cleaned[:2] + "." + cleaned[2:]
	}

	m := codePattern.FindStringSubmatch(cleaned)
	if m == nil {
		return cleaned
	}

	frac := m[2] + strings.Repeat("0", 4-len(m[2]))
	return m[1] + "." + frac[:4]
}
