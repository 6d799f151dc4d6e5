package klass

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeName trims a registry name and puts it in NFC so that names
// decoded from different sources compare equal.
func NormalizeName(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// NormalizeCode trims surrounding whitespace from a code.
func NormalizeCode(s string) string {
	return strings.TrimSpace(s)
}
