// Package titleid parses and normalizes 16-hex-digit Switch title IDs.
//
// The low 13 bits of a title ID encode the variant (update or DLC index);
// the remaining bits identify the product family. Normalize clears the
// variant bits so every variant maps to the same base title ID, which is
// what cover art and storefront URLs are keyed on.
package titleid

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// BaseMask keeps the product family bits of a title ID.
const BaseMask uint64 = 0xFFFFFFFFFFFFE000

// Length is the number of hex digits in a rendered title ID.
const Length = 16

var pattern = regexp.MustCompile(`(?i)0100[0-9A-FX]{12}`)

// Normalize clears the variant bits of id.
func Normalize(id uint64) uint64 {
	return id & BaseMask
}

// Format renders id as 16 uppercase, zero-padded hex digits.
func Format(id uint64) string {
	return fmt.Sprintf("%016X", id)
}

// Decode parses a 16-hex-digit title ID.
func Decode(s string) (uint64, error) {
	if len(s) != Length {
		return 0, fmt.Errorf("title id %q: want %d hex digits, got %d", s, Length, len(s))
	}
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("title id %q: %w", s, err)
	}
	return v, nil
}

// NormalizeString returns the base title ID for s. The error path exists only
// for malformed input.
func NormalizeString(s string) (string, error) {
	v, err := Decode(s)
	if err != nil {
		return "", err
	}
	return Format(Normalize(v)), nil
}

// Parse finds the first title ID in text. Wildcard X placeholders are
// replaced with 0 and the result is upper-cased.
func Parse(text string) (string, bool) {
	match := pattern.FindString(text)
	if match == "" {
		return "", false
	}
	return strings.ReplaceAll(strings.ToUpper(match), "X", "0"), true
}
