package domain

import (
	"fmt"
	"regexp"
)

var fingerprintPattern = regexp.MustCompile(`^[0-9a-z]{32}$`)

// ZeroFingerprint is the placeholder sentinel a node reports when it has
// no meaningful built artifact (treated as HIGH-severity drift, never
// CRITICAL, by the drift service).
const ZeroFingerprint = "00000000000000000000000000000000"

// Fingerprint is a validated 32-character lower-alphanumeric identifier
// of a built configuration artifact.
type Fingerprint struct {
	value string
}

// NewFingerprint validates and constructs a Fingerprint.
func NewFingerprint(value string) (Fingerprint, error) {
	if !fingerprintPattern.MatchString(value) {
		return Fingerprint{}, fmt.Errorf("fingerprint: invalid format %q (want 32 lower-alphanumeric chars)", value)
	}
	return Fingerprint{value: value}, nil
}

// String returns the fingerprint's textual form.
func (f Fingerprint) String() string {
	return f.value
}

// Equal reports whether two fingerprints represent the same value.
func (f Fingerprint) Equal(other Fingerprint) bool {
	return f.value == other.value
}

// IsZero reports whether this Fingerprint is the zero value (never
// validated/constructed).
func (f Fingerprint) IsZero() bool {
	return f.value == ""
}
