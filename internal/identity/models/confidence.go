package models

import (
	"strings"

	dErrors "idstatus/pkg/domain-errors"
)

// ConfidenceLevel is the ordered verification-strength tier (legacy name
// "vot"). The zero value means the level is absent.
type ConfidenceLevel string

const (
	ConfidenceNone   ConfidenceLevel = "none"
	ConfidenceLow    ConfidenceLevel = "low"
	ConfidenceMedium ConfidenceLevel = "medium"
)

// legacy vot values still sent by older channels
var legacyVot = map[string]ConfidenceLevel{
	"P0": ConfidenceNone,
	"P1": ConfidenceLow,
	"P2": ConfidenceMedium,
}

// ParseConfidenceLevel accepts none/low/medium or the legacy P0/P1/P2.
func ParseConfidenceLevel(s string) (ConfidenceLevel, error) {
	v := strings.TrimSpace(s)
	if level, ok := legacyVot[strings.ToUpper(v)]; ok {
		return level, nil
	}
	level := ConfidenceLevel(strings.ToLower(v))
	if !level.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown confidence level: "+s)
	}
	return level, nil
}

// IsValid reports whether c is one of the known tiers.
func (c ConfidenceLevel) IsValid() bool {
	switch c {
	case ConfidenceNone, ConfidenceLow, ConfidenceMedium:
		return true
	}
	return false
}

// IsPresent reports whether a level has been set.
func (c ConfidenceLevel) IsPresent() bool {
	return c != ""
}

// Rank orders tiers: none < low < medium. Absent ranks below none.
func (c ConfidenceLevel) Rank() int {
	switch c {
	case ConfidenceNone:
		return 0
	case ConfidenceLow:
		return 1
	case ConfidenceMedium:
		return 2
	}
	return -1
}

func (c ConfidenceLevel) String() string { return string(c) }
