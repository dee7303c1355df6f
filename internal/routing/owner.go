// Package routing answers which downstream system owns an application.
package routing

import (
	"fmt"
	"strings"
)

// Owner identifies the downstream system responsible for an application.
type Owner string

const (
	OwnerA   Owner = "A"
	OwnerB   Owner = "B"
	Unrouted Owner = "unrouted"
)

// ParseOwner accepts the classifier's wire values case-insensitively.
func ParseOwner(s string) (Owner, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "a":
		return OwnerA, nil
	case "b":
		return OwnerB, nil
	case "unrouted":
		return Unrouted, nil
	default:
		return "", fmt.Errorf("unknown owner %q", s)
	}
}

// IsSettled reports whether routing has been decided.
func (o Owner) IsSettled() bool {
	return o == OwnerA || o == OwnerB
}

func (o Owner) String() string { return string(o) }
