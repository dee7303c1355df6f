// Package domain holds the identifier types shared across modules.
//
// Each identifier is a distinct type so the compiler rejects passing a nino
// where a subject id is expected. Parse functions are the trust boundary:
// values that come off the wire go through them exactly once.
package domain

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	dErrors "idstatus/pkg/domain-errors"
)

// RecordID is the store-assigned identifier of an identity record.
type RecordID uuid.UUID

// NewRecordID allocates a fresh record identifier.
func NewRecordID() RecordID {
	return RecordID(uuid.New())
}

// ParseRecordID parses a non-nil UUID.
func ParseRecordID(s string) (RecordID, error) {
	if s == "" {
		return RecordID{}, dErrors.New(dErrors.CodeInvalidInput, "record id is required")
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return RecordID{}, dErrors.New(dErrors.CodeInvalidInput, "invalid record id")
	}
	if parsed == uuid.Nil {
		return RecordID{}, dErrors.New(dErrors.CodeInvalidInput, "record id must not be nil")
	}
	return RecordID(parsed), nil
}

func (id RecordID) String() string {
	return uuid.UUID(id).String()
}

// IsNil reports whether the id has not been assigned.
func (id RecordID) IsNil() bool {
	return uuid.UUID(id) == uuid.Nil
}

func (id RecordID) MarshalText() ([]byte, error) {
	return uuid.UUID(id).MarshalText()
}

func (id *RecordID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}

// Nino is a national insurance number in canonical form (upper case, no spaces).
type Nino string

var ninoPattern = regexp.MustCompile(`^[A-Z]{2}[0-9]{6}[A-Z]?$`)

// ParseNino canonicalises and validates a nino.
func ParseNino(s string) (Nino, error) {
	if !utf8.ValidString(s) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "nino must be valid UTF-8")
	}
	canonical := strings.ToUpper(strings.Join(strings.Fields(s), ""))
	if canonical == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "nino is required")
	}
	if !ninoPattern.MatchString(canonical) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid nino format")
	}
	return Nino(canonical), nil
}

func (n Nino) String() string { return string(n) }

// SubjectID is the email-shaped person identifier issued by the upstream
// identity provider. Matching is exact, so no case folding is applied.
type SubjectID string

// ParseSubjectID trims and validates a subject id.
func ParseSubjectID(s string) (SubjectID, error) {
	if !utf8.ValidString(s) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "subject id must be valid UTF-8")
	}
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "subject id is required")
	}
	at := strings.IndexByte(trimmed, '@')
	if at <= 0 || at == len(trimmed)-1 || strings.ContainsAny(trimmed, " \t\r\n") {
		return "", dErrors.New(dErrors.CodeInvalidInput, "subject id must be email shaped")
	}
	return SubjectID(trimmed), nil
}

func (s SubjectID) String() string { return string(s) }

// ApplicationReference is the external benefits-application key.
type ApplicationReference string

// ParseApplicationReference trims and validates an application reference.
func ParseApplicationReference(s string) (ApplicationReference, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "application reference is required")
	}
	if !utf8.ValidString(trimmed) || strings.ContainsAny(trimmed, "/ \t\r\n") {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid application reference")
	}
	return ApplicationReference(trimmed), nil
}

func (r ApplicationReference) String() string { return string(r) }

// IsEmpty reports whether no reference has been resolved yet.
func (r ApplicationReference) IsEmpty() bool { return r == "" }
