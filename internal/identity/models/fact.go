package models

import (
	"strings"
	"time"

	id "idstatus/pkg/domain"
	dErrors "idstatus/pkg/domain-errors"
)

// VerificationFact is one inbound signal from the identity-verification
// provider. IdentityID is a correlation id for the fact, not a record id.
type VerificationFact struct {
	IdentityID      string
	SubjectID       id.SubjectID
	Nino            id.Nino
	Channel         string
	Timestamp       time.Time
	ConfidenceLevel ConfidenceLevel
	Status          string
}

// Validate enforces the intake contract: every key field is present and the
// fact carries a status, a confidence level, or both.
func (f VerificationFact) Validate() error {
	var missing []string
	if strings.TrimSpace(f.IdentityID) == "" {
		missing = append(missing, "identityId")
	}
	if f.SubjectID == "" {
		missing = append(missing, "subjectId")
	}
	if f.Nino == "" {
		missing = append(missing, "nino")
	}
	if strings.TrimSpace(f.Channel) == "" {
		missing = append(missing, "channel")
	}
	if len(missing) > 0 {
		return dErrors.New(dErrors.CodeValidation, "missing required fields: "+strings.Join(missing, ", "))
	}
	if !f.ConfidenceLevel.IsPresent() && strings.TrimSpace(f.Status) == "" {
		return dErrors.New(dErrors.CodeValidation, "one of status or confidence level is required")
	}
	if f.ConfidenceLevel.IsPresent() && !f.ConfidenceLevel.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "unknown confidence level")
	}
	return nil
}
