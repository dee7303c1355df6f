package models

import (
	"time"

	id "idstatus/pkg/domain"
)

// IdentityRecord is the authoritative verification state for one person.
//
// Invariants:
//   - ID is assigned by the store on first save and never changes
//   - a non-empty ApplicationReference belongs to at most one record
//   - ApplicationReference, once set, is never overwritten by reconciliation
//   - ResolutionError is empty whenever resolution found a reference
//   - UpliftDetails is written by operators only and carried through merges
type IdentityRecord struct {
	ID                   id.RecordID             `json:"id"`
	SubjectID            id.SubjectID            `json:"subjectId"`
	Nino                 id.Nino                 `json:"nino"`
	ApplicationReference id.ApplicationReference `json:"applicationReference,omitempty"`
	VerificationChannel  string                  `json:"verificationChannel"`
	VerificationStatus   string                  `json:"verificationStatus,omitempty"`
	ConfidenceLevel      ConfidenceLevel         `json:"confidenceLevel,omitempty"`
	LastUpdated          time.Time               `json:"lastUpdated"`
	ResolutionError      string                  `json:"resolutionError,omitempty"`
	UpliftDetails        *UpliftDetails          `json:"upliftDetails,omitempty"`
}

// UpliftDetails records that an operator manually raised the confidence level.
type UpliftDetails struct {
	UpliftedBy    string          `json:"upliftedBy"`
	PreviousLevel ConfidenceLevel `json:"previousLevel,omitempty"`
	Reason        string          `json:"reason,omitempty"`
	UpliftedAt    time.Time       `json:"upliftedAt"`
}

// IsPersisted reports whether the store has assigned an ID.
func (r *IdentityRecord) IsPersisted() bool {
	return !r.ID.IsNil()
}

// HasApplicationReference reports whether resolution has already succeeded.
func (r *IdentityRecord) HasApplicationReference() bool {
	return !r.ApplicationReference.IsEmpty()
}

// Clone returns a deep copy so callers can mutate without aliasing store state.
func (r *IdentityRecord) Clone() *IdentityRecord {
	if r == nil {
		return nil
	}
	c := *r
	if r.UpliftDetails != nil {
		u := *r.UpliftDetails
		c.UpliftDetails = &u
	}
	return &c
}
