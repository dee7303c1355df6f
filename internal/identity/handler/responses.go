package handler

import (
	"time"

	"idstatus/internal/identity/models"
)

// IdentityResponse is the HTTP view of an identity record.
type IdentityResponse struct {
	ID                   string                `json:"id"`
	SubjectID            string                `json:"subjectId"`
	Nino                 string                `json:"nino"`
	ApplicationReference string                `json:"applicationReference,omitempty"`
	VerificationChannel  string                `json:"verificationChannel"`
	VerificationStatus   string                `json:"verificationStatus,omitempty"`
	ConfidenceLevel      string                `json:"confidenceLevel,omitempty"`
	EffectiveStatus      string                `json:"effectiveStatus"`
	LastUpdated          time.Time             `json:"lastUpdated"`
	ResolutionError      string                `json:"resolutionError,omitempty"`
	UpliftDetails        *models.UpliftDetails `json:"upliftDetails,omitempty"`
}

// StatusResponse is the HTTP response for GET /v1/identities/nino/{nino}/status.
type StatusResponse struct {
	Nino                 string `json:"nino"`
	EffectiveStatus      string `json:"effectiveStatus"`
	ApplicationReference string `json:"applicationReference,omitempty"`
}

// FromRecord converts an identity record to its HTTP response.
func FromRecord(r *models.IdentityRecord) *IdentityResponse {
	return &IdentityResponse{
		ID:                   r.ID.String(),
		SubjectID:            r.SubjectID.String(),
		Nino:                 r.Nino.String(),
		ApplicationReference: r.ApplicationReference.String(),
		VerificationChannel:  r.VerificationChannel,
		VerificationStatus:   r.VerificationStatus,
		ConfidenceLevel:      r.ConfidenceLevel.String(),
		EffectiveStatus:      models.EffectiveStatus(*r),
		LastUpdated:          r.LastUpdated,
		ResolutionError:      r.ResolutionError,
		UpliftDetails:        r.UpliftDetails,
	}
}

func FromRecordStatus(r *models.IdentityRecord) *StatusResponse {
	return &StatusResponse{
		Nino:                 r.Nino.String(),
		EffectiveStatus:      models.EffectiveStatus(*r),
		ApplicationReference: r.ApplicationReference.String(),
	}
}
