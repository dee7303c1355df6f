package intake

import (
	"encoding/json"
	"strings"
	"time"

	"idstatus/internal/identity/models"
	id "idstatus/pkg/domain"
	dErrors "idstatus/pkg/domain-errors"
)

// inboundFact is the wire form published by the verification provider.
type inboundFact struct {
	IdentityID string `json:"identityId"`
	SubjectID  string `json:"subjectId"`
	Nino       string `json:"nino"`
	Channel    string `json:"channel"`
	Timestamp  string `json:"timestamp"`
	Status     string `json:"status,omitempty"`

	ConfidenceLevel string `json:"confidenceLevel,omitempty"`
	// Vot is the legacy name for ConfidenceLevel; ignored when both are set.
	Vot string `json:"vot,omitempty"`
}

func (in inboundFact) confidence() (field, value string) {
	if v := strings.TrimSpace(in.ConfidenceLevel); v != "" {
		return "confidenceLevel", v
	}
	return "vot", strings.TrimSpace(in.Vot)
}

// DecodeFact parses and validates one inbound message body. Every failure
// carries CodeValidation.
func DecodeFact(body []byte) (models.VerificationFact, error) {
	var in inboundFact
	if err := json.Unmarshal(body, &in); err != nil {
		return models.VerificationFact{}, dErrors.Wrap(err, dErrors.CodeValidation, "malformed verification fact")
	}

	fact := models.VerificationFact{
		IdentityID: strings.TrimSpace(in.IdentityID),
		Channel:    strings.TrimSpace(in.Channel),
		Status:     strings.TrimSpace(in.Status),
	}
	var err error
	if strings.TrimSpace(in.Nino) != "" {
		if fact.Nino, err = id.ParseNino(in.Nino); err != nil {
			return models.VerificationFact{}, dErrors.Wrap(err, dErrors.CodeValidation, "invalid nino")
		}
	}
	if strings.TrimSpace(in.SubjectID) != "" {
		if fact.SubjectID, err = id.ParseSubjectID(in.SubjectID); err != nil {
			return models.VerificationFact{}, dErrors.Wrap(err, dErrors.CodeValidation, "invalid subjectId")
		}
	}
	if field, v := in.confidence(); v != "" {
		if fact.ConfidenceLevel, err = models.ParseConfidenceLevel(v); err != nil {
			return models.VerificationFact{}, dErrors.Wrap(err, dErrors.CodeValidation, "invalid "+field)
		}
	}
	if ts := strings.TrimSpace(in.Timestamp); ts != "" {
		if fact.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return models.VerificationFact{}, dErrors.Wrap(err, dErrors.CodeValidation, "invalid timestamp")
		}
	}

	if err := fact.Validate(); err != nil {
		return models.VerificationFact{}, err
	}
	return fact, nil
}
