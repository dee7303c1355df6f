package models

// Merge folds an inbound fact into the previous state of a record (nil when
// no record matched) and returns the next state.
//
// changed is false when prev exists and the fact carries nothing new on the
// identity-defining fields: nino, subject id, and the confidence level when
// the fact has one (otherwise the explicit status). Channel and timestamp are
// provenance and never count as a change, but they are always copied.
//
// Merge never touches ApplicationReference, ResolutionError or UpliftDetails;
// resolution owns the first two and operators own the last.
func Merge(prev *IdentityRecord, fact VerificationFact) (next IdentityRecord, changed bool) {
	if prev == nil {
		return IdentityRecord{
			SubjectID:           fact.SubjectID,
			Nino:                fact.Nino,
			VerificationChannel: fact.Channel,
			VerificationStatus:  fact.Status,
			ConfidenceLevel:     fact.ConfidenceLevel,
			LastUpdated:         fact.Timestamp,
		}, true
	}

	next = *prev.Clone()
	changed = next.Nino != fact.Nino || next.SubjectID != fact.SubjectID
	if fact.ConfidenceLevel.IsPresent() {
		changed = changed || next.ConfidenceLevel != fact.ConfidenceLevel
		next.ConfidenceLevel = fact.ConfidenceLevel
	} else {
		changed = changed || next.VerificationStatus != fact.Status
	}
	if fact.Status != "" {
		next.VerificationStatus = fact.Status
	}

	next.Nino = fact.Nino
	next.SubjectID = fact.SubjectID
	next.VerificationChannel = fact.Channel
	next.LastUpdated = fact.Timestamp
	return next, changed
}
