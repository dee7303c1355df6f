package models

// Effective statuses derived from a confidence level.
const (
	StatusVerified   = "verified"
	StatusUnverified = "unverified"
)

// EffectiveStatus derives the status downstream systems see. A confidence
// level, when present, overrides the legacy status: medium is verified and
// every other tier is unverified. Without a level the legacy status is
// returned as-is, including empty.
func EffectiveStatus(r IdentityRecord) string {
	if r.ConfidenceLevel.IsPresent() {
		if r.ConfidenceLevel == ConfidenceMedium {
			return StatusVerified
		}
		return StatusUnverified
	}
	return r.VerificationStatus
}

// IsVerified is shorthand for EffectiveStatus(r) == StatusVerified.
func IsVerified(r IdentityRecord) bool {
	return EffectiveStatus(r) == StatusVerified
}
