package models

import "time"

// VerificationRequest is built from one web form submission and is never persisted.
type VerificationRequest struct {
	UserID                 string `json:"user_id"`
	SourceAddress          string `json:"source_address"`
	ChallengeResponseToken string `json:"challengeResponseToken"`
	ChallengeState         string `json:"state"`
}

type VerificationState string

const (
	StateReceived          VerificationState = "received"
	StateAddressChecked    VerificationState = "address_checked"
	StateChallengeVerified VerificationState = "challenge_verified"
	StateRoleGranted       VerificationState = "role_granted"
	StateRecorded          VerificationState = "recorded"

	StateBlocked         VerificationState = "blocked"
	StateChallengeFailed VerificationState = "challenge_failed"
	StateGrantError      VerificationState = "grant_error"
)

// Terminal reports whether no further transition is possible from s.
func (s VerificationState) Terminal() bool {
	switch s {
	case StateRecorded, StateBlocked, StateChallengeFailed, StateGrantError:
		return true
	}
	return false
}

type GrantErrorKind string

const (
	GrantMemberNotFound GrantErrorKind = "member_not_found"
	GrantRoleNotFound   GrantErrorKind = "role_not_found"
	GrantFailed         GrantErrorKind = "grant_failed"
)

// VerificationResult is the terminal outcome of one orchestration pass.
// PersistErr is set when the role was granted but the audit record could not be written.
type VerificationResult struct {
	State      VerificationState `json:"state"`
	GrantError GrantErrorKind    `json:"grant_error,omitempty"`
	Profile    *MemberProfile    `json:"profile,omitempty"`
	Err        error             `json:"-"`
	PersistErr error             `json:"-"`
}

// Challenge: выданная пользователю ссылка на проверку. Одноразовая, с TTL.
type Challenge struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	RedirectTarget string    `json:"redirect_target"`
	Email          *string   `json:"email,omitempty"` // из OAuth, если scope email выдан
	IssuedAt       time.Time `json:"issued_at"`
	ExpiresAt      time.Time `json:"expires_at"`
}
