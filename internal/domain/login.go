package domain

import (
	"errors"
	"time"
)

// MaxPINAttempts is the number of failed PIN checks that locks a login challenge.
const MaxPINAttempts = 5

// LoginPhase is the position of a login session in the login protocol.
type LoginPhase string

const (
	PhaseCredentials   LoginPhase = "credentials"
	PhasePINChallenge  LoginPhase = "pin_challenge"
	PhaseLocked        LoginPhase = "locked"
	PhaseAuthenticated LoginPhase = "authenticated"
)

// ErrPhaseTransition is returned when a transition is attempted from the wrong phase.
var ErrPhaseTransition = errors.New("invalid login phase transition")

// LoginAttempt is the ephemeral state of one login session. It is never persisted.
type LoginAttempt struct {
	ChallengeID  string     `json:"challengeId"`
	AdminID      string     `json:"adminId"`
	AttemptCount int        `json:"attemptCount"`
	Phase        LoginPhase `json:"phase"`
	ExpiresAt    time.Time  `json:"expiresAt"`
}

// NewLoginAttempt starts a session in the credentials phase.
func NewLoginAttempt(challengeID string) *LoginAttempt {
	return &LoginAttempt{ChallengeID: challengeID, Phase: PhaseCredentials}
}

// BeginPINChallenge moves a session whose primary credentials passed into the PIN step.
func (l *LoginAttempt) BeginPINChallenge(adminID string, expiresAt time.Time) error {
	if l.Phase != PhaseCredentials {
		return ErrPhaseTransition
	}
	l.AdminID = adminID
	l.AttemptCount = 0
	l.Phase = PhasePINChallenge
	l.ExpiresAt = expiresAt
	return nil
}

// RecordPINFailure counts a failed PIN check and locks the challenge at MaxPINAttempts.
// It returns the attempts left.
func (l *LoginAttempt) RecordPINFailure() (int, error) {
	if l.Phase != PhasePINChallenge {
		return 0, ErrPhaseTransition
	}
	l.AttemptCount++
	if l.AttemptCount >= MaxPINAttempts {
		l.Phase = PhaseLocked
	}
	return l.RemainingAttempts(), nil
}

// Authenticate finishes the protocol.
func (l *LoginAttempt) Authenticate() error {
	if l.Phase != PhaseCredentials && l.Phase != PhasePINChallenge {
		return ErrPhaseTransition
	}
	l.Phase = PhaseAuthenticated
	return nil
}

// ResetAfterBypass returns a locked session to the credentials phase.
func (l *LoginAttempt) ResetAfterBypass() error {
	if l.Phase != PhaseLocked {
		return ErrPhaseTransition
	}
	l.AttemptCount = 0
	l.Phase = PhaseCredentials
	return nil
}

// RemainingAttempts is never negative.
func (l *LoginAttempt) RemainingAttempts() int {
	if n := MaxPINAttempts - l.AttemptCount; n > 0 {
		return n
	}
	return 0
}

// Expired reports whether the session outlived its deadline.
func (l *LoginAttempt) Expired(now time.Time) bool {
	return !l.ExpiresAt.IsZero() && now.After(l.ExpiresAt)
}
