package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/attaboy/siteadmin/internal/domain"
	"github.com/attaboy/siteadmin/internal/guard"
	"github.com/google/uuid"
)

// SessionIssuer establishes an authenticated admin session.
type SessionIssuer interface {
	IssueAdminSession(adminID, email string) (string, error)
}

// LoginResult describes where a login session stands after a step.
type LoginResult struct {
	Phase             domain.LoginPhase    `json:"phase"`
	ChallengeID       string               `json:"challengeId,omitempty"`
	RemainingAttempts *int                 `json:"remainingAttempts,omitempty"`
	Token             string               `json:"token,omitempty"`
	Profile           *domain.AdminProfile `json:"profile,omitempty"`
}

// LoginService drives the login protocol: primary credentials, then the PIN
// challenge when 2FA is on, with lockout after domain.MaxPINAttempts failures.
type LoginService struct {
	admins     *AdminService
	twoFactor  *TwoFactorService
	challenges *guard.ChallengeRegistry
	sessions   SessionIssuer
	ttl        time.Duration
	logger     *slog.Logger
}

// NewLoginService creates a new LoginService. ttl bounds how long a PIN challenge stays open.
func NewLoginService(admins *AdminService, twoFactor *TwoFactorService, challenges *guard.ChallengeRegistry, sessions SessionIssuer, ttl time.Duration, logger *slog.Logger) *LoginService {
	return &LoginService{
		admins:     admins,
		twoFactor:  twoFactor,
		challenges: challenges,
		sessions:   sessions,
		ttl:        ttl,
		logger:     logger,
	}
}

// Begin checks the primary credentials. Without 2FA the session is established
// immediately; with 2FA a PIN challenge is opened.
func (s *LoginService) Begin(ctx context.Context, c Credentials) (*LoginResult, error) {
	profile, err := s.admins.VerifyPrimaryCredentials(ctx, c)
	if err != nil {
		s.logger.Info("login rejected", "stage", domain.PhaseCredentials)
		return nil, err
	}

	attempt := domain.NewLoginAttempt(uuid.New().String())
	if !profile.Is2FAEnabled {
		if err := attempt.Authenticate(); err != nil {
			return nil, domain.ErrInternal("authenticate", err)
		}
		return s.establish(profile)
	}

	if err := attempt.BeginPINChallenge(profile.AdminID, time.Now().Add(s.ttl)); err != nil {
		return nil, domain.ErrInternal("open PIN challenge", err)
	}
	s.challenges.Put(*attempt)

	remaining := attempt.RemainingAttempts()
	return &LoginResult{
		Phase:             attempt.Phase,
		ChallengeID:       attempt.ChallengeID,
		RemainingAttempts: &remaining,
	}, nil
}

// VerifyPIN answers the PIN challenge. A wrong or malformed PIN consumes an
// attempt; the last allowed failure locks the challenge.
func (s *LoginService) VerifyPIN(ctx context.Context, challengeID, pin string) (*LoginResult, error) {
	attempt, ok := s.challenges.Get(challengeID)
	if !ok {
		return nil, errChallengeGone()
	}
	if attempt.Phase == domain.PhaseLocked {
		return nil, domain.ErrPINLocked()
	}

	match, err := s.twoFactor.CheckPIN(ctx, attempt.AdminID, pin)
	if err != nil {
		if domain.CodeOf(err) == domain.CodeInvalidState || domain.CodeOf(err) == domain.CodeNotFound {
			s.challenges.Delete(challengeID)
		}
		return nil, err
	}

	var stepErr error
	updated, ok := s.challenges.Modify(challengeID, func(a *domain.LoginAttempt) {
		if match {
			stepErr = a.Authenticate()
			return
		}
		_, stepErr = a.RecordPINFailure()
	})
	if !ok {
		return nil, errChallengeGone()
	}
	if stepErr != nil {
		// another request locked or finished the challenge first
		if updated.Phase == domain.PhaseLocked {
			return nil, domain.ErrPINLocked()
		}
		return nil, errChallengeGone()
	}

	switch updated.Phase {
	case domain.PhaseAuthenticated:
		s.challenges.Delete(challengeID)
		profile, err := s.admins.GetProfile(ctx)
		if err != nil {
			return nil, err
		}
		return s.establish(profile)
	case domain.PhaseLocked:
		s.logger.Warn("PIN challenge locked", "admin_id", updated.AdminID, "attempts", updated.AttemptCount)
		return nil, domain.ErrPINLocked()
	default:
		s.logger.Info("PIN rejected", "admin_id", updated.AdminID, "remaining", updated.RemainingAttempts())
		return nil, domain.ErrWrongPIN(updated.RemainingAttempts())
	}
}

// BypassLockout disables 2FA with the recovery code from a locked challenge and
// sends the caller back to the credentials step with a fresh attempt count.
func (s *LoginService) BypassLockout(ctx context.Context, challengeID, code string) (*LoginResult, error) {
	attempt, ok := s.challenges.Get(challengeID)
	if !ok {
		return nil, errChallengeGone()
	}
	if attempt.Phase != domain.PhaseLocked {
		return nil, domain.ErrInvalidState("recovery is only available once the PIN challenge is locked")
	}

	if err := s.twoFactor.DisableBySuperAction(ctx, attempt.AdminID, code); err != nil {
		if domain.CodeOf(err) == domain.CodeInvalidState || domain.CodeOf(err) == domain.CodeNotFound {
			s.challenges.Delete(challengeID)
		}
		return nil, err
	}

	var resetErr error
	s.challenges.Modify(challengeID, func(a *domain.LoginAttempt) {
		resetErr = a.ResetAfterBypass()
	})
	s.challenges.Delete(challengeID)
	if resetErr != nil {
		s.logger.Warn("challenge changed during recovery", "error", resetErr)
	}

	return &LoginResult{Phase: domain.PhaseCredentials}, nil
}

// Challenge returns the current state of an open challenge.
func (s *LoginService) Challenge(challengeID string) (*LoginResult, error) {
	attempt, ok := s.challenges.Get(challengeID)
	if !ok {
		return nil, errChallengeGone()
	}
	remaining := attempt.RemainingAttempts()
	return &LoginResult{
		Phase:             attempt.Phase,
		ChallengeID:       attempt.ChallengeID,
		RemainingAttempts: &remaining,
	}, nil
}

func (s *LoginService) establish(profile *domain.AdminProfile) (*LoginResult, error) {
	token, err := s.sessions.IssueAdminSession(profile.AdminID, profile.Email)
	if err != nil {
		return nil, domain.ErrInternal("issue session", err)
	}
	s.logger.Info("admin signed in", "admin_id", profile.AdminID)
	return &LoginResult{Phase: domain.PhaseAuthenticated, Token: token, Profile: profile}, nil
}

func errChallengeGone() *domain.AppError {
	return domain.ErrInvalidState("login challenge not found or expired; sign in again")
}
