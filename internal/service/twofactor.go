package service

import (
	"context"
	"log/slog"

	"github.com/attaboy/siteadmin/internal/domain"
	"github.com/attaboy/siteadmin/internal/repository"
	"github.com/attaboy/siteadmin/internal/secret"
)

// TwoFactorService enrolls, rotates and disables the admin PIN.
type TwoFactorService struct {
	repo          repository.AdminRepository
	hasher        *secret.Hasher
	superCodeHash string
	inv           Invalidator
	logger        *slog.Logger
}

// NewTwoFactorService creates a TwoFactorService. superCodeHash is the bcrypt hash
// of the out-of-band recovery code; when empty, recovery is unavailable.
func NewTwoFactorService(repo repository.AdminRepository, hasher *secret.Hasher, superCodeHash string, inv Invalidator, logger *slog.Logger) *TwoFactorService {
	if inv == nil {
		inv = nopInvalidator{}
	}
	if superCodeHash == "" {
		logger.Warn("no recovery code hash configured; 2FA recovery is disabled")
	}
	return &TwoFactorService{repo: repo, hasher: hasher, superCodeHash: superCodeHash, inv: inv, logger: logger}
}

// Status reports whether 2FA is enabled for adminID.
func (s *TwoFactorService) Status(ctx context.Context, adminID string) (bool, error) {
	acct, err := s.account(ctx, adminID)
	if err != nil {
		return false, err
	}
	return acct.Is2FAEnabled, nil
}

// Enable turns on 2FA with a new PIN. Valid only while 2FA is disabled.
func (s *TwoFactorService) Enable(ctx context.Context, adminID, newPIN, confirmPIN string) error {
	if err := validateNewPIN(newPIN, confirmPIN); err != nil {
		return err
	}
	hash, err := s.hasher.Hash(newPIN)
	if err != nil {
		return domain.ErrInternal("hash PIN", err)
	}

	_, err = s.repo.Update(ctx, func(acct *domain.AdminAccount) error {
		if acct.AdminID != adminID {
			return domain.ErrNotFound("admin account", adminID)
		}
		if acct.Is2FAEnabled {
			return domain.ErrInvalidState("two-factor authentication is already enabled")
		}
		acct.EnableTwoFactor(hash)
		return nil
	})
	if err != nil {
		return toAppError(s.logger, "enable 2FA", err)
	}

	s.logger.Info("2FA enabled", "admin_id", adminID)
	notify(ctx, s.inv, s.logger, "2FA enabled")
	return nil
}

// ChangePIN replaces the PIN after checking the current one. Valid only while 2FA is enabled.
func (s *TwoFactorService) ChangePIN(ctx context.Context, adminID, currentPIN, newPIN, confirmPIN string) error {
	if err := validateNewPIN(newPIN, confirmPIN); err != nil {
		return err
	}
	hash, err := s.hasher.Hash(newPIN)
	if err != nil {
		return domain.ErrInternal("hash PIN", err)
	}

	_, err = s.repo.Update(ctx, func(acct *domain.AdminAccount) error {
		if acct.AdminID != adminID {
			return domain.ErrNotFound("admin account", adminID)
		}
		if !acct.Is2FAEnabled {
			return domain.ErrInvalidState("two-factor authentication is not enabled")
		}
		if !s.hasher.VerifyOptional(acct.PINHash, currentPIN) {
			return domain.ErrInvalidCredentials("current PIN is incorrect")
		}
		acct.EnableTwoFactor(hash)
		return nil
	})
	if err != nil {
		return toAppError(s.logger, "change PIN", err)
	}

	s.logger.Info("2FA PIN changed", "admin_id", adminID)
	notify(ctx, s.inv, s.logger, "PIN changed")
	return nil
}

// Disable turns off 2FA. Either the current PIN or the password proves ownership.
func (s *TwoFactorService) Disable(ctx context.Context, adminID, currentPINOrPassword string) error {
	if currentPINOrPassword == "" {
		return domain.ErrValidationFields(map[string]string{"currentPinOrPassword": "current PIN or password is required"})
	}

	_, err := s.repo.Update(ctx, func(acct *domain.AdminAccount) error {
		if acct.AdminID != adminID {
			return domain.ErrNotFound("admin account", adminID)
		}
		if !acct.Is2FAEnabled {
			return domain.ErrInvalidState("two-factor authentication is not enabled")
		}
		pinOK := s.hasher.VerifyOptional(acct.PINHash, currentPINOrPassword)
		passwordOK := s.hasher.Verify(acct.PasswordHash, currentPINOrPassword)
		if !pinOK && !passwordOK {
			return domain.ErrInvalidCredentials("current PIN or password is incorrect")
		}
		acct.DisableTwoFactor()
		return nil
	})
	if err != nil {
		return toAppError(s.logger, "disable 2FA", err)
	}

	s.logger.Info("2FA disabled", "admin_id", adminID)
	notify(ctx, s.inv, s.logger, "2FA disabled")
	return nil
}

// DisableBySuperAction turns off 2FA with the out-of-band recovery code,
// without the PIN or password.
func (s *TwoFactorService) DisableBySuperAction(ctx context.Context, adminID, code string) error {
	if s.superCodeHash == "" {
		s.logger.Warn("recovery attempted but no recovery code hash is configured", "admin_id", adminID)
		return domain.ErrInvalidCredentials("recovery code is incorrect")
	}
	if !s.hasher.Verify(s.superCodeHash, code) {
		s.logger.Warn("recovery code rejected", "admin_id", adminID)
		return domain.ErrInvalidCredentials("recovery code is incorrect")
	}

	_, err := s.repo.Update(ctx, func(acct *domain.AdminAccount) error {
		if acct.AdminID != adminID {
			return domain.ErrNotFound("admin account", adminID)
		}
		if !acct.Is2FAEnabled {
			return domain.ErrInvalidState("two-factor authentication is not enabled")
		}
		acct.DisableTwoFactor()
		return nil
	})
	if err != nil {
		return toAppError(s.logger, "disable 2FA by recovery code", err)
	}

	s.logger.Warn("2FA disabled with recovery code", "admin_id", adminID)
	notify(ctx, s.inv, s.logger, "2FA disabled by recovery code")
	return nil
}

// CheckPIN reports whether pin matches the stored PIN of adminID. It fails with
// INVALID_STATE when the account no longer has 2FA enabled.
func (s *TwoFactorService) CheckPIN(ctx context.Context, adminID, pin string) (bool, error) {
	acct, err := s.account(ctx, adminID)
	if err != nil {
		return false, err
	}
	if !acct.Is2FAEnabled {
		return false, domain.ErrInvalidState("two-factor authentication is not enabled")
	}
	if domain.ValidatePIN(pin) != nil {
		return false, nil
	}
	return s.hasher.VerifyOptional(acct.PINHash, pin), nil
}

func (s *TwoFactorService) account(ctx context.Context, adminID string) (*domain.AdminAccount, error) {
	acct, err := s.repo.Get(ctx)
	if err != nil {
		return nil, toAppError(s.logger, "load admin", err)
	}
	if acct == nil || acct.AdminID != adminID {
		return nil, domain.ErrNotFound("admin account", adminID)
	}
	return acct, nil
}

func validateNewPIN(newPIN, confirmPIN string) error {
	fields := domain.FieldErrors{}
	fields.Check("newPin", domain.ValidatePIN(newPIN))
	if newPIN != confirmPIN {
		fields.Check("confirmNewPin", fieldMessage("PINs do not match"))
	}
	return fields.Err()
}
