package domain

import (
	"errors"
	"strings"
)

// AdminAccount is the singleton administrator record as persisted.
// PasswordHash and PINHash hold one-way hashes, never raw secrets.
type AdminAccount struct {
	AdminName    string  `json:"adminName"`
	AdminID      string  `json:"adminId"`
	Email        string  `json:"email"`
	PasswordHash string  `json:"password"`
	Is2FAEnabled bool    `json:"is2FAEnabled"`
	PINHash      *string `json:"pin"`
}

// Validate checks the record shape and the pin-iff-enabled invariant.
func (a AdminAccount) Validate() error {
	if strings.TrimSpace(a.AdminName) == "" {
		return errors.New("adminName is required")
	}
	if err := ValidateAdminID(a.AdminID); err != nil {
		return err
	}
	if err := ValidateEmail(a.Email); err != nil {
		return err
	}
	if a.PasswordHash == "" {
		return errors.New("password is required")
	}
	if a.Is2FAEnabled && (a.PINHash == nil || *a.PINHash == "") {
		return errors.New("pin is required when 2FA is enabled")
	}
	if !a.Is2FAEnabled && a.PINHash != nil {
		return errors.New("pin must be absent when 2FA is disabled")
	}
	return nil
}

// EnableTwoFactor stores the PIN hash and flips the flag.
func (a *AdminAccount) EnableTwoFactor(pinHash string) {
	a.PINHash = &pinHash
	a.Is2FAEnabled = true
}

// DisableTwoFactor clears the PIN and the flag together.
func (a *AdminAccount) DisableTwoFactor() {
	a.PINHash = nil
	a.Is2FAEnabled = false
}

// Profile returns the public-safe view of the account.
func (a AdminAccount) Profile() AdminProfile {
	return AdminProfile{
		AdminName:    a.AdminName,
		AdminID:      a.AdminID,
		Email:        a.Email,
		Is2FAEnabled: a.Is2FAEnabled,
	}
}

// AdminProfile is what the settings page sees. It never carries secrets.
type AdminProfile struct {
	AdminName    string `json:"adminName"`
	AdminID      string `json:"adminId"`
	Email        string `json:"email"`
	Is2FAEnabled bool   `json:"is2FAEnabled"`
}
