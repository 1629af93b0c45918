package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Validator Tests ---

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		name    string
		email   string
		wantErr bool
		errMsg  string
	}{
		{"valid email", "user@example.com", false, ""},
		{"valid email with dots", "first.last@example.co.uk", false, ""},
		{"valid email with plus", "user+tag@example.com", false, ""},
		{"short domain", "a@x.com", false, ""},
		{"empty string", "", true, "email is required"},
		{"no at sign", "userexample.com", true, "invalid email format"},
		{"no domain", "user@", true, "invalid email format"},
		{"double at", "user@@example.com", true, "invalid email format"},
		{"no tld", "user@example", true, "invalid email format"},
		{"spaces", "user @example.com", true, "invalid email format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEmail(tt.email)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestValidatePIN(t *testing.T) {
	tests := []struct {
		name    string
		pin     string
		wantErr bool
	}{
		{"six digits", "123456", false},
		{"leading zeros", "000001", false},
		{"five digits", "12345", true},
		{"seven digits", "1234567", true},
		{"letters", "12a456", true},
		{"empty", "", true},
		{"unicode digits", "١٢٣٤٥٦", true},
		{"whitespace", " 123456", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePIN(tt.pin)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateAdminID(t *testing.T) {
	assert.NoError(t, ValidateAdminID("id1"))
	assert.NoError(t, ValidateAdminID("site-admin_01"))
	assert.Error(t, ValidateAdminID(""))
	assert.Error(t, ValidateAdminID("ab"))
	assert.Error(t, ValidateAdminID("has space"))
}

func TestValidatePasswordAndName(t *testing.T) {
	assert.NoError(t, ValidatePassword("Secret123!"))
	assert.Error(t, ValidatePassword("short"))
	assert.NoError(t, ValidateAdminName("A"))
	assert.Error(t, ValidateAdminName("   "))
}

func TestFieldErrors(t *testing.T) {
	f := FieldErrors{}
	f.Check("email", nil)
	require.NoError(t, f.Err())

	f.Check("email", errors.New("first"))
	f.Check("email", errors.New("second"))
	err := f.Err()
	require.Error(t, err)

	var appErr *AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, CodeValidation, appErr.Code)
	assert.Equal(t, "first", appErr.Fields["email"])
}

// --- AdminAccount Tests ---

func validAccount() AdminAccount {
	return AdminAccount{
		AdminName:    "A",
		AdminID:      "id1",
		Email:        "a@x.com",
		PasswordHash: "$2a$10$hash",
	}
}

func TestAdminAccountValidate(t *testing.T) {
	t.Run("valid without 2FA", func(t *testing.T) {
		assert.NoError(t, validAccount().Validate())
	})

	t.Run("enabled without pin", func(t *testing.T) {
		a := validAccount()
		a.Is2FAEnabled = true
		assert.Error(t, a.Validate())
	})

	t.Run("pin without enabled flag", func(t *testing.T) {
		a := validAccount()
		pin := "hash"
		a.PINHash = &pin
		assert.Error(t, a.Validate())
	})

	t.Run("missing password", func(t *testing.T) {
		a := validAccount()
		a.PasswordHash = ""
		assert.Error(t, a.Validate())
	})
}

func TestAdminAccountTwoFactorToggle(t *testing.T) {
	a := validAccount()
	a.EnableTwoFactor("pinhash")
	require.NoError(t, a.Validate())
	assert.True(t, a.Is2FAEnabled)
	require.NotNil(t, a.PINHash)

	a.DisableTwoFactor()
	require.NoError(t, a.Validate())
	assert.False(t, a.Is2FAEnabled)
	assert.Nil(t, a.PINHash)
}

func TestAdminAccountJSONShape(t *testing.T) {
	data, err := json.Marshal(validAccount())
	require.NoError(t, err)

	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &m))
	for _, key := range []string{"adminName", "adminId", "email", "password", "is2FAEnabled", "pin"} {
		assert.Contains(t, m, key)
	}
	assert.Nil(t, m["pin"])
}

func TestProfileOmitsSecrets(t *testing.T) {
	a := validAccount()
	a.EnableTwoFactor("pinhash")
	data, err := json.Marshal(a.Profile())
	require.NoError(t, err)
	assert.NotContains(t, string(data), "password")
	assert.NotContains(t, string(data), "pinhash")
	assert.Contains(t, string(data), `"is2FAEnabled":true`)
}

// --- LoginAttempt Tests ---

func TestLoginAttempt_LockoutBoundary(t *testing.T) {
	l := NewLoginAttempt("c1")
	require.NoError(t, l.BeginPINChallenge("id1", time.Now().Add(time.Minute)))

	for i := 1; i < MaxPINAttempts; i++ {
		remaining, err := l.RecordPINFailure()
		require.NoError(t, err)
		assert.Equal(t, MaxPINAttempts-i, remaining)
		assert.Equal(t, PhasePINChallenge, l.Phase, "failure %d must not lock", i)
	}

	remaining, err := l.RecordPINFailure()
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)
	assert.Equal(t, PhaseLocked, l.Phase)

	_, err = l.RecordPINFailure()
	assert.ErrorIs(t, err, ErrPhaseTransition)
}

func TestLoginAttempt_BypassResets(t *testing.T) {
	l := NewLoginAttempt("c1")
	require.NoError(t, l.BeginPINChallenge("id1", time.Time{}))
	for i := 0; i < MaxPINAttempts; i++ {
		_, _ = l.RecordPINFailure()
	}
	require.Equal(t, PhaseLocked, l.Phase)
	assert.ErrorIs(t, l.Authenticate(), ErrPhaseTransition)

	require.NoError(t, l.ResetAfterBypass())
	assert.Equal(t, PhaseCredentials, l.Phase)
	assert.Equal(t, 0, l.AttemptCount)
}

func TestLoginAttempt_InvalidTransitions(t *testing.T) {
	l := NewLoginAttempt("c1")
	assert.ErrorIs(t, l.ResetAfterBypass(), ErrPhaseTransition)
	_, err := l.RecordPINFailure()
	assert.ErrorIs(t, err, ErrPhaseTransition)

	require.NoError(t, l.Authenticate())
	assert.ErrorIs(t, l.BeginPINChallenge("id1", time.Time{}), ErrPhaseTransition)
}

func TestLoginAttempt_Expired(t *testing.T) {
	now := time.Now()
	l := NewLoginAttempt("c1")
	assert.False(t, l.Expired(now), "zero deadline never expires")

	require.NoError(t, l.BeginPINChallenge("id1", now.Add(-time.Second)))
	assert.True(t, l.Expired(now))
}

// --- Error Tests ---

func TestAppError(t *testing.T) {
	cause := errors.New("disk full")
	err := ErrStorage("save admin", cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "STORAGE_ERROR")
	assert.Equal(t, CodeStorage, CodeOf(err))
	assert.Equal(t, CodeInternal, CodeOf(cause))

	wrong := ErrWrongPIN(3)
	require.NotNil(t, wrong.RemainingAttempts)
	assert.Equal(t, 3, *wrong.RemainingAttempts)

	locked := ErrPINLocked()
	require.NotNil(t, locked.RemainingAttempts)
	assert.Equal(t, 0, *locked.RemainingAttempts)
	assert.Equal(t, 423, locked.Status)
}

func TestNewAdminSettingsChanged(t *testing.T) {
	ev := NewAdminSettingsChanged("profile updated")
	assert.Equal(t, TagAdminSettings, ev.Tag)
	assert.Equal(t, AdminSettingsPath, ev.Path)
	assert.NotEqual(t, [16]byte{}, [16]byte(ev.EventID))
	assert.False(t, ev.OccurredAt.IsZero())
}
