//go:build integration

package integration

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/attaboy/siteadmin/internal/domain"
	"github.com/attaboy/siteadmin/internal/repository"
	"github.com/attaboy/siteadmin/test/integration/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ─── Repository ────────────────────────────────────────────────────────────

func account(id string) domain.AdminAccount {
	return domain.AdminAccount{
		AdminName:    "Owner",
		AdminID:      id,
		Email:        id + "@example.com",
		PasswordHash: "$2a$04$placeholderplaceholderplaceholderplaceholderplacehold",
	}
}

func TestPgRepo_EmptySlot(t *testing.T) {
	env := testutil.NewTestEnv(t)
	ctx := context.Background()

	got, err := env.Repo.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = env.Repo.Update(ctx, func(*domain.AdminAccount) error { return nil })
	assert.ErrorIs(t, err, repository.ErrAdminNotFound)
}

func TestPgRepo_SingleSlot(t *testing.T) {
	env := testutil.NewTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.Repo.Create(ctx, account("first")))
	err := env.Repo.Create(ctx, account("second"))
	assert.ErrorIs(t, err, repository.ErrAdminExists)

	got, err := env.Repo.Get(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "first", got.AdminID)
}

func TestPgRepo_ConcurrentCreate(t *testing.T) {
	env := testutil.NewTestEnv(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = env.Repo.Create(ctx, account("racer"))
		}(i)
	}
	wg.Wait()

	created := 0
	for _, err := range errs {
		if err == nil {
			created++
			continue
		}
		assert.ErrorIs(t, err, repository.ErrAdminExists)
	}
	assert.Equal(t, 1, created)
}

func TestPgRepo_UpdateRules(t *testing.T) {
	env := testutil.NewTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.Repo.Create(ctx, account("owner")))

	t.Run("applies mutation", func(t *testing.T) {
		updated, err := env.Repo.Update(ctx, func(a *domain.AdminAccount) error {
			a.EnableTwoFactor("$2a$04$pinhash")
			return nil
		})
		require.NoError(t, err)
		assert.True(t, updated.Is2FAEnabled)
		testutil.AssertStored2FA(t, env, true)
	})

	t.Run("callback error writes nothing", func(t *testing.T) {
		sentinel := errors.New("stop")
		_, err := env.Repo.Update(ctx, func(a *domain.AdminAccount) error {
			a.DisableTwoFactor()
			return sentinel
		})
		assert.ErrorIs(t, err, sentinel)
		testutil.AssertStored2FA(t, env, true)
	})

	t.Run("admin id is immutable", func(t *testing.T) {
		_, err := env.Repo.Update(ctx, func(a *domain.AdminAccount) error {
			a.AdminID = "someone-else"
			return nil
		})
		assert.ErrorIs(t, err, repository.ErrAdminIDChanged)
	})

	t.Run("flag without pin is rejected", func(t *testing.T) {
		_, err := env.Repo.Update(ctx, func(a *domain.AdminAccount) error {
			a.PINHash = nil
			return nil
		})
		require.Error(t, err)
		testutil.AssertStored2FA(t, env, true)
	})
}

func TestPgSchema_PinFlagConstraint(t *testing.T) {
	env := testutil.NewTestEnv(t)
	ctx := context.Background()

	_, err := env.Pool.Exec(ctx, `
		INSERT INTO admin_account (admin_name, admin_id, email, password_hash, is_2fa_enabled, pin_hash)
		VALUES ('Owner', 'owner', 'o@example.com', 'x', TRUE, NULL)`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "admin_account_pin_iff_2fa")
}

func TestPgRepo_ConcurrentUpdates(t *testing.T) {
	env := testutil.NewTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.Repo.Create(ctx, account("owner")))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := env.Repo.Update(ctx, func(a *domain.AdminAccount) error {
				if i%2 == 0 {
					a.EnableTwoFactor("$2a$04$pinhash")
				} else {
					a.DisableTwoFactor()
				}
				return nil
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got, err := env.Repo.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, got.Is2FAEnabled, got.PINHash != nil)
}

// ─── HTTP flow ─────────────────────────────────────────────────────────────

func TestHealth_Postgres(t *testing.T) {
	env := testutil.NewTestEnv(t)
	resp := env.GET("/health")
	testutil.AssertStatus(t, resp, http.StatusOK)
	assert.True(t, testutil.DecodeEnvelope(t, resp).Success)
}

func TestAdminFlow_WithoutTwoFactor(t *testing.T) {
	env := testutil.NewTestEnv(t)

	var exists struct {
		Exists bool `json:"exists"`
	}
	testutil.DecodeData(t, env.GET("/admin/exists"), &exists)
	assert.False(t, exists.Exists)

	env.CreateAdmin()
	testutil.DecodeData(t, env.GET("/admin/exists"), &exists)
	assert.True(t, exists.Exists)

	login := env.Login()
	assert.Equal(t, string(domain.PhaseAuthenticated), login.Phase)
	require.NotEmpty(t, login.Token)

	resp := env.AuthGET("/admin/profile", login.Token)
	testutil.AssertStatus(t, resp, http.StatusOK)
	var profile domain.AdminProfile
	testutil.DecodeData(t, resp, &profile)
	assert.Equal(t, testutil.AdminID, profile.AdminID)
	assert.False(t, profile.Is2FAEnabled)
}

func TestAdminFlow_CreateTwice(t *testing.T) {
	env := testutil.NewTestEnv(t)
	env.CreateAdmin()

	resp := env.POST("/admin/account", map[string]string{
		"adminName":       "Other",
		"adminId":         "other",
		"email":           "other@integration.test",
		"password":        "other-pass-1",
		"confirmPassword": "other-pass-1",
	}, "")
	testutil.AssertStatus(t, resp, http.StatusConflict)
	testutil.AssertErrorKind(t, resp, domain.CodeAlreadyExists)
}

func TestAdminFlow_TwoFactorLockoutAndRecovery(t *testing.T) {
	env := testutil.NewTestEnv(t)
	env.CreateAdmin()
	token := env.Login().Token

	resp := env.POST("/admin/2fa/enable", map[string]string{"newPin": "482913", "confirmNewPin": "482913"}, token)
	testutil.AssertStatus(t, resp, http.StatusOK)
	resp.Body.Close()
	testutil.AssertStored2FA(t, env, true)

	challenge := env.Login()
	require.Equal(t, string(domain.PhasePINChallenge), challenge.Phase)
	require.NotEmpty(t, challenge.ChallengeID)
	assert.Empty(t, challenge.Token)

	for remaining := 4; remaining >= 1; remaining-- {
		resp := env.POST("/admin/login/pin", map[string]string{"challengeId": challenge.ChallengeID, "pin": "000000"}, "")
		testutil.AssertStatus(t, resp, http.StatusUnauthorized)
		body := testutil.AssertErrorKind(t, resp, domain.CodeInvalidCredentials)
		require.NotNil(t, body.RemainingAttempts)
		assert.Equal(t, remaining, *body.RemainingAttempts)
	}

	resp = env.POST("/admin/login/pin", map[string]string{"challengeId": challenge.ChallengeID, "pin": "000000"}, "")
	testutil.AssertStatus(t, resp, http.StatusLocked)
	testutil.AssertErrorKind(t, resp, domain.CodePINLocked)

	// Locked challenges refuse the correct PIN too.
	resp = env.POST("/admin/login/pin", map[string]string{"challengeId": challenge.ChallengeID, "pin": "482913"}, "")
	testutil.AssertStatus(t, resp, http.StatusLocked)
	resp.Body.Close()

	resp = env.POST("/admin/login/recover", map[string]string{"challengeId": challenge.ChallengeID, "superActionCode": testutil.TestRecoveryCode}, "")
	testutil.AssertStatus(t, resp, http.StatusOK)
	resp.Body.Close()
	testutil.AssertStored2FA(t, env, false)

	login := env.Login()
	assert.Equal(t, string(domain.PhaseAuthenticated), login.Phase)
	assert.NotEmpty(t, login.Token)
}

func TestAdminFlow_PINStepAuthenticates(t *testing.T) {
	env := testutil.NewTestEnv(t)
	env.CreateAdmin()
	token := env.Login().Token

	resp := env.POST("/admin/2fa/enable", map[string]string{"newPin": "482913", "confirmNewPin": "482913"}, token)
	testutil.AssertStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	challenge := env.Login()
	resp = env.POST("/admin/login/pin", map[string]string{"challengeId": challenge.ChallengeID, "pin": "482913"}, "")
	testutil.AssertStatus(t, resp, http.StatusOK)
	var data testutil.LoginData
	testutil.DecodeData(t, resp, &data)
	assert.Equal(t, string(domain.PhaseAuthenticated), data.Phase)
	require.NotEmpty(t, data.Token)

	claims, err := env.JWTMgr.ValidateToken(data.Token)
	require.NoError(t, err)
	assert.Equal(t, testutil.AdminID, claims.Subject)

	resp = env.POST("/admin/2fa/disable", map[string]string{"currentPinOrPassword": testutil.AdminPassword}, data.Token)
	testutil.AssertStatus(t, resp, http.StatusOK)
	resp.Body.Close()
	testutil.AssertStored2FA(t, env, false)
}

func TestAdminFlow_ProfileUpdatePersists(t *testing.T) {
	env := testutil.NewTestEnv(t)
	env.CreateAdmin()
	token := env.Login().Token

	resp := env.PUT("/admin/profile", map[string]string{
		"adminName": "Renamed Admin",
		"adminId":   testutil.AdminID,
		"email":     "renamed@integration.test",
	}, token)
	testutil.AssertStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	stored, err := env.Repo.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Renamed Admin", stored.AdminName)
	assert.Equal(t, "renamed@integration.test", stored.Email)
	assert.Equal(t, testutil.AdminID, stored.AdminID)
}
