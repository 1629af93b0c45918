package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/attaboy/siteadmin/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func setupEnv(t *testing.T) string {
	t.Helper()
	t.Setenv("BCRYPT_COST", "4")
	t.Setenv("STORE_DRIVER", "file")
	t.Setenv("KAFKA_ENABLED", "false")
	t.Setenv("REVALIDATE_URL", "")
	return t.TempDir()
}

func statusOf(t *testing.T, dir string) statusReport {
	t.Helper()
	out, err := execute(t, "", "status", "--json", "--data-dir", dir)
	require.NoError(t, err)
	var report statusReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	return report
}

func TestStatus_NoAccount(t *testing.T) {
	dir := setupEnv(t)

	out, err := execute(t, "", "status", "--data-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "No admin account")

	assert.False(t, statusOf(t, dir).Exists)
}

func TestInit(t *testing.T) {
	dir := setupEnv(t)

	out, err := execute(t, "Secret123!\nSecret123!\n",
		"init", "--data-dir", dir, "--name", "Owner", "--id", "owner", "--email", "owner@example.com")
	require.NoError(t, err)
	assert.Contains(t, out, `"owner"`)

	out, err = execute(t, "", "status", "--no-color", "--data-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "owner@example.com")
	assert.Contains(t, out, "disabled")

	report := statusOf(t, dir)
	assert.True(t, report.Exists)
	assert.Equal(t, "owner", report.AdminID)
	assert.False(t, report.Is2FAEnabled)

	_, err = execute(t, "Secret123!\nSecret123!\n",
		"init", "--data-dir", dir, "--name", "Other", "--id", "other", "--email", "other@example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestInit_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		stdin   string
		email   string
		wantErr string
	}{
		{"passwords differ", "Secret123!\nSecret123?\n", "owner@example.com", "do not match"},
		{"short password", "short\nshort\n", "owner@example.com", "password"},
		{"bad email", "Secret123!\nSecret123!\n", "nope", "email"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := setupEnv(t)
			_, err := execute(t, tt.stdin, "init", "--data-dir", dir, "--name", "Owner", "--id", "owner", "--email", tt.email)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.False(t, statusOf(t, dir).Exists)
		})
	}
}

func TestHashSecret(t *testing.T) {
	setupEnv(t)

	out, err := execute(t, "recovery-code-0001\nrecovery-code-0001\n", "hash-secret")
	require.NoError(t, err)
	hash := strings.TrimSpace(out)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("recovery-code-0001")))

	_, err = execute(t, "short\nshort\n", "hash-secret")
	assert.Error(t, err)
}

func TestRecover(t *testing.T) {
	dir := setupEnv(t)
	hash, err := bcrypt.GenerateFromPassword([]byte("recovery-code-0001"), bcrypt.MinCost)
	require.NoError(t, err)
	t.Setenv("SUPER_ACTION_CODE_HASH", string(hash))

	_, err = execute(t, "Secret123!\nSecret123!\n",
		"init", "--data-dir", dir, "--name", "Owner", "--id", "owner", "--email", "owner@example.com")
	require.NoError(t, err)

	out, err := execute(t, "", "recover", "--data-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "already disabled")

	s, err := openSession(t.Context(), newRootCmd(), &rootOptions{dataDir: dir})
	require.NoError(t, err)
	require.NoError(t, s.twoFactor.Enable(t.Context(), "owner", "123456", "123456"))
	s.Close()
	assert.True(t, statusOf(t, dir).Is2FAEnabled)

	_, err = execute(t, "wrong-code\n", "recover", "--data-dir", dir)
	require.Error(t, err)
	assert.True(t, statusOf(t, dir).Is2FAEnabled)

	out, err = execute(t, "recovery-code-0001\n", "recover", "--data-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "2FA disabled")
	assert.False(t, statusOf(t, dir).Is2FAEnabled)
}

func TestStatus_SQLiteDriver(t *testing.T) {
	dir := setupEnv(t)

	_, err := execute(t, "Secret123!\nSecret123!\n",
		"init", "--driver", "sqlite", "--data-dir", dir, "--name", "Owner", "--id", "owner", "--email", "owner@example.com")
	require.NoError(t, err)

	out, err := execute(t, "", "status", "--json", "--driver", "sqlite", "--data-dir", dir)
	require.NoError(t, err)
	var report statusReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.True(t, report.Exists)
	assert.Equal(t, "owner", report.AdminID)

	assert.False(t, statusOf(t, dir).Exists, "file driver does not see the sqlite record")
}

func TestOpenSession_RejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		driver  string
		wantErr string
	}{
		{"unknown driver", nil, "mysql", "STORE_DRIVER"},
		{"plain text recovery code", map[string]string{"SUPER_ACTION_CODE_HASH": "letmein"}, "", "SUPER_ACTION_CODE_HASH"},
		{"bcrypt cost out of range", map[string]string{"BCRYPT_COST": "99"}, "", "BCRYPT_COST"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := setupEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			args := []string{"status", "--data-dir", dir}
			if tt.driver != "" {
				args = append(args, "--driver", tt.driver)
			}
			_, err := execute(t, "", args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid config")
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestHashSecret_WorksWithMalformedRecoveryHash(t *testing.T) {
	setupEnv(t)
	t.Setenv("SUPER_ACTION_CODE_HASH", "letmein")

	out, err := execute(t, "recovery-code-0001\nrecovery-code-0001\n", "hash-secret")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(strings.TrimSpace(out), "$2"))
}

func TestDescribe_SortsFields(t *testing.T) {
	err := domain.ErrValidationFields(map[string]string{
		"password": "too short",
		"adminId":  "required",
		"email":    "invalid",
	})
	for i := 0; i < 10; i++ {
		assert.Equal(t,
			"please correct the highlighted fields\n  adminId: required\n  email: invalid\n  password: too short",
			describe(err).Error())
	}
}
