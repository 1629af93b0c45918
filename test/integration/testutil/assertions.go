//go:build integration

package testutil

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"
)

// Envelope mirrors the API result shape.
type Envelope struct {
	Success           bool              `json:"success"`
	Data              json.RawMessage   `json:"data"`
	ErrorKind         string            `json:"errorKind"`
	Message           string            `json:"message"`
	Fields            map[string]string `json:"fields"`
	RemainingAttempts *int              `json:"remainingAttempts"`
}

// DecodeEnvelope reads and decodes a response envelope.
func DecodeEnvelope(t *testing.T, resp *http.Response) Envelope {
	t.Helper()
	defer resp.Body.Close()
	var env Envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("DecodeEnvelope: %v", err)
	}
	return env
}

// DecodeData decodes the data field of a successful envelope into dst.
func DecodeData(t *testing.T, resp *http.Response, dst interface{}) {
	t.Helper()
	env := DecodeEnvelope(t, resp)
	if !env.Success {
		t.Fatalf("DecodeData: request failed: %s %s", env.ErrorKind, env.Message)
	}
	if err := json.Unmarshal(env.Data, dst); err != nil {
		t.Fatalf("DecodeData: %v", err)
	}
}

// AssertStatus checks that the response has the expected HTTP status code.
func AssertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

// AssertErrorKind checks that the response envelope carries the expected error kind.
func AssertErrorKind(t *testing.T, resp *http.Response, expected string) Envelope {
	t.Helper()
	env := DecodeEnvelope(t, resp)
	if env.ErrorKind != expected {
		t.Errorf("expected error kind %q, got %q (message: %s)", expected, env.ErrorKind, env.Message)
	}
	return env
}

// AssertStored2FA checks the 2FA columns of the stored row, including the pin/flag pairing.
func AssertStored2FA(t *testing.T, env *TestEnv, enabled bool) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var flag, hasPIN bool
	err := env.Pool.QueryRow(ctx,
		"SELECT is_2fa_enabled, pin_hash IS NOT NULL FROM admin_account WHERE slot").Scan(&flag, &hasPIN)
	if err != nil {
		t.Fatalf("AssertStored2FA: query: %v", err)
	}
	if flag != enabled || hasPIN != enabled {
		t.Errorf("2FA: expected enabled=%v, got flag=%v pin=%v", enabled, flag, hasPIN)
	}
}
