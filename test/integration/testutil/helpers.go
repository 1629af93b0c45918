//go:build integration

package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
)

// Credentials used by CreateAdmin and Login.
const (
	AdminName     = "Integration Admin"
	AdminID       = "integration"
	AdminEmail    = "admin@integration.test"
	AdminPassword = "integration-pass"
)

// LoginData is the data of a login step response.
type LoginData struct {
	Phase             string `json:"phase"`
	ChallengeID       string `json:"challengeId"`
	RemainingAttempts *int   `json:"remainingAttempts"`
	Token             string `json:"token"`
}

// CreateAdmin creates the admin account through the API.
func (env *TestEnv) CreateAdmin() {
	env.t.Helper()
	resp := env.POST("/admin/account", map[string]string{
		"adminName":       AdminName,
		"adminId":         AdminID,
		"email":           AdminEmail,
		"password":        AdminPassword,
		"confirmPassword": AdminPassword,
	}, "")
	AssertStatus(env.t, resp, http.StatusCreated)
	resp.Body.Close()
}

// Login runs the credentials step and returns its result.
func (env *TestEnv) Login() LoginData {
	env.t.Helper()
	resp := env.POST("/admin/login", map[string]string{
		"adminName": AdminName,
		"adminId":   AdminID,
		"email":     AdminEmail,
		"password":  AdminPassword,
	}, "")
	AssertStatus(env.t, resp, http.StatusOK)
	var data LoginData
	DecodeData(env.t, resp, &data)
	return data
}

// POST performs a JSON POST request, with a bearer token when token is set.
func (env *TestEnv) POST(path string, body interface{}, token string) *http.Response {
	env.t.Helper()
	return env.do(http.MethodPost, path, body, token)
}

// PUT performs a JSON PUT request, with a bearer token when token is set.
func (env *TestEnv) PUT(path string, body interface{}, token string) *http.Response {
	env.t.Helper()
	return env.do(http.MethodPut, path, body, token)
}

// GET performs an unauthenticated GET request.
func (env *TestEnv) GET(path string) *http.Response {
	env.t.Helper()
	return env.do(http.MethodGet, path, nil, "")
}

// AuthGET performs an authenticated GET request.
func (env *TestEnv) AuthGET(path, token string) *http.Response {
	env.t.Helper()
	return env.do(http.MethodGet, path, nil, token)
}

func (env *TestEnv) do(method, path string, body interface{}, token string) *http.Response {
	env.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			env.t.Fatalf("%s %s: encode body: %v", method, path, err)
		}
	}
	req, err := http.NewRequest(method, env.Server.URL+path, &buf)
	if err != nil {
		env.t.Fatalf("%s %s: new request: %v", method, path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		env.t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}
