package handler

import (
	"net/http"

	"github.com/attaboy/siteadmin/internal/auth"
	"github.com/attaboy/siteadmin/internal/domain"
	"github.com/attaboy/siteadmin/internal/service"
	"github.com/go-chi/chi/v5"
)

// AdminHandler serves the admin account, login and 2FA endpoints.
type AdminHandler struct {
	admins    *service.AdminService
	twoFactor *service.TwoFactorService
	login     *service.LoginService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(admins *service.AdminService, twoFactor *service.TwoFactorService, login *service.LoginService) *AdminHandler {
	return &AdminHandler{admins: admins, twoFactor: twoFactor, login: login}
}

type pinStepRequest struct {
	ChallengeID string `json:"challengeId"`
	PIN         string `json:"pin"`
}

type recoverRequest struct {
	ChallengeID string `json:"challengeId"`
	Code        string `json:"superActionCode"`
}

type enableRequest struct {
	NewPIN        string `json:"newPin"`
	ConfirmNewPIN string `json:"confirmNewPin"`
}

type changePINRequest struct {
	CurrentPIN    string `json:"currentPin"`
	NewPIN        string `json:"newPin"`
	ConfirmNewPIN string `json:"confirmNewPin"`
}

type disableRequest struct {
	CurrentPINOrPassword string `json:"currentPinOrPassword"`
}

// Exists handles GET /admin/exists.
func (h *AdminHandler) Exists(w http.ResponseWriter, r *http.Request) {
	exists, err := h.admins.Exists(r.Context())
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondOK(w, http.StatusOK, "", map[string]bool{"exists": exists})
}

// CreateAccount handles POST /admin/account.
func (h *AdminHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var input service.CreateAccountInput
	if err := DecodeJSON(w, r, &input); err != nil {
		RespondError(w, err)
		return
	}

	profile, err := h.admins.Create(r.Context(), input)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondOK(w, http.StatusCreated, "admin account created", profile)
}

// Login handles POST /admin/login.
func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	var input service.Credentials
	if err := DecodeJSON(w, r, &input); err != nil {
		RespondError(w, err)
		return
	}

	result, err := h.login.Begin(r.Context(), input)
	if err != nil {
		RespondError(w, err)
		return
	}
	if result.Phase == domain.PhasePINChallenge {
		RespondOK(w, http.StatusOK, "enter your PIN", result)
		return
	}
	RespondOK(w, http.StatusOK, "signed in", result)
}

// VerifyPIN handles POST /admin/login/pin.
func (h *AdminHandler) VerifyPIN(w http.ResponseWriter, r *http.Request) {
	var input pinStepRequest
	if err := DecodeJSON(w, r, &input); err != nil {
		RespondError(w, err)
		return
	}
	if input.ChallengeID == "" {
		RespondError(w, domain.ErrValidationFields(map[string]string{"challengeId": "challenge ID is required"}))
		return
	}

	result, err := h.login.VerifyPIN(r.Context(), input.ChallengeID, input.PIN)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondOK(w, http.StatusOK, "signed in", result)
}

// ChallengeStatus handles GET /admin/login/{challengeId}.
func (h *AdminHandler) ChallengeStatus(w http.ResponseWriter, r *http.Request) {
	result, err := h.login.Challenge(chi.URLParam(r, "challengeId"))
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondOK(w, http.StatusOK, "", result)
}

// Recover handles POST /admin/login/recover.
func (h *AdminHandler) Recover(w http.ResponseWriter, r *http.Request) {
	var input recoverRequest
	if err := DecodeJSON(w, r, &input); err != nil {
		RespondError(w, err)
		return
	}
	if input.ChallengeID == "" {
		RespondError(w, domain.ErrValidationFields(map[string]string{"challengeId": "challenge ID is required"}))
		return
	}

	result, err := h.login.BypassLockout(r.Context(), input.ChallengeID, input.Code)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondOK(w, http.StatusOK, "two-factor authentication disabled; sign in again", result)
}

// GetProfile handles GET /admin/profile.
func (h *AdminHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	adminID, ok := actor(w, r)
	if !ok {
		return
	}

	profile, err := h.admins.GetProfile(r.Context())
	if err != nil {
		RespondError(w, err)
		return
	}
	if profile.AdminID != adminID {
		RespondError(w, domain.ErrUnauthorized("session does not belong to the current admin"))
		return
	}
	RespondOK(w, http.StatusOK, "", profile)
}

// UpdateProfile handles PUT /admin/profile.
func (h *AdminHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	adminID, ok := actor(w, r)
	if !ok {
		return
	}
	var input service.UpdateProfileInput
	if err := DecodeJSON(w, r, &input); err != nil {
		RespondError(w, err)
		return
	}

	profile, err := h.admins.UpdateProfile(r.Context(), adminID, input)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondOK(w, http.StatusOK, "profile updated", profile)
}

// TwoFactorStatus handles GET /admin/2fa.
func (h *AdminHandler) TwoFactorStatus(w http.ResponseWriter, r *http.Request) {
	adminID, ok := actor(w, r)
	if !ok {
		return
	}

	enabled, err := h.twoFactor.Status(r.Context(), adminID)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondOK(w, http.StatusOK, "", map[string]bool{"is2FAEnabled": enabled})
}

// EnableTwoFactor handles POST /admin/2fa/enable.
func (h *AdminHandler) EnableTwoFactor(w http.ResponseWriter, r *http.Request) {
	adminID, ok := actor(w, r)
	if !ok {
		return
	}
	var input enableRequest
	if err := DecodeJSON(w, r, &input); err != nil {
		RespondError(w, err)
		return
	}

	if err := h.twoFactor.Enable(r.Context(), adminID, input.NewPIN, input.ConfirmNewPIN); err != nil {
		RespondError(w, err)
		return
	}
	RespondOK(w, http.StatusOK, "two-factor authentication enabled", map[string]bool{"is2FAEnabled": true})
}

// ChangePIN handles POST /admin/2fa/pin.
func (h *AdminHandler) ChangePIN(w http.ResponseWriter, r *http.Request) {
	adminID, ok := actor(w, r)
	if !ok {
		return
	}
	var input changePINRequest
	if err := DecodeJSON(w, r, &input); err != nil {
		RespondError(w, err)
		return
	}

	if err := h.twoFactor.ChangePIN(r.Context(), adminID, input.CurrentPIN, input.NewPIN, input.ConfirmNewPIN); err != nil {
		RespondError(w, err)
		return
	}
	RespondOK(w, http.StatusOK, "PIN changed", nil)
}

// DisableTwoFactor handles POST /admin/2fa/disable.
func (h *AdminHandler) DisableTwoFactor(w http.ResponseWriter, r *http.Request) {
	adminID, ok := actor(w, r)
	if !ok {
		return
	}
	var input disableRequest
	if err := DecodeJSON(w, r, &input); err != nil {
		RespondError(w, err)
		return
	}

	if err := h.twoFactor.Disable(r.Context(), adminID, input.CurrentPINOrPassword); err != nil {
		RespondError(w, err)
		return
	}
	RespondOK(w, http.StatusOK, "two-factor authentication disabled", map[string]bool{"is2FAEnabled": false})
}

func actor(w http.ResponseWriter, r *http.Request) (string, bool) {
	adminID := auth.SubjectFromContext(r.Context())
	if adminID == "" {
		RespondError(w, domain.ErrUnauthorized("missing admin session"))
		return "", false
	}
	return adminID, true
}
