package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/attaboy/siteadmin/internal/domain"
)

// MaxBodyBytes bounds every decoded request body.
const MaxBodyBytes = 1 << 20

// Envelope is the result shape of every endpoint.
type Envelope struct {
	Success           bool              `json:"success"`
	Data              any               `json:"data,omitempty"`
	ErrorKind         string            `json:"errorKind,omitempty"`
	Message           string            `json:"message"`
	Fields            map[string]string `json:"fields,omitempty"`
	RemainingAttempts *int              `json:"remainingAttempts,omitempty"`
}

// RespondJSON writes a JSON response with the given status code.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// RespondOK writes a successful envelope.
func RespondOK(w http.ResponseWriter, status int, message string, data any) {
	RespondJSON(w, status, Envelope{Success: true, Data: data, Message: message})
}

// RespondError writes a failed envelope, detecting domain.AppError for status codes.
// Internal errors never expose their message.
func RespondError(w http.ResponseWriter, err error) {
	var appErr *domain.AppError
	if errors.As(err, &appErr) && appErr.Code != domain.CodeInternal {
		RespondJSON(w, appErr.Status, Envelope{
			ErrorKind:         appErr.Code,
			Message:           appErr.Message,
			Fields:            appErr.Fields,
			RemainingAttempts: appErr.RemainingAttempts,
		})
		return
	}
	RespondJSON(w, http.StatusInternalServerError, Envelope{
		ErrorKind: domain.CodeInternal,
		Message:   "internal server error",
	})
}

// DecodeJSON reads and decodes a JSON request body into dst. The body is capped
// at MaxBodyBytes and must hold exactly one JSON value.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return domain.ErrValidation(fmt.Sprintf("request body must not exceed %d bytes", MaxBodyBytes))
		}
		return domain.ErrValidation("invalid request body")
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return domain.ErrValidation("request body must contain a single JSON object")
	}
	return nil
}
