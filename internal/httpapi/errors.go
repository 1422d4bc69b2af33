package httpapi

import (
	"errors"
	"net/http"

	"github.com/tantawy/erp/internal/errs"
)

// errorResponse is the standard error payload for the API.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeErr(w http.ResponseWriter, status int, msg, code string) {
	toJSON(w, status, errorResponse{Error: msg, Code: code})
}

func badRequest(w http.ResponseWriter, msg string) { writeErr(w, http.StatusBadRequest, msg, "") }
func notFound(w http.ResponseWriter)               { writeErr(w, http.StatusNotFound, "not_found", "not_found") }
func unprocessable(w http.ResponseWriter, msg string) {
	writeErr(w, http.StatusUnprocessableEntity, msg, "validation_error")
}

// writeCreateError maps a posting failure onto the API contract: validation
// rejections carry their specific reason, anything after the unit of work
// began is reported opaquely with confirmation that nothing was persisted.
func writeCreateError(w http.ResponseWriter, err error) {
	var verr *errs.ValidationError
	if errors.As(err, &verr) {
		unprocessable(w, verr.Reason)
		return
	}
	var cerr *errs.ConfigError
	if errors.As(err, &cerr) {
		writeErr(w, http.StatusInternalServerError,
			"error creating invoice: "+cerr.Error(), "config_error")
		return
	}
	writeErr(w, http.StatusInternalServerError,
		"error creating invoice: "+err.Error()+" (nothing was persisted)", "")
}
