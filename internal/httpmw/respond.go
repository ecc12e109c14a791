// Package httpmw provides the HTTP middleware chain (recovery, logging,
// rate limiting, CORS, body limits) and the shared JSON response writer
// used across every route.
package httpmw

import (
	"encoding/json"
	"net/http"

	"github.com/chigozirigeorge/omnixec-sub000/internal/svcerrors"
)

type errorBody struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// WriteJSON writes v as a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps err to its ServiceError HTTP status and body, defaulting
// to 500/INTERNAL for errors that never went through svcerrors.
func WriteError(w http.ResponseWriter, err error) {
	se := svcerrors.As(err)
	if se == nil {
		WriteJSON(w, http.StatusInternalServerError, errorBody{Code: string(svcerrors.CodeInternal), Message: "internal server error"})
		return
	}
	WriteJSON(w, se.HTTPStatus, errorBody{Code: string(se.Code), Message: se.Message, Details: se.Details})
}
