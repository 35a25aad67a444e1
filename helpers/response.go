package helpers

import (
	"encoding/json"
	"net/http"

	"peerlearn_server/apperrors"
)

// APIError is the JSON body of every error response.
type APIError struct {
	Code    apperrors.Code `json:"code"`
	Message string         `json:"message"`
}

// WriteJSONResponse writes payload as JSON with the given status.
func WriteJSONResponse(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

// WriteError maps err onto an HTTP status and a {code, message} body.
func WriteError(w http.ResponseWriter, err error) {
	code := apperrors.CodeOf(err)
	WriteJSONResponse(w, StatusFor(code), APIError{Code: code, Message: apperrors.MessageOf(err)})
}

// StatusFor returns the HTTP status used for an error code.
func StatusFor(code apperrors.Code) int {
	switch code {
	case apperrors.CodeInvalidArgument, apperrors.CodeInvalidPair, apperrors.CodeEmptyContent:
		return http.StatusBadRequest
	case apperrors.CodeUnauthenticated:
		return http.StatusUnauthorized
	case apperrors.CodeUnauthorized, apperrors.CodeForbidden:
		return http.StatusForbidden
	case apperrors.CodeNotFound:
		return http.StatusNotFound
	case apperrors.CodeRegistryUnavailable, apperrors.CodeStorageUnavailable, apperrors.CodeScoringUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// DecodeJSON decodes the request body into dst, rejecting unknown fields.
func DecodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperrors.Wrap(apperrors.CodeInvalidArgument, "invalid request body", err)
	}
	return nil
}
