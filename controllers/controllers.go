package controllers

import (
	"net/http"
	"strconv"

	"peerlearn_server/apperrors"
	"peerlearn_server/auth"
	"peerlearn_server/helpers"
)

// HealthCheckHandler provides a basic health check
func HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	helpers.WriteJSONResponse(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// WelcomeHandler provides a welcome message
func WelcomeHandler(w http.ResponseWriter, r *http.Request) {
	helpers.WriteJSONResponse(w, http.StatusOK, map[string]string{"message": "Welcome to the PeerLearn API."})
}

// currentUser returns the verified caller. Routes are mounted behind the
// auth middleware, so a missing identity is a wiring error.
func currentUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok || identity.UserID == "" {
		helpers.WriteError(w, apperrors.ErrUnauthenticated)
		return "", false
	}
	return identity.UserID, true
}

// queryInt parses an optional positive integer query parameter.
func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apperrors.InvalidArg(name + " must be a non-negative integer")
	}
	return n, nil
}
