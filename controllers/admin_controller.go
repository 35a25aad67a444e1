package controllers

import (
	"net/http"

	"github.com/gorilla/mux"

	"peerlearn_server/helpers"
	"peerlearn_server/services"
)

// AdminController exposes operator-only maintenance endpoints.
type AdminController struct {
	MatchService     *services.MatchService
	CommunityService *services.CommunityService
}

// NewAdminController initializes the admin controller
func NewAdminController(matches *services.MatchService, community *services.CommunityService) *AdminController {
	return &AdminController{MatchService: matches, CommunityService: community}
}

type purgeUserResponse struct {
	MatchesRemoved     int `json:"matchesRemoved"`
	MembershipsRemoved int `json:"membershipsRemoved"`
}

// HandlePurgeMatch - Remove any match with its conversation and messages
func (c *AdminController) HandlePurgeMatch(w http.ResponseWriter, r *http.Request) {
	if err := c.MatchService.PurgeMatch(r.Context(), mux.Vars(r)["matchId"]); err != nil {
		helpers.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandlePurgeUser - Remove a user's matches, their chats, and the user's memberships
func (c *AdminController) HandlePurgeUser(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]

	matches, err := c.MatchService.PurgeUserMatches(r.Context(), userID)
	if err != nil {
		helpers.WriteError(w, err)
		return
	}
	memberships, err := c.CommunityService.LeaveAll(r.Context(), userID)
	if err != nil {
		helpers.WriteError(w, err)
		return
	}
	helpers.WriteJSONResponse(w, http.StatusOK, purgeUserResponse{MatchesRemoved: matches, MembershipsRemoved: memberships})
}
