package controllers

import (
	"net/http"

	"peerlearn_server/helpers"
	"peerlearn_server/services"
)

// DashboardController serves the signed-in user's overview.
type DashboardController struct {
	DashboardService *services.DashboardService
}

// NewDashboardController initializes the dashboard controller
func NewDashboardController(service *services.DashboardService) *DashboardController {
	return &DashboardController{DashboardService: service}
}

// HandleMe - Return the caller's profile and memberships
func (c *DashboardController) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	user, memberships, err := c.DashboardService.Me(r.Context(), userID)
	if err != nil {
		helpers.WriteError(w, err)
		return
	}
	helpers.WriteJSONResponse(w, http.StatusOK, map[string]interface{}{
		"user":        user,
		"memberships": memberships,
	})
}

// HandleStats - Return the caller's activity counters
func (c *DashboardController) HandleStats(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	stats, err := c.DashboardService.Stats(r.Context(), userID)
	if err != nil {
		helpers.WriteError(w, err)
		return
	}
	helpers.WriteJSONResponse(w, http.StatusOK, stats)
}

// HandleRecent - Return the caller's most recently active conversations
func (c *DashboardController) HandleRecent(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		helpers.WriteError(w, err)
		return
	}

	items, err := c.DashboardService.Recent(r.Context(), userID, limit)
	if err != nil {
		helpers.WriteError(w, err)
		return
	}
	helpers.WriteJSONResponse(w, http.StatusOK, map[string]interface{}{"conversations": items})
}
