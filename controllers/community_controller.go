package controllers

import (
	"net/http"

	"github.com/gorilla/mux"

	"peerlearn_server/helpers"
	"peerlearn_server/services"
)

// CommunityController handles membership, goals and partner matching.
type CommunityController struct {
	CommunityService *services.CommunityService
	MatchService     *services.MatchService
}

// NewCommunityController initializes the community controller
func NewCommunityController(community *services.CommunityService, matches *services.MatchService) *CommunityController {
	return &CommunityController{CommunityService: community, MatchService: matches}
}

type addGoalRequest struct {
	Title string `json:"title"`
}

// HandleMyCommunities - List the communities the caller belongs to
func (c *CommunityController) HandleMyCommunities(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	memberships, err := c.CommunityService.Memberships(r.Context(), userID)
	if err != nil {
		helpers.WriteError(w, err)
		return
	}
	helpers.WriteJSONResponse(w, http.StatusOK, map[string]interface{}{"communities": memberships})
}

// HandleConnect - Connect the caller with another member
func (c *CommunityController) HandleConnect(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)

	m, err := c.MatchService.Connect(r.Context(), userID, vars["targetUserId"], vars["communityId"])
	if err != nil {
		helpers.WriteError(w, err)
		return
	}
	helpers.WriteJSONResponse(w, http.StatusOK, map[string]string{"matchId": m.MatchID, "status": m.Status})
}

// HandleRunMatching - Score the community's members against the caller
func (c *CommunityController) HandleRunMatching(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	matches, err := c.CommunityService.RunMatching(r.Context(), userID, mux.Vars(r)["communityId"])
	if err != nil {
		helpers.WriteError(w, err)
		return
	}
	helpers.WriteJSONResponse(w, http.StatusOK, map[string]interface{}{"matches": matches})
}

// HandleMembers - List the other members of a community with their goals
func (c *CommunityController) HandleMembers(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	members, err := c.CommunityService.Members(r.Context(), mux.Vars(r)["communityId"], userID)
	if err != nil {
		helpers.WriteError(w, err)
		return
	}
	helpers.WriteJSONResponse(w, http.StatusOK, map[string]interface{}{"members": members})
}

// HandleJoin - Join a community
func (c *CommunityController) HandleJoin(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	joined, err := c.CommunityService.Join(r.Context(), mux.Vars(r)["communityId"], userID)
	if err != nil {
		helpers.WriteError(w, err)
		return
	}
	status := http.StatusOK
	if joined {
		status = http.StatusCreated
	}
	helpers.WriteJSONResponse(w, status, map[string]bool{"isMember": true})
}

// HandleLeave - Leave a community
func (c *CommunityController) HandleLeave(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	if err := c.CommunityService.Leave(r.Context(), mux.Vars(r)["communityId"], userID); err != nil {
		helpers.WriteError(w, err)
		return
	}
	helpers.WriteJSONResponse(w, http.StatusOK, map[string]bool{"isMember": false})
}

// HandleMembership - Report whether the caller belongs to a community
func (c *CommunityController) HandleMembership(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	member, err := c.CommunityService.IsMember(r.Context(), mux.Vars(r)["communityId"], userID)
	if err != nil {
		helpers.WriteError(w, err)
		return
	}
	helpers.WriteJSONResponse(w, http.StatusOK, map[string]bool{"isMember": member})
}

// HandleListGoals - List the caller's goals in a community
func (c *CommunityController) HandleListGoals(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	goals, err := c.CommunityService.Goals(r.Context(), userID, mux.Vars(r)["communityId"])
	if err != nil {
		helpers.WriteError(w, err)
		return
	}
	helpers.WriteJSONResponse(w, http.StatusOK, map[string]interface{}{"goals": goals})
}

// HandleAddGoal - Add a learning goal for the caller
func (c *CommunityController) HandleAddGoal(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req addGoalRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.WriteError(w, err)
		return
	}

	goal, err := c.CommunityService.AddGoal(r.Context(), userID, mux.Vars(r)["communityId"], req.Title)
	if err != nil {
		helpers.WriteError(w, err)
		return
	}
	helpers.WriteJSONResponse(w, http.StatusCreated, goal)
}
