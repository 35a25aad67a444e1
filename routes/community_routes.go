package routes

import (
	"net/http"

	"github.com/gorilla/mux"

	"peerlearn_server/controllers"
)

// RegisterCommunityRoutes sets up /api/communities and the routes under /api/communities/{communityId}
func RegisterCommunityRoutes(r *mux.Router, controller *controllers.CommunityController, authn mux.MiddlewareFunc) {
	r.Handle("/api/communities", authn(http.HandlerFunc(controller.HandleMyCommunities))).Methods("GET")

	communityRouter := r.PathPrefix("/api/communities/{communityId}").Subrouter()
	communityRouter.Use(authn)

	communityRouter.HandleFunc("/members/{targetUserId}/connect", controller.HandleConnect).Methods("POST")
	communityRouter.HandleFunc("/match", controller.HandleRunMatching).Methods("POST")
	communityRouter.HandleFunc("/members", controller.HandleMembers).Methods("GET")
	communityRouter.HandleFunc("/join", controller.HandleJoin).Methods("POST")
	communityRouter.HandleFunc("/leave", controller.HandleLeave).Methods("POST")
	communityRouter.HandleFunc("/membership", controller.HandleMembership).Methods("GET")
	communityRouter.HandleFunc("/goals", controller.HandleListGoals).Methods("GET")
	communityRouter.HandleFunc("/goals", controller.HandleAddGoal).Methods("POST")
}
