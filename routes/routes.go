package routes

import (
	"github.com/gorilla/mux"

	"peerlearn_server/controllers"
)

// RegisterRoutes sets up the unauthenticated routes of the application
func RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/health", controllers.HealthCheckHandler).Methods("GET")
	r.HandleFunc("/", controllers.WelcomeHandler).Methods("GET")
}
