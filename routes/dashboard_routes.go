package routes

import (
	"github.com/gorilla/mux"

	"peerlearn_server/controllers"
)

// RegisterDashboardRoutes sets up routes under /api/dashboard
func RegisterDashboardRoutes(r *mux.Router, controller *controllers.DashboardController, authn mux.MiddlewareFunc) {
	dashboardRouter := r.PathPrefix("/api/dashboard").Subrouter()
	dashboardRouter.Use(authn)

	dashboardRouter.HandleFunc("/me", controller.HandleMe).Methods("GET")
	dashboardRouter.HandleFunc("/stats", controller.HandleStats).Methods("GET")
	dashboardRouter.HandleFunc("/recent", controller.HandleRecent).Methods("GET")
}

// RegisterAdminRoutes sets up operator routes under /api/admin
func RegisterAdminRoutes(r *mux.Router, controller *controllers.AdminController, authn, admin mux.MiddlewareFunc) {
	adminRouter := r.PathPrefix("/api/admin").Subrouter()
	adminRouter.Use(authn, admin)

	adminRouter.HandleFunc("/matches/{matchId}", controller.HandlePurgeMatch).Methods("DELETE")
	adminRouter.HandleFunc("/users/{userId}", controller.HandlePurgeUser).Methods("DELETE")
}
