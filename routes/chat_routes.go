package routes

import (
	"github.com/gorilla/mux"

	"peerlearn_server/controllers"
)

// RegisterChatRoutes sets up routes for chat-related operations under /api/chat
func RegisterChatRoutes(r *mux.Router, controller *controllers.ChatController, authn mux.MiddlewareFunc) {
	// Create a subrouter for /api/chat
	chatRouter := r.PathPrefix("/api/chat").Subrouter()
	chatRouter.Use(authn)

	chatRouter.HandleFunc("", controller.HandleListConversations).Methods("GET")
	chatRouter.HandleFunc("/{matchId}/messages", controller.HandleGetMessages).Methods("GET")
	chatRouter.HandleFunc("/{matchId}/messages", controller.HandleSendMessage).Methods("POST")
	chatRouter.HandleFunc("/{matchId}", controller.HandleDeleteChat).Methods("DELETE")
}
