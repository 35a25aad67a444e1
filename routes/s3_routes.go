package routes

import (
	"net/http"

	"github.com/gorilla/mux"

	"peerlearn_server/controllers"
)

// RegisterS3Routes sets up routes for S3-related operations
func RegisterS3Routes(r *mux.Router, controller *controllers.S3Controller, authn mux.MiddlewareFunc) {
	r.Handle("/generate-presigned-url", authn(http.HandlerFunc(controller.GeneratePresignedURL))).Methods("POST")
	r.Handle("/get-presigned-read-url", authn(http.HandlerFunc(controller.GetPresignedReadURL))).Methods("POST")
}
