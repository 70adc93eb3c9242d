package messages

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/blipchat/blip-backend/internal/middleware"
)

// RegisterRoutes registers all message-related HTTP and WebSocket routes.
// The REST surface matches the UI's expectations: roster with unseen
// counts, history (which bulk-marks seen), point seen-update, and send.
func RegisterRoutes(r *mux.Router, handler *Handler, auth *middleware.Auth) {
	api := r.PathPrefix("/api/messages").Subrouter()
	api.Use(auth.Middleware)

	api.HandleFunc("/users", handler.GetRoster).Methods(http.MethodGet)
	api.HandleFunc("/seen/{id}", handler.MarkSeen).Methods(http.MethodPut)
	api.HandleFunc("/send/{id}", handler.SendMessage).Methods(http.MethodPost)
	api.HandleFunc("/{userId}", handler.GetMessages).Methods(http.MethodGet)

	// The live transport authenticates via query token, not the bearer
	// header, so it sits outside the auth subrouter.
	r.HandleFunc("/ws", handler.ServeWS)
}
