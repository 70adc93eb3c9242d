package messages

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/blipchat/blip-backend/internal/chat"
	"github.com/blipchat/blip-backend/internal/middleware"
	"github.com/blipchat/blip-backend/internal/models"
	"github.com/blipchat/blip-backend/internal/storage"
	"github.com/blipchat/blip-backend/internal/ws"
)

// Handler contains shared dependencies for all chat HTTP handlers.
type Handler struct {
	service *chat.Service
	hub     *ws.Hub
	auth    *middleware.Auth
	log     zerolog.Logger
}

func NewHandler(service *chat.Service, hub *ws.Hub, auth *middleware.Auth, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		hub:     hub,
		auth:    auth,
		log:     log.With().Str("component", "api").Logger(),
	}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends the original API's failure envelope.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]interface{}{"success": false, "message": message})
}

// GetRoster returns every other user plus per-counterpart unseen counts.
func (h *Handler) GetRoster(w http.ResponseWriter, r *http.Request) {
	viewerID := middleware.UserIDFromContext(r.Context())

	roster, err := h.service.RosterFor(r.Context(), viewerID)
	if err != nil {
		h.log.Error().Err(err).Str("viewer_id", viewerID).Msg("roster fetch failed")
		h.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	h.JSON(w, http.StatusOK, map[string]interface{}{
		"success":     true,
		"users":       roster.Users,
		"unseenCount": roster.UnseenCount,
	})
}

// GetMessages returns the conversation with the counterpart in the URL
// and marks the counterpart's messages as seen. The response reflects the
// seen state before this call's own update.
func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	viewerID := middleware.UserIDFromContext(r.Context())
	counterpartID := mux.Vars(r)["userId"]
	if counterpartID == "" {
		h.Error(w, http.StatusBadRequest, "User ID is required")
		return
	}

	msgs, err := h.service.History(r.Context(), viewerID, counterpartID)
	if err != nil {
		h.log.Error().Err(err).Str("viewer_id", viewerID).Msg("history fetch failed")
		h.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	h.JSON(w, http.StatusOK, map[string]interface{}{"success": true, "messages": msgs})
}

// MarkSeen marks a single message as seen.
func (h *Handler) MarkSeen(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if id == "" {
		h.Error(w, http.StatusBadRequest, "Message ID is required")
		return
	}

	err := h.service.MarkSeen(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		h.Error(w, http.StatusNotFound, "Message not found")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("message_id", id).Msg("mark seen failed")
		h.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	h.JSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": "Message marked as seen"})
}

// SendMessage persists a message to the recipient in the URL and pushes
// it to their live connection when they have one.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	senderID := middleware.UserIDFromContext(r.Context())
	receiverID := mux.Vars(r)["id"]
	if receiverID == "" {
		h.Error(w, http.StatusBadRequest, "Receiver ID is required")
		return
	}

	var req struct {
		Content string `json:"content"`
		Image   string `json:"image"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	msg, err := h.service.Send(r.Context(), senderID, receiverID, req.Content, req.Image)
	if errors.Is(err, storage.ErrEmptyMessage) {
		h.Error(w, http.StatusBadRequest, "Message needs content or an image")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("sender_id", senderID).Msg("send failed")
		h.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	h.JSON(w, http.StatusCreated, map[string]interface{}{"success": true, "message": msg})
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeWS upgrades the connection and binds it to the token's user. The
// binding lives until the socket closes or a newer connection for the
// same user supersedes it.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID, err := h.auth.VerifyToken(r.URL.Query().Get("token"))
	if err != nil {
		http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := ws.NewClient(userID, conn)
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump(h.hub)
}
