package messages

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/blipchat/blip-backend/internal/chat"
	"github.com/blipchat/blip-backend/internal/middleware"
	"github.com/blipchat/blip-backend/internal/models"
	"github.com/blipchat/blip-backend/internal/storage/memory"
	"github.com/blipchat/blip-backend/internal/ws"
)

const testSecret = "test-secret"

func newTestServer(t *testing.T) (*httptest.Server, *memory.UserDirectory) {
	t.Helper()
	users := memory.NewUserDirectory()
	hub := ws.NewHub(zerolog.Nop())
	service := chat.NewService(memory.NewMessageStore(), users, hub, zerolog.Nop())
	auth := middleware.NewAuth(testSecret)
	handler := NewHandler(service, hub, auth, zerolog.Nop())

	router := mux.NewRouter()
	RegisterRoutes(router, handler, auth)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, users
}

func signToken(t *testing.T, userID string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userID,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func doJSON(t *testing.T, method, url, token string, body any) (*http.Response, map[string]json.RawMessage) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	payload := map[string]json.RawMessage{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	return resp, payload
}

func Test_Requests_Without_Token_Are_Rejected(t *testing.T) {
	req := require.New(t)
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/messages/users")
	req.NoError(err)
	defer resp.Body.Close()
	req.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func Test_Send_Validates_Payload(t *testing.T) {
	req := require.New(t)
	srv, _ := newTestServer(t)
	token := signToken(t, "alice")

	resp, payload := doJSON(t, http.MethodPost, srv.URL+"/api/messages/send/bob", token,
		map[string]string{})
	req.Equal(http.StatusBadRequest, resp.StatusCode)
	req.JSONEq(`false`, string(payload["success"]))
}

func Test_Send_Returns_Persisted_Message(t *testing.T) {
	req := require.New(t)
	srv, _ := newTestServer(t)
	token := signToken(t, "alice")

	resp, payload := doJSON(t, http.MethodPost, srv.URL+"/api/messages/send/bob", token,
		map[string]string{"content": "hello bob"})
	req.Equal(http.StatusCreated, resp.StatusCode)

	var msg models.Message
	req.NoError(json.Unmarshal(payload["message"], &msg))
	req.NotEmpty(msg.ID)
	req.Equal("alice", msg.SenderID)
	req.Equal("bob", msg.ReceiverID)
	req.False(msg.Seen)
}

func Test_MarkSeen_Unknown_Message_Is_NotFound(t *testing.T) {
	req := require.New(t)
	srv, _ := newTestServer(t)
	token := signToken(t, "alice")

	resp, _ := doJSON(t, http.MethodPut, srv.URL+"/api/messages/seen/no-such-id", token, nil)
	req.Equal(http.StatusNotFound, resp.StatusCode)
}

func dialWS(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) (string, json.RawMessage) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var ev struct {
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(data, &ev))
	return ev.Event, ev.Data
}

func Test_WS_Rejects_Invalid_Token(t *testing.T) {
	req := require.New(t)
	srv, _ := newTestServer(t)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=garbage"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	req.Error(err)
	req.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func Test_Offline_Send_Then_Connect_Roster_And_History(t *testing.T) {
	req := require.New(t)
	srv, users := newTestServer(t)
	users.Put(models.User{ID: "alice", Name: "Alice"})
	users.Put(models.User{ID: "bob", Name: "Bob"})

	aliceToken := signToken(t, "alice")
	bobToken := signToken(t, "bob")

	// Alice sends while Bob is offline: persisted, nothing to push to.
	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/messages/send/bob", aliceToken,
		map[string]string{"content": "hi"})
	req.Equal(http.StatusCreated, resp.StatusCode)

	// Bob connects and is announced in the presence set.
	bobConn := dialWS(t, srv, bobToken)
	event, data := readEvent(t, bobConn)
	req.Equal("presenceChanged", event)
	var online []string
	req.NoError(json.Unmarshal(data, &online))
	req.Contains(online, "bob")

	// Roster shows one unseen message from Alice.
	resp, payload := doJSON(t, http.MethodGet, srv.URL+"/api/messages/users", bobToken, nil)
	req.Equal(http.StatusOK, resp.StatusCode)
	var unseen map[string]int
	req.NoError(json.Unmarshal(payload["unseenCount"], &unseen))
	req.Equal(map[string]int{"alice": 1}, unseen)

	// Opening the conversation returns the pre-mark seen state...
	resp, payload = doJSON(t, http.MethodGet, srv.URL+"/api/messages/alice", bobToken, nil)
	req.Equal(http.StatusOK, resp.StatusCode)
	var history []models.Message
	req.NoError(json.Unmarshal(payload["messages"], &history))
	req.Len(history, 1)
	req.Equal("hi", history[0].Content)
	req.False(history[0].Seen)

	// ...and a repeat fetch observes the mark.
	_, payload = doJSON(t, http.MethodGet, srv.URL+"/api/messages/alice", bobToken, nil)
	req.NoError(json.Unmarshal(payload["messages"], &history))
	req.True(history[0].Seen)

	// The roster aggregate is reconciled too. Reset the map first:
	// Unmarshal merges into a non-nil map, which would keep stale keys.
	unseen = nil
	_, payload = doJSON(t, http.MethodGet, srv.URL+"/api/messages/users", bobToken, nil)
	req.NoError(json.Unmarshal(payload["unseenCount"], &unseen))
	req.Empty(unseen)
}

func Test_Live_Delivery_And_Single_Seen_Ack(t *testing.T) {
	req := require.New(t)
	srv, _ := newTestServer(t)

	aliceToken := signToken(t, "alice")
	bobToken := signToken(t, "bob")

	bobConn := dialWS(t, srv, bobToken)
	event, _ := readEvent(t, bobConn)
	req.Equal("presenceChanged", event)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/messages/send/bob", aliceToken,
		map[string]string{"content": "ping"})
	req.Equal(http.StatusCreated, resp.StatusCode)

	event, data := readEvent(t, bobConn)
	req.Equal("newMessage", event)
	var pushed models.Message
	req.NoError(json.Unmarshal(data, &pushed))
	req.Equal("ping", pushed.Content)
	req.False(pushed.Seen)

	// Bob has the conversation open, so his client acks the single message.
	resp, _ = doJSON(t, http.MethodPut, srv.URL+"/api/messages/seen/"+pushed.ID, bobToken, nil)
	req.Equal(http.StatusOK, resp.StatusCode)

	// The ack cleared the unseen count without a bulk fetch.
	_, payload := doJSON(t, http.MethodGet, srv.URL+"/api/messages/users", bobToken, nil)
	var unseen map[string]int
	req.NoError(json.Unmarshal(payload["unseenCount"], &unseen))
	req.Empty(unseen)
}

func Test_Presence_Follows_Disconnect(t *testing.T) {
	req := require.New(t)
	srv, _ := newTestServer(t)

	aliceConn := dialWS(t, srv, signToken(t, "alice"))
	event, _ := readEvent(t, aliceConn)
	req.Equal("presenceChanged", event)

	bobConn := dialWS(t, srv, signToken(t, "bob"))
	_, _ = readEvent(t, bobConn)

	// Alice sees Bob join...
	event, data := readEvent(t, aliceConn)
	req.Equal("presenceChanged", event)
	var online []string
	req.NoError(json.Unmarshal(data, &online))
	req.ElementsMatch([]string{"alice", "bob"}, online)

	// ...and leave.
	bobConn.Close()
	event, data = readEvent(t, aliceConn)
	req.Equal("presenceChanged", event)
	req.NoError(json.Unmarshal(data, &online))
	req.Equal([]string{"alice"}, online)
}
