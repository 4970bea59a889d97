package handler_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/sasachat/sasachat/internal/domain"
	"github.com/sasachat/sasachat/internal/events"
	"github.com/sasachat/sasachat/internal/gateway"
	"github.com/sasachat/sasachat/internal/handler"
	"github.com/sasachat/sasachat/internal/hub"
	"github.com/sasachat/sasachat/internal/identity"
	"github.com/sasachat/sasachat/internal/idgen"
	"github.com/sasachat/sasachat/internal/registry"
	"github.com/sasachat/sasachat/internal/repository"
	"github.com/sasachat/sasachat/internal/service"
	"github.com/sasachat/sasachat/internal/store"
	"github.com/sasachat/sasachat/pkg/database"
	"github.com/sasachat/sasachat/pkg/jwt"
	"github.com/sasachat/sasachat/pkg/middleware"
	"github.com/sasachat/sasachat/pkg/response"
)

type envelope struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
}

type frame struct {
	Type     string           `json:"type"`
	Success  bool             `json:"success"`
	Code     string           `json:"code"`
	Users    []string         `json:"users"`
	Messages []domain.Message `json:"messages"`
	Sender   string           `json:"sender"`
	Text     string           `json:"text"`
	IsSystem bool             `json:"isSystem"`
}

type server struct {
	srv    *httptest.Server
	tokens *jwt.Manager
	reg    *registry.MemoryRegistry
}

func newServer(t *testing.T) *server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.New(&database.Config{
		Driver:   "sqlite",
		FilePath: fmt.Sprintf("file:%s?mode=memory&cache=shared", name),
		LogLevel: "silent",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	rooms := repository.NewGormRoomRepository(db)
	require.NoError(t, rooms.Migrate())
	ids, err := idgen.NewSnowflake(1, idgen.DefaultEpoch)
	require.NoError(t, err)
	messages := store.NewGormMessageStore(db, ids, true)
	require.NoError(t, messages.Migrate())

	tokens, err := jwt.NewManager("test-secret", "sasachat", time.Hour)
	require.NoError(t, err)
	resolver := identity.NewResolver(tokens, "session")

	h := hub.NewHub(hub.Config{})
	go h.Run()
	t.Cleanup(h.Stop)

	reg := registry.NewMemoryRegistry()
	gw := gateway.New(h, reg, messages, ids, rooms, nil, gateway.Config{})
	t.Cleanup(gw.Stop)

	dispatcher := events.NewDispatcher(nil, events.NewListener(nil, gw, nil))

	r := gin.New()
	handler.NewHTTPHandler(
		service.NewRoomService(rooms, dispatcher, reg),
		service.NewHistoryService(messages),
		middleware.NewAuthMiddleware(tokens, "session"),
	).RegisterRoutes(r)
	handler.NewWSHandler(h, service.NewChatService(gw, resolver), resolver, hub.Config{}).RegisterRoutes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &server{srv: srv, tokens: tokens, reg: reg}
}

func (s *server) token(t *testing.T, nickname string) string {
	t.Helper()
	tok, _, err := s.tokens.GenerateAccessToken("u-"+nickname, nickname, nil)
	require.NoError(t, err)
	return tok
}

func (s *server) do(t *testing.T, method, path, token string, body interface{}) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, s.srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	_ = json.NewDecoder(resp.Body).Decode(&env)
	return resp.StatusCode, env
}

func (s *server) createRoom(t *testing.T, token, title string) domain.Room {
	t.Helper()
	status, env := s.do(t, http.MethodPost, "/chat/room", token, map[string]interface{}{"title": title, "hashtags": []string{"#go"}})
	require.Equal(t, http.StatusCreated, status)
	var room domain.Room
	require.NoError(t, json.Unmarshal(env.Data, &room))
	return room
}

func (s *server) dial(t *testing.T, token string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(s.srv.URL, "http") + "/chat/ws"
	if token != "" {
		u += "?token=" + token
	}
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func TestHTTPHandler_Rooms(t *testing.T) {
	s := newServer(t)
	alice := s.token(t, "alice")
	bob := s.token(t, "bob")

	t.Run("should require a session to create a room", func(t *testing.T) {
		status, env := s.do(t, http.MethodPost, "/chat/room", "", map[string]string{"title": "x"})
		require.Equal(t, http.StatusUnauthorized, status)
		require.False(t, env.Success)
		require.Equal(t, response.CodeUnauthorized, env.Error.Code)
	})

	t.Run("should reject a missing title", func(t *testing.T) {
		status, env := s.do(t, http.MethodPost, "/chat/room", alice, map[string]string{})
		require.Equal(t, http.StatusBadRequest, status)
		require.False(t, env.Success)
	})

	room := s.createRoom(t, alice, "Go study")
	require.Equal(t, "u-alice", room.CreatorID)
	require.Equal(t, []string{"go"}, room.Hashtags)

	t.Run("should list all rooms without a session", func(t *testing.T) {
		status, env := s.do(t, http.MethodGet, "/chat/rooms", "", nil)
		require.Equal(t, http.StatusOK, status)
		var rooms []domain.Room
		require.NoError(t, json.Unmarshal(env.Data, &rooms))
		require.Len(t, rooms, 1)
	})

	t.Run("should return no rooms to an anonymous caller", func(t *testing.T) {
		status, env := s.do(t, http.MethodGet, "/chat/my-rooms", "", nil)
		require.Equal(t, http.StatusOK, status)
		require.JSONEq(t, `[]`, string(env.Data))
	})

	t.Run("should add a participant on join", func(t *testing.T) {
		status, _ := s.do(t, http.MethodPost, "/chat/join", bob, map[string]interface{}{"roomId": json.Number(room.ID)})
		require.Equal(t, http.StatusOK, status)

		_, env := s.do(t, http.MethodGet, "/chat/my-rooms", bob, nil)
		var rooms []domain.Room
		require.NoError(t, json.Unmarshal(env.Data, &rooms))
		require.Len(t, rooms, 1)
		require.Equal(t, room.ID, rooms[0].ID)

		status, _ = s.do(t, http.MethodPost, "/chat/join", bob, map[string]string{"roomId": "999"})
		require.Equal(t, http.StatusNotFound, status)
	})

	t.Run("should leave a room without deleting it", func(t *testing.T) {
		status, _ := s.do(t, http.MethodDelete, "/chat/room/"+room.ID, bob, nil)
		require.Equal(t, http.StatusOK, status)

		_, env := s.do(t, http.MethodGet, "/chat/my-rooms", bob, nil)
		require.JSONEq(t, `[]`, string(env.Data))
	})

	t.Run("should let only the creator delete", func(t *testing.T) {
		status, env := s.do(t, http.MethodDelete, "/chat/rooms/"+room.ID, bob, nil)
		require.Equal(t, http.StatusForbidden, status)
		require.Equal(t, "FORBIDDEN", env.Error.Code)

		status, _ = s.do(t, http.MethodDelete, "/chat/rooms/"+room.ID, alice, nil)
		require.Equal(t, http.StatusOK, status)

		status, _ = s.do(t, http.MethodDelete, "/chat/rooms/"+room.ID, alice, nil)
		require.Equal(t, http.StatusNotFound, status)
	})
}

func TestHTTPHandler_Messages(t *testing.T) {
	s := newServer(t)
	alice := s.token(t, "alice")
	room := s.createRoom(t, alice, "history")

	conn := s.dial(t, alice)
	require.Equal(t, domain.MsgTypeAuthResult, read(t, conn).Type)
	require.NoError(t, conn.WriteJSON(map[string]interface{}{"type": "join_room", "roomId": room.ID}))
	require.Equal(t, domain.MsgTypeChatHistory, read(t, conn).Type)
	require.Equal(t, domain.MsgTypeRoomUsers, read(t, conn).Type)

	for i := 0; i < 3; i++ {
		require.NoError(t, conn.WriteJSON(map[string]interface{}{"type": "send_message", "text": fmt.Sprintf("m%d", i)}))
	}
	// a ping round trip proves the sends were handled
	require.NoError(t, conn.WriteJSON(map[string]string{"type": "ping"}))
	require.Equal(t, domain.MsgTypePong, read(t, conn).Type)

	t.Run("should page backward from the newest message", func(t *testing.T) {
		status, env := s.do(t, http.MethodGet, "/chat/rooms/"+room.ID+"/messages?limit=2", alice, nil)
		require.Equal(t, http.StatusOK, status)

		var page store.Page
		require.NoError(t, json.Unmarshal(env.Data, &page))
		require.Len(t, page.Messages, 2)
		require.Equal(t, "m2", page.Messages[0].Text)
		require.Equal(t, "m1", page.Messages[1].Text)
		require.True(t, page.HasMore)

		_, env = s.do(t, http.MethodGet, fmt.Sprintf("/chat/rooms/%s/messages?limit=2&cursor=%d", room.ID, page.NextCursor), alice, nil)
		var next store.Page
		require.NoError(t, json.Unmarshal(env.Data, &next))
		require.Len(t, next.Messages, 1)
		require.Equal(t, "m0", next.Messages[0].Text)
		require.False(t, next.HasMore)
	})

	t.Run("should reject bad query parameters", func(t *testing.T) {
		for _, q := range []string{"?direction=sideways", "?limit=0", "?cursor=abc"} {
			status, _ := s.do(t, http.MethodGet, "/chat/rooms/"+room.ID+"/messages"+q, alice, nil)
			require.Equal(t, http.StatusBadRequest, status, q)
		}
	})

	t.Run("should report live presence", func(t *testing.T) {
		status, env := s.do(t, http.MethodGet, "/chat/rooms/"+room.ID+"/users", alice, nil)
		require.Equal(t, http.StatusOK, status)
		require.JSONEq(t, fmt.Sprintf(`{"roomId":"%s","users":["alice"],"count":1}`, room.ID), string(env.Data))
	})
}

func TestWSHandler_EndToEnd(t *testing.T) {
	s := newServer(t)
	aliceToken := s.token(t, "alice")
	room := s.createRoom(t, aliceToken, "live")

	t.Run("should refuse an upgrade with an invalid token", func(t *testing.T) {
		u := "ws" + strings.TrimPrefix(s.srv.URL, "http") + "/chat/ws?token=garbage"
		_, resp, err := websocket.DefaultDialer.Dial(u, nil)
		require.Error(t, err)
		require.NotNil(t, resp)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	alice := s.dial(t, aliceToken)
	require.True(t, read(t, alice).Success)

	bob := s.dial(t, "")

	t.Run("should require auth before joining", func(t *testing.T) {
		require.NoError(t, bob.WriteJSON(map[string]interface{}{"type": "join_room", "roomId": room.ID}))
		f := read(t, bob)
		require.Equal(t, domain.MsgTypeError, f.Type)
		require.Equal(t, domain.ErrCodeUnauthorized, f.Code)
	})

	t.Run("should authenticate with an auth event", func(t *testing.T) {
		require.NoError(t, bob.WriteJSON(map[string]string{"type": "auth", "token": s.token(t, "bob")}))
		f := read(t, bob)
		require.Equal(t, domain.MsgTypeAuthResult, f.Type)
		require.True(t, f.Success)
	})

	t.Run("should run the join and chat flow", func(t *testing.T) {
		require.NoError(t, alice.WriteJSON(map[string]interface{}{"type": "join_room", "roomId": json.Number(room.ID), "nickname": "ignored"}))
		require.Equal(t, domain.MsgTypeChatHistory, read(t, alice).Type)
		require.Equal(t, []string{"alice"}, read(t, alice).Users)

		require.NoError(t, bob.WriteJSON(map[string]interface{}{"type": "join_room", "roomId": room.ID}))
		require.Equal(t, domain.MsgTypeChatHistory, read(t, bob).Type)
		require.Equal(t, []string{"alice", "bob"}, read(t, bob).Users)

		require.Equal(t, []string{"alice", "bob"}, read(t, alice).Users)
		notice := read(t, alice)
		require.True(t, notice.IsSystem)
		require.Equal(t, "bob님이 입장하셨습니다.", notice.Text)

		require.NoError(t, alice.WriteJSON(map[string]interface{}{"type": "send_message", "roomId": room.ID, "sender": "alice", "text": "안녕"}))
		got := read(t, bob)
		require.Equal(t, domain.MsgTypeReceiveMessage, got.Type)
		require.Equal(t, "alice", got.Sender)
		require.Equal(t, "안녕", got.Text)
	})

	t.Run("should close the room for live sockets on delete", func(t *testing.T) {
		status, _ := s.do(t, http.MethodDelete, "/chat/rooms/"+room.ID, aliceToken, nil)
		require.Equal(t, http.StatusOK, status)

		for _, conn := range []*websocket.Conn{alice, bob} {
			notice := read(t, conn)
			require.Equal(t, "채팅방이 삭제되었습니다.", notice.Text)
			users := read(t, conn)
			require.Equal(t, domain.MsgTypeRoomUsers, users.Type)
			require.Empty(t, users.Users)
		}
		require.Zero(t, s.reg.Count(room.ID))
	})

	t.Run("should unregister a dropped connection", func(t *testing.T) {
		other := s.createRoom(t, aliceToken, "again")
		require.NoError(t, bob.WriteJSON(map[string]interface{}{"type": "join_room", "roomId": other.ID}))
		read(t, bob)
		read(t, bob)
		require.Equal(t, 1, s.reg.Count(other.ID))

		require.NoError(t, bob.Close())
		require.Eventually(t, func() bool { return s.reg.Count(other.ID) == 0 }, 2*time.Second, 10*time.Millisecond)
	})
}

func TestHTTPHandler_Health(t *testing.T) {
	s := newServer(t)
	resp, err := http.Get(s.srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
