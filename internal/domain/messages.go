package domain

import "time"

// Websocket event types from client.
const (
	MsgTypeAuth        = "auth"
	MsgTypeJoinRoom    = "join_room"
	MsgTypeSendMessage = "send_message"
	MsgTypeLeaveRoom   = "leave_room"
	MsgTypePing        = "ping"
)

// Websocket event types to client.
const (
	MsgTypeAuthResult     = "auth_result"
	MsgTypeChatHistory    = "chat_history"
	MsgTypeRoomUsers      = "room_users"
	MsgTypeReceiveMessage = "receive_message"
	MsgTypeError          = "error"
	MsgTypePong           = "pong"
)

// Error codes
const (
	ErrCodeUnauthorized  = "UNAUTHORIZED"
	ErrCodeBadRequest    = "BAD_REQUEST"
	ErrCodeInternalError = "INTERNAL_ERROR"
	ErrCodeNotInRoom     = "NOT_IN_ROOM"
	ErrCodeRoomNotFound  = "ROOM_NOT_FOUND"
	ErrCodeRateLimited   = "RATE_LIMITED"
)

// BaseMessage is the base structure for all websocket events.
type BaseMessage struct {
	Type string `json:"type"`
}

// Client -> Server

type AuthMessage struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

// JoinRoomMessage carries the target room. Nickname is accepted for
// compatibility with older clients and never used as identity.
type JoinRoomMessage struct {
	Type     string `json:"type"`
	RoomID   RoomID `json:"roomId"`
	Nickname string `json:"nickname,omitempty"`
}

// SendMessageWS is a chat line from the client. Sender and Time are
// client-side display fields; the server uses the session nickname and
// its own clock.
type SendMessageWS struct {
	Type     string `json:"type"`
	RoomID   RoomID `json:"roomId,omitempty"`
	Sender   string `json:"sender,omitempty"`
	Text     string `json:"text"`
	Time     string `json:"time,omitempty"`
	IsSystem bool   `json:"isSystem,omitempty"`
}

// Server -> Client

type AuthResultMessage struct {
	Type     string `json:"type"`
	Success  bool   `json:"success"`
	UserID   string `json:"userId,omitempty"`
	Nickname string `json:"nickname,omitempty"`
	Message  string `json:"message,omitempty"`
}

// ChatHistoryMessage is the one-time replay sent to a joining connection.
type ChatHistoryMessage struct {
	Type     string    `json:"type"`
	RoomID   string    `json:"roomId"`
	Messages []Message `json:"messages"`
}

// RoomUsersMessage is the presence snapshot of a room.
type RoomUsersMessage struct {
	Type   string   `json:"type"`
	RoomID string   `json:"roomId"`
	Users  []string `json:"users"`
	Count  int      `json:"count"`
}

// ReceiveMessage delivers a user or system message. Time mirrors
// CreatedAt for clients that render the "time" field.
type ReceiveMessage struct {
	Type string `json:"type"`
	Message
	Time time.Time `json:"time"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewErrorMessage(code, message string) *ErrorMessage {
	return &ErrorMessage{
		Type:    MsgTypeError,
		Code:    code,
		Message: message,
	}
}

func NewChatHistoryMessage(roomID string, msgs []Message) *ChatHistoryMessage {
	if msgs == nil {
		msgs = []Message{}
	}
	return &ChatHistoryMessage{Type: MsgTypeChatHistory, RoomID: roomID, Messages: msgs}
}

func NewRoomUsersMessage(roomID string, users []string) *RoomUsersMessage {
	if users == nil {
		users = []string{}
	}
	return &RoomUsersMessage{Type: MsgTypeRoomUsers, RoomID: roomID, Users: users, Count: len(users)}
}

func NewReceiveMessage(m Message) *ReceiveMessage {
	return &ReceiveMessage{Type: MsgTypeReceiveMessage, Message: m, Time: m.CreatedAt}
}
