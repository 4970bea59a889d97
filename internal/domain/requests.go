package domain

// CreateRoomRequest is the body of POST /chat/room.
type CreateRoomRequest struct {
	Title    string   `json:"title" binding:"required,max=100"`
	Hashtags []string `json:"hashtags"`
}

// JoinRoomRequest is the body of POST /chat/join.
type JoinRoomRequest struct {
	RoomID RoomID `json:"roomId" binding:"required"`
}

// RoomUsersResponse is the live presence of a room.
type RoomUsersResponse struct {
	RoomID string   `json:"roomId"`
	Users  []string `json:"users"`
	Count  int      `json:"count"`
}
