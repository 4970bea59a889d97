package domain

import "time"

// Participant is a live connection's presence in a room.
type Participant struct {
	ConnID   string
	UserID   string
	Nickname string
	JoinedAt time.Time
}

// Identity is the authenticated user behind a connection.
type Identity struct {
	UserID   string
	Nickname string
	Roles    []string
}
