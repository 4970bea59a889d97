package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidRoomID = errors.New("invalid room id")

// RoomID is a room identifier as it appears on the wire. Clients send
// either a JSON number or a string; both decode to the same value.
type RoomID string

func (r *RoomID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*r = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = RoomID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidRoomID, string(data))
	}
	*r = RoomID(n.String())
	return nil
}

func (r RoomID) String() string { return string(r) }

// ParseRoomID converts a room id to the numeric key of the chatrooms table.
func ParseRoomID(id string) (uint64, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(id), 10, 64)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidRoomID, id)
	}
	return n, nil
}

func FormatRoomID(id uint64) string {
	return strconv.FormatUint(id, 10)
}

// NormalizeRoomID returns the canonical form of id, so "07", "7" and 7
// name the same room everywhere.
func NormalizeRoomID(id string) (string, error) {
	n, err := ParseRoomID(id)
	if err != nil {
		return "", err
	}
	return FormatRoomID(n), nil
}

// Room is a chat room record owned by the room CRUD layer.
type Room struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatorID string    `json:"creatorId"`
	Hashtags  []string  `json:"hashtags"`
	CreatedAt time.Time `json:"created_at"`
	JoinedAt  time.Time `json:"joined_at,omitempty"`
}

// NormalizeHashtags trims, strips a leading '#', drops empties and
// duplicates while keeping order.
func NormalizeHashtags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimPrefix(strings.TrimSpace(t), "#")
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
