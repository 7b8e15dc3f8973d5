package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrAlreadyExists  = errors.New("already exists")
	ErrMalformedFrame = errors.New("malformed frame")
)

// UserID identifies a user on the wire. Backends emit it either as a JSON
// number or as a JSON string; both decode to the same value.
type UserID string

func (id *UserID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = UserID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("user id: %w", err)
	}
	*id = UserID(n.String())
	return nil
}

// MarshalJSON emits numeric IDs as JSON numbers, the way the backend sends
// them. Only canonical integers qualify; "007" stays a string.
func (id UserID) MarshalJSON() ([]byte, error) {
	if n, err := strconv.ParseInt(string(id), 10, 64); err == nil && strconv.FormatInt(n, 10) == string(id) {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// ConnectionState drives the room affordances: input and send are only
// enabled while connected.
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// User is a directory entry.
type User struct {
	ID           UserID   `json:"id"`
	UserName     string   `json:"username"`
	FullName     string   `json:"full_name"`
	ProfileImage string   `json:"profile_image,omitempty"`
	Presence     Presence `json:"presence"`
}

// Presence represents the online status of a user.
type Presence struct {
	Online   bool  `json:"online"`
	LastSeen int64 `json:"lastSeen"` // Unix timestamp (seconds)
}

// SearchUser is a single search result. ProfileImage is null on the wire
// when the user has no picture.
type SearchUser struct {
	ID           UserID  `json:"id"`
	UserName     string  `json:"username"`
	FullName     string  `json:"full_name"`
	Initials     string  `json:"initials"`
	ProfileImage *string `json:"profile_image"`
	Online       bool    `json:"is_online"`
}

type SearchResponse struct {
	Users []SearchUser `json:"users"`
}

// HistoryMessage is one entry of the room history endpoint.
type HistoryMessage struct {
	ID        int64  `json:"id"`
	Sender    string `json:"sender"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"` // "03:04 PM"
	Own       bool   `json:"is_own"`
}

type HistoryResponse struct {
	Messages []HistoryMessage `json:"messages"`
}
