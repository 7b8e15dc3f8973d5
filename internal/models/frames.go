package models

import (
	"encoding/json"
	"fmt"
)

type FrameType string

const (
	FrameChatMessage     FrameType = "chat_message"
	FrameTyping          FrameType = "typing"
	FrameTypingIndicator FrameType = "typing_indicator"
)

// Frame is one JSON text message on the room socket. The set of variants is
// closed: ChatMessage, Typing, TypingIndicator and Unknown.
type Frame interface {
	FrameType() FrameType
}

// ChatMessage travels both ways. Clients leave SenderID empty; the server
// stamps it before broadcasting.
type ChatMessage struct {
	Message  string `json:"message"`
	SenderID UserID `json:"sender_id,omitempty"`
}

// Typing is sent by a client on every keystroke and once more after it
// goes quiet.
type Typing struct {
	IsTyping bool `json:"is_typing"`
}

// TypingIndicator is what the other members of the room receive.
type TypingIndicator struct {
	IsTyping bool   `json:"is_typing"`
	User     string `json:"user"`
}

// Unknown carries a well-formed frame whose type is not recognised.
type Unknown struct {
	Type string
}

func (ChatMessage) FrameType() FrameType     { return FrameChatMessage }
func (Typing) FrameType() FrameType          { return FrameTyping }
func (TypingIndicator) FrameType() FrameType { return FrameTypingIndicator }
func (u Unknown) FrameType() FrameType       { return FrameType(u.Type) }

func (m ChatMessage) MarshalJSON() ([]byte, error) {
	type alias ChatMessage
	return json.Marshal(struct {
		Type FrameType `json:"type"`
		alias
	}{FrameChatMessage, alias(m)})
}

func (m Typing) MarshalJSON() ([]byte, error) {
	type alias Typing
	return json.Marshal(struct {
		Type FrameType `json:"type"`
		alias
	}{FrameTyping, alias(m)})
}

func (m TypingIndicator) MarshalJSON() ([]byte, error) {
	type alias TypingIndicator
	return json.Marshal(struct {
		Type FrameType `json:"type"`
		alias
	}{FrameTypingIndicator, alias(m)})
}

// DecodeFrame parses a socket message. Input that is not a JSON object
// yields ErrMalformedFrame; an unrecognised type yields Unknown.
func DecodeFrame(data []byte) (Frame, error) {
	var env struct {
		Type FrameType `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	switch env.Type {
	case FrameChatMessage:
		var f ChatMessage
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformedFrame, env.Type, err)
		}
		return f, nil
	case FrameTyping:
		var f Typing
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformedFrame, env.Type, err)
		}
		return f, nil
	case FrameTypingIndicator:
		var f TypingIndicator
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformedFrame, env.Type, err)
		}
		return f, nil
	default:
		return Unknown{Type: string(env.Type)}, nil
	}
}
