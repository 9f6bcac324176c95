package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// MessageType identifies websocket payload variants.
type MessageType string

const (
	TypeUserMessage    MessageType = "user_message"
	TypeClearHistory   MessageType = "clear_history"
	TypeAssistantReply MessageType = "assistant_reply"
	TypeHistoryCleared MessageType = "history_cleared"
	TypeErrorEvent     MessageType = "error_event"
)

var ErrUnsupportedType = errors.New("unsupported message type")

type Envelope struct {
	Type MessageType `json:"type"`
}

// UserMessage is a chat message sent by the browser widget.
type UserMessage struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id,omitempty"`
	Text      string      `json:"text"`
}

// ClearHistory asks the service to drop the session transcript.
type ClearHistory struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
}

// AssistantReply carries one full generated reply.
type AssistantReply struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	BotName   string      `json:"bot_name"`
	Text      string      `json:"text"`
}

// HistoryCleared acknowledges a ClearHistory request.
type HistoryCleared struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
}

type ErrorEvent struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Code      string      `json:"code"`
	Retryable bool        `json:"retryable"`
	Detail    string      `json:"detail"`
}

// ParseClientMessage decodes and validates one inbound websocket frame.
func ParseClientMessage(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeUserMessage:
		var msg UserMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.Text == "" {
			return nil, errors.New("invalid user_message: empty text")
		}
		return msg, nil
	case TypeClearHistory:
		var msg ClearHistory
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.SessionID == "" {
			return nil, errors.New("invalid clear_history: missing session_id")
		}
		return msg, nil
	default:
		return nil, ErrUnsupportedType
	}
}
