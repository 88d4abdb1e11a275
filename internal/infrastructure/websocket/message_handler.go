package websocket

import (
	"encoding/json"
	"fmt"
	"time"
)

// Inbound frame types.
const (
	MessageTypePing              = "ping"
	MessageTypeOpenConversation  = "open_conversation"
	MessageTypeCloseConversation = "close_conversation"
	MessageTypeSendMessage       = "send_message"
	MessageTypeTyping            = "typing"
	MessageTypeMarkRead          = "mark_read"
	MessageTypeReact             = "react"
)

// Replies to inbound frames. Live view frames use the event names of the session.
const (
	MessageTypePong  = "pong"
	MessageTypeAck   = "ack"
	MessageTypeError = "error"
)

// Frame is what the browser sends. Data is decoded per type by the handler.
type Frame struct {
	Type           string          `json:"type"`
	RequestID      string          `json:"request_id,omitempty"`
	ConversationID string          `json:"conversation_id,omitempty"`
	Data           json.RawMessage `json:"data,omitempty"`
}

// WSMessage is what the server sends.
type WSMessage struct {
	Type           string      `json:"type"`
	RequestID      string      `json:"request_id,omitempty"`
	ConversationID string      `json:"conversation_id,omitempty"`
	Data           interface{} `json:"data,omitempty"`
	Timestamp      string      `json:"timestamp"`
}

type SendMessageData struct {
	Content string `json:"content"`
	Type    string `json:"type"`
	ReplyTo string `json:"reply_to"`
}

type ReactData struct {
	MessageID string `json:"message_id"`
	Emoji     string `json:"emoji"`
}

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func ParseFrame(payload []byte) (Frame, error) {
	var frame Frame
	if err := json.Unmarshal(payload, &frame); err != nil {
		return Frame{}, fmt.Errorf("invalid message format")
	}
	if frame.Type == "" {
		return Frame{}, fmt.Errorf("message type is required")
	}
	return frame, nil
}

// DecodeData unmarshals the frame payload into v. An absent payload leaves v untouched.
func (f Frame) DecodeData(v interface{}) error {
	if len(f.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(f.Data, v); err != nil {
		return fmt.Errorf("invalid %s data", f.Type)
	}
	return nil
}

func NewMessage(messageType, conversationID string, data interface{}) WSMessage {
	return WSMessage{
		Type:           messageType,
		ConversationID: conversationID,
		Data:           data,
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
	}
}

// Ack answers frame with data.
func Ack(frame Frame, data interface{}) WSMessage {
	msg := NewMessage(MessageTypeAck, frame.ConversationID, data)
	msg.RequestID = frame.RequestID
	return msg
}

func Pong(frame Frame) WSMessage {
	msg := NewMessage(MessageTypePong, "", map[string]string{"status": "alive"})
	msg.RequestID = frame.RequestID
	return msg
}

func ErrorReply(frame Frame, code, message string) WSMessage {
	msg := NewMessage(MessageTypeError, frame.ConversationID, ErrorData{Code: code, Message: message})
	msg.RequestID = frame.RequestID
	return msg
}
