package domain

import "time"

// WebSocket envelope types from client.
const (
	MsgTypeLogin         = "login"
	MsgTypeMessage       = "message"
	MsgTypeDeleteMessage = "deleteMessage"
	MsgTypeDeviceInfo    = "deviceInfo"
)

// WebSocket envelope types to client.
const (
	MsgTypeLoginSuccess   = "loginSuccess"
	MsgTypeUserList       = "userList"
	MsgTypeMessageDeleted = "messageDeleted"
	MsgTypeError          = "error"
)

// Error codes
const (
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeBadRequest       = "BAD_REQUEST"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeStoreUnavailable = "STORE_UNAVAILABLE"
)

// Message is a stored chat message. Immutable once created; deletion
// removes it from the store outright rather than flagging it.
type Message struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// BaseEnvelope is the base structure of every WebSocket envelope; the
// concrete shape is picked by the Type discriminator.
type BaseEnvelope struct {
	Type string `json:"type"`
}

// Client -> Server envelopes

type LoginEnvelope struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
}

type ChatEnvelope struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

type DeleteEnvelope struct {
	Type      string `json:"type"`
	MessageID string `json:"messageId"`
}

// Server -> Client envelopes

type LoginSuccessEnvelope struct {
	Type            string    `json:"type"`
	UserID          string    `json:"userId"`
	HistoryMessages []Message `json:"historyMessages"`
}

type UserListEnvelope struct {
	Type  string   `json:"type"`
	Users []string `json:"users"`
}

type MessageEnvelope struct {
	Type      string    `json:"type"`
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type MessageDeletedEnvelope struct {
	Type      string `json:"type"`
	MessageID string `json:"messageId"`
}

type ErrorEnvelope struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewLoginSuccessEnvelope(userID string, history []Message) *LoginSuccessEnvelope {
	if history == nil {
		history = []Message{}
	}
	return &LoginSuccessEnvelope{
		Type:            MsgTypeLoginSuccess,
		UserID:          userID,
		HistoryMessages: history,
	}
}

func NewUserListEnvelope(users []string) *UserListEnvelope {
	if users == nil {
		users = []string{}
	}
	return &UserListEnvelope{
		Type:  MsgTypeUserList,
		Users: users,
	}
}

func NewMessageEnvelope(msg Message) *MessageEnvelope {
	return &MessageEnvelope{
		Type:      MsgTypeMessage,
		ID:        msg.ID,
		UserID:    msg.UserID,
		Content:   msg.Content,
		Timestamp: msg.Timestamp,
	}
}

func NewMessageDeletedEnvelope(messageID string) *MessageDeletedEnvelope {
	return &MessageDeletedEnvelope{
		Type:      MsgTypeMessageDeleted,
		MessageID: messageID,
	}
}

func NewErrorEnvelope(code, message string) *ErrorEnvelope {
	return &ErrorEnvelope{
		Type:    MsgTypeError,
		Code:    code,
		Message: message,
	}
}
