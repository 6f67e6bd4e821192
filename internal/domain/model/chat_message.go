package model

import (
	"time"

	"github.com/oklog/ulid/v2"
)

type MessageKind string

const (
	MessageText     MessageKind = "text"
	MessageImage    MessageKind = "image"
	MessageFile     MessageKind = "file"
	MessageResource MessageKind = "resource"
	MessageSystem   MessageKind = "system"
)

const GreetingText = "Hello! I'm here to help you today. How are you feeling?"

// ChatMessage is one entry of a session transcript. IDs are ULIDs so they
// sort by creation time.
type ChatMessage struct {
	ID            string      `json:"id"`
	SessionID     string      `json:"sessionId"`
	SenderID      string      `json:"senderId"`
	SenderKind    AccountKind `json:"senderType"`
	Body          string      `json:"message"`
	Kind          MessageKind `json:"messageType"`
	AttachmentURL string      `json:"attachmentUrl,omitempty"`
	IsRead        bool        `json:"isRead"`
	SentAt        time.Time   `json:"sentAt"`
	IsEdited      bool        `json:"isEdited"`
	EditedAt      *time.Time  `json:"editedAt,omitempty"`
}

func NewChatMessage(sessionID, senderID string, sender AccountKind, kind MessageKind, body, attachmentURL string, now time.Time) *ChatMessage {
	if kind == "" {
		kind = MessageText
	}
	return &ChatMessage{
		ID:            ulid.Make().String(),
		SessionID:     sessionID,
		SenderID:      senderID,
		SenderKind:    sender,
		Body:          body,
		Kind:          kind,
		AttachmentURL: attachmentURL,
		SentAt:        now,
	}
}

// NewGreeting is the system message inserted when a counselor is assigned.
func NewGreeting(sessionID, counselorID string, now time.Time) *ChatMessage {
	return NewChatMessage(sessionID, counselorID, AccountCounselor, MessageSystem, GreetingText, "", now)
}
