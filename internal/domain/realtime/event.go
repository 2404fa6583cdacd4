package realtime

import (
	"time"

	"moveon-server/services/messaging-api/internal/domain/message"
	"moveon-server/services/messaging-api/internal/domain/presence"
)

// EventType names a server-to-client event.
type EventType string

const (
	EventUserOnline          EventType = "user_online"
	EventUserOffline         EventType = "user_offline"
	EventReceiveMessage      EventType = "receive_message"
	EventReceiveGroupMessage EventType = "receive_group_message"
	EventMessageRead         EventType = "message_read"
	EventTyping              EventType = "typing"
	EventError               EventType = "error"
)

// Payload is implemented only by the payload types in this package.
type Payload interface {
	eventType() EventType
}

// Event is the wire envelope: {"type": ..., "data": {...}}.
type Event struct {
	Type EventType `json:"type"`
	Data Payload   `json:"data"`
}

func newEvent(p Payload) Event {
	return Event{Type: p.eventType(), Data: p}
}

type UserPresencePayload struct {
	UserID string `json:"user_id"`
	online bool
}

func (p UserPresencePayload) eventType() EventType {
	if p.online {
		return EventUserOnline
	}
	return EventUserOffline
}

type ReceiveMessagePayload struct {
	MessageID      string    `json:"message_id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	Content        string    `json:"content"`
	Sequence       int64     `json:"sequence"`
	Timestamp      time.Time `json:"timestamp"`
}

func (ReceiveMessagePayload) eventType() EventType { return EventReceiveMessage }

type ReceiveGroupMessagePayload struct {
	Group     string    `json:"group"`
	SenderID  string    `json:"sender_id"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

func (ReceiveGroupMessagePayload) eventType() EventType { return EventReceiveGroupMessage }

type MessageReadPayload struct {
	MessageID      string    `json:"message_id"`
	ConversationID string    `json:"conversation_id"`
	ReaderID       string    `json:"reader_id"`
	ReadAt         time.Time `json:"read_at"`
}

func (MessageReadPayload) eventType() EventType { return EventMessageRead }

type TypingPayload struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
}

func (TypingPayload) eventType() EventType { return EventTyping }

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (ErrorPayload) eventType() EventType { return EventError }

func UserOnline(userID string) Event {
	return newEvent(UserPresencePayload{UserID: userID, online: true})
}

func UserOffline(userID string) Event {
	return newEvent(UserPresencePayload{UserID: userID})
}

func ReceiveMessage(msg *message.Message) Event {
	return newEvent(ReceiveMessagePayload{
		MessageID:      msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		Content:        msg.Content,
		Sequence:       msg.Sequence,
		Timestamp:      msg.CreatedAt,
	})
}

func ReceiveGroupMessage(group, senderID, content string, at time.Time) Event {
	return newEvent(ReceiveGroupMessagePayload{
		Group:     group,
		SenderID:  senderID,
		Content:   content,
		Timestamp: at,
	})
}

func MessageRead(msg *message.Message) Event {
	readAt := msg.CreatedAt
	if msg.ReadAt != nil {
		readAt = *msg.ReadAt
	}
	return newEvent(MessageReadPayload{
		MessageID:      msg.ID,
		ConversationID: msg.ConversationID,
		ReaderID:       msg.ReceiverID,
		ReadAt:         readAt,
	})
}

func Typing(conversationID, userID string) Event {
	return newEvent(TypingPayload{ConversationID: conversationID, UserID: userID})
}

func Error(code, msg string) Event {
	return newEvent(ErrorPayload{Code: code, Message: msg})
}

// Conn is a live client connection that can receive events.
type Conn interface {
	presence.Handle
	// Send enqueues evt without blocking and reports whether it was accepted.
	Send(evt Event) bool
}
