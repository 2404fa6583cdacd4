// Package realtimereq contains the inbound websocket frame format.
package realtimereq

// FrameType names a client-to-server websocket frame.
type FrameType string

const (
	FrameSendMessage  FrameType = "send_message"
	FrameJoinGroup    FrameType = "join_group"
	FrameLeaveGroup   FrameType = "leave_group"
	FrameGroupMessage FrameType = "group_message"
	FrameTyping       FrameType = "typing"
	FrameMarkRead     FrameType = "mark_read"
)

// InboundFrame is a single client frame. Which fields are required depends on Type.
type InboundFrame struct {
	Type           FrameType `json:"type" validate:"required,oneof=send_message join_group leave_group group_message typing mark_read"`
	ConversationID string    `json:"conversation_id" validate:"required_if=Type send_message,required_if=Type typing"`
	Group          string    `json:"group" validate:"required_if=Type join_group,required_if=Type leave_group,required_if=Type group_message,max=100"`
	Content        string    `json:"content" validate:"required_if=Type send_message,required_if=Type group_message"`
	MessageID      string    `json:"message_id" validate:"required_if=Type mark_read"`
}
