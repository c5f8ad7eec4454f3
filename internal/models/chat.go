package models

import "time"

// DefaultChatSubject is applied when a chat is created without one.
const DefaultChatSubject = "General Discussion"

// Chat is a 1:1 conversation between one teacher and one student. At most
// one chat exists per (teacher, student) pair; LastMessageAt orders the
// user's chat list and advances on every send.
type Chat struct {
	ID            string    `db:"id" json:"id"`
	TeacherID     string    `db:"teacher_id" json:"teacher_id"`
	StudentID     string    `db:"student_id" json:"student_id"`
	Subject       string    `db:"subject" json:"subject"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	LastMessageAt time.Time `db:"last_message_at" json:"last_message_at"`
}

// ChatSummary decorates a chat with viewer-relative data for listings.
type ChatSummary struct {
	Chat
	UnreadCount int64 `json:"unread_count"`
	IsNew       bool  `json:"is_new,omitempty"`
}

// HasParticipant reports whether the user is one of the chat's two members.
func (c *Chat) HasParticipant(userID string) bool {
	return c.TeacherID == userID || c.StudentID == userID
}

// OtherParticipant returns the counterpart of the given participant.
func (c *Chat) OtherParticipant(userID string) string {
	if c.TeacherID == userID {
		return c.StudentID
	}
	return c.TeacherID
}
