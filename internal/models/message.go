package models

import "time"

// Message belongs to exactly one chat and is authored by one of its two
// participants. Read reports whether the non-sender participant has seen
// the message; a message is never unread for its own sender. The single
// flag is sound only because chats have exactly two participants -- group
// chats would need a per-viewer read receipt instead.
type Message struct {
	ID       string    `db:"id" json:"id"`
	ChatID   string    `db:"chat_id" json:"chat_id"`
	SenderID string    `db:"sender_id" json:"sender_id"`
	Content  string    `db:"content" json:"content"`
	SentAt   time.Time `db:"sent_at" json:"sent_at"`
	Read     bool      `db:"is_read" json:"read"`
}
