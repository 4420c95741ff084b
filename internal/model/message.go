package model

import "time"

type Message struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	ConversationID uint      `gorm:"not null;index" json:"conversation_id"`
	UserID         uint      `gorm:"not null;index" json:"user_id"`
	Role           string    `gorm:"size:16;not null;index" json:"role"`
	Content        string    `gorm:"type:text;not null" json:"content"`
	Sources        string    `gorm:"size:1024" json:"sources,omitempty"` // comma-joined source names for assistant turns
	CreatedAt      time.Time `json:"created_at"`
}
