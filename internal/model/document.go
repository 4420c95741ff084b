package model

import "time"

// Document is the record of one uploaded file. Name doubles as the
// source identifier carried by every chunk produced from it.
type Document struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     uint      `gorm:"not null;index" json:"user_id"`
	Name       string    `gorm:"size:256;not null;uniqueIndex" json:"name"`
	Path       string    `gorm:"size:512;not null" json:"path"`
	SizeBytes  int64     `gorm:"not null" json:"size_bytes"`
	Extension  string    `gorm:"size:16;not null" json:"extension"`
	ChunkCount int       `gorm:"not null" json:"chunk_count"`
	CreatedAt  time.Time `json:"created_at"`
}
