package models

import (
	"time"

	"github.com/google/uuid"
)

// Message is a direct message between two users, optionally about a mission.
type Message struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	SenderID   uuid.UUID  `gorm:"type:uuid;index;not null" json:"sender_id"`
	ReceiverID uuid.UUID  `gorm:"type:uuid;index;not null" json:"receiver_id"`
	MissionID  *uuid.UUID `gorm:"type:uuid;index" json:"mission_id,omitempty"`
	Content    string     `gorm:"type:text;not null" json:"content"`
	ReadAt     *time.Time `json:"read_at"`
	CreatedAt  time.Time  `json:"created_at"`
}
