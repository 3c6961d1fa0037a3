package models

import "time"

// Message statuses.
const (
	MessageStatusSent     = "SENT"
	MessageStatusRead     = "READ"
	MessageStatusArchived = "ARCHIVED"
)

// Message is a direct message between two users, optionally attached to a
// course for contextual threads.
type Message struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	SenderID    uint      `gorm:"not null;index" json:"sender_id"`
	RecipientID uint      `gorm:"not null;index" json:"recipient_id"`
	CourseID    *uint     `gorm:"index" json:"course_id,omitempty"`
	Content     string    `gorm:"type:text;not null" json:"content"`
	Status      string    `gorm:"size:32;not null;default:SENT" json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Sender      User      `gorm:"foreignKey:SenderID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"sender,omitempty"`
	Recipient   User      `gorm:"foreignKey:RecipientID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"recipient,omitempty"`
}
