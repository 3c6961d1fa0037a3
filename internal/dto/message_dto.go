package dto

import (
	"time"

	"github.com/opencourse/lms-api/internal/models"
)

// MessageSendRequest describes the payload for sending a direct message.
type MessageSendRequest struct {
	RecipientID uint   `json:"recipient_id" validate:"required,gt=0"`
	CourseID    *uint  `json:"course_id" validate:"omitempty,gt=0"`
	Content     string `json:"content" validate:"required,min=1,max=8000"`
}

// MessageFilter narrows message listings.
type MessageFilter struct {
	Box    string `query:"box" validate:"omitempty,oneof=inbox sent"`
	Status string `query:"status" validate:"omitempty,oneof=SENT READ ARCHIVED"`
	Limit  int    `query:"limit" validate:"omitempty,gte=1,lte=200"`
}

// MessageResponse is returned to API clients when viewing messages.
type MessageResponse struct {
	ID          uint      `json:"id"`
	SenderID    uint      `json:"sender_id"`
	RecipientID uint      `json:"recipient_id"`
	CourseID    *uint     `json:"course_id,omitempty"`
	Content     string    `json:"content"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewMessageResponse converts a Message model into a DTO.
func NewMessageResponse(model models.Message) MessageResponse {
	return MessageResponse{
		ID:          model.ID,
		SenderID:    model.SenderID,
		RecipientID: model.RecipientID,
		CourseID:    model.CourseID,
		Content:     model.Content,
		Status:      model.Status,
		CreatedAt:   model.CreatedAt,
	}
}

// NewMessageResponseSlice converts message models into DTOs.
func NewMessageResponseSlice(messages []models.Message) []MessageResponse {
	responses := make([]MessageResponse, 0, len(messages))
	for _, message := range messages {
		responses = append(responses, NewMessageResponse(message))
	}
	return responses
}
