package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Conversation is a private thread between two users. Participant1 always
// sorts before Participant2 so one pair maps to one row.
type Conversation struct {
	ID           string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	Participant1 string    `gorm:"column:participant_1;type:varchar(36);uniqueIndex:idx_conversation_pair;not null" json:"participant_1"`
	Participant2 string    `gorm:"column:participant_2;type:varchar(36);uniqueIndex:idx_conversation_pair;not null" json:"participant_2"`
	ProductID    *string   `gorm:"type:varchar(36)" json:"product_id,omitempty"`
	OrderID      *string   `gorm:"type:varchar(36)" json:"order_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (c *Conversation) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// HasParticipant reports whether userID is one of the two parties.
func (c *Conversation) HasParticipant(userID string) bool {
	return c.Participant1 == userID || c.Participant2 == userID
}

type Message struct {
	ID             string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	ConversationID string     `gorm:"type:varchar(36);index;not null" json:"conversation_id"`
	SenderID       string     `gorm:"type:varchar(36);index;not null" json:"sender_id"`
	Content        string     `gorm:"type:text;not null" json:"content"`
	ReadAt         *time.Time `json:"read_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}
