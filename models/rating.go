package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Rating struct {
	ID           string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	OrderID      string    `gorm:"type:varchar(36);uniqueIndex:idx_rating_order_rater;not null" json:"order_id"`
	RatedUserID  string    `gorm:"type:varchar(36);index;not null" json:"rated_user_id"`
	RatingUserID string    `gorm:"type:varchar(36);uniqueIndex:idx_rating_order_rater;not null" json:"rating_user_id"`
	Score        int       `gorm:"not null" json:"rating"`
	Review       *string   `gorm:"type:text" json:"review,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (r *Rating) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}
