package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type AuctionStatus string

const (
	AuctionActive    AuctionStatus = "active"
	AuctionEnded     AuctionStatus = "ended"
	AuctionCancelled AuctionStatus = "cancelled"
)

type Auction struct {
	ID              string           `gorm:"type:varchar(36);primaryKey" json:"id"`
	ProductID       string           `gorm:"type:varchar(36);index;not null" json:"product_id"`
	FarmerID        string           `gorm:"type:varchar(36);index;not null" json:"farmer_id"`
	StartingPrice   decimal.Decimal  `gorm:"type:decimal(12,2);not null" json:"starting_price"`
	CurrentBid      *decimal.Decimal `gorm:"type:decimal(12,2)" json:"current_bid"`
	HighestBidderID *string          `gorm:"type:varchar(36)" json:"highest_bidder_id"`
	StartTime       time.Time        `gorm:"not null" json:"start_time"`
	EndTime         time.Time        `gorm:"index;not null" json:"end_time"`
	Status          AuctionStatus    `gorm:"size:20;index;not null" json:"status"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`

	Product *Product `gorm:"foreignKey:ProductID" json:"product,omitempty"`
}

func (a *Auction) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

// StatusAt derives the readable status: an active auction whose end time
// has passed reads as ended even if the stored flag has not caught up.
func (a *Auction) StatusAt(now time.Time) AuctionStatus {
	if a.Status == AuctionActive && !now.Before(a.EndTime) {
		return AuctionEnded
	}
	return a.Status
}

// EffectiveMinimum is the amount a new bid must exceed.
func (a *Auction) EffectiveMinimum() decimal.Decimal {
	if a.CurrentBid != nil {
		return *a.CurrentBid
	}
	return a.StartingPrice
}

type Bid struct {
	ID        string          `gorm:"type:varchar(36);primaryKey" json:"id"`
	AuctionID string          `gorm:"type:varchar(36);index;not null" json:"auction_id"`
	BidderID  string          `gorm:"type:varchar(36);index;not null" json:"bidder_id"`
	Amount    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	CreatedAt time.Time       `json:"created_at"`
}

func (b *Bid) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}
