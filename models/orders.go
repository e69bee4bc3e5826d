package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OrderStatus is a state of the order lifecycle.
type OrderStatus string

const (
	StatusPending        OrderStatus = "pending"
	StatusConfirmed      OrderStatus = "confirmed"
	StatusPreparing      OrderStatus = "preparing"
	StatusReadyForPickup OrderStatus = "ready_for_pickup"
	StatusCompleted      OrderStatus = "completed"
	StatusCancelled      OrderStatus = "cancelled"
)

// Terminal reports whether no transition may leave s.
func (s OrderStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type OrderType string

const (
	DirectPurchase  OrderType = "direct_purchase"
	AuctionPurchase OrderType = "auction_purchase"
)

type DeliveryMethod string

const (
	Pickup   DeliveryMethod = "pickup"
	Delivery DeliveryMethod = "delivery"
)

type Order struct {
	ID              string          `gorm:"type:varchar(36);primaryKey" json:"id"`
	BuyerID         string          `gorm:"type:varchar(36);index;not null" json:"buyer_id"`
	FarmerID        string          `gorm:"type:varchar(36);index;not null" json:"farmer_id"`
	ProductID       *string         `gorm:"type:varchar(36);index" json:"product_id,omitempty"`
	AuctionID       *string         `gorm:"type:varchar(36);uniqueIndex" json:"auction_id,omitempty"`
	Quantity        int             `gorm:"not null" json:"quantity"`
	UnitPrice       decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unit_price"`
	TotalAmount     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total_amount"`
	Status          OrderStatus     `gorm:"size:20;index;not null" json:"status"`
	OrderType       OrderType       `gorm:"column:order_type;size:20;not null" json:"order_type"`
	DeliveryMethod  DeliveryMethod  `gorm:"size:20;not null" json:"delivery_method"`
	DeliveryAddress *string         `gorm:"type:text" json:"delivery_address,omitempty"`
	Notes           *string         `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`

	Product *Product `gorm:"foreignKey:ProductID" json:"product,omitempty"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	return nil
}

// OrderStatusHistory is one append-only audit row per accepted transition.
type OrderStatusHistory struct {
	ID        uint        `gorm:"primaryKey" json:"-"`
	EntryID   string      `gorm:"type:varchar(36);uniqueIndex;not null" json:"id"`
	OrderID   string      `gorm:"type:varchar(36);index;not null" json:"order_id"`
	Status    OrderStatus `gorm:"size:20;not null" json:"status"`
	ChangedBy string      `gorm:"type:varchar(36);not null" json:"changed_by"`
	Notes     *string     `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

func (OrderStatusHistory) TableName() string {
	return "order_status_history"
}

func (h *OrderStatusHistory) BeforeCreate(tx *gorm.DB) error {
	if h.EntryID == "" {
		h.EntryID = uuid.NewString()
	}
	return nil
}
