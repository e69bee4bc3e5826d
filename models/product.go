package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ProductStatus string

const (
	ProductAvailable ProductStatus = "available"
	ProductSold      ProductStatus = "sold"
	ProductRemoved   ProductStatus = "removed"
)

type Product struct {
	ID                string          `gorm:"type:varchar(36);primaryKey" json:"id"`
	FarmerID          string          `gorm:"type:varchar(36);index;not null" json:"farmer_id"`
	Name              string          `gorm:"size:255;not null" json:"name"`
	Description       string          `gorm:"type:text" json:"description,omitempty"`
	Category          string          `gorm:"size:50;index;not null" json:"category"`
	PricePerUnit      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price_per_unit"`
	QuantityAvailable int             `gorm:"not null" json:"quantity_available"`
	Unit              string          `gorm:"size:20;not null" json:"unit"`
	Status            ProductStatus   `gorm:"size:20;index;default:'available'" json:"status"`
	HarvestDate       *time.Time      `json:"harvest_date,omitempty"`
	Location          string          `gorm:"size:255" json:"location,omitempty"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = ProductAvailable
	}
	return nil
}
