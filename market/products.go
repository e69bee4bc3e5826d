package market

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"farmdirect/models"
	"farmdirect/realtime"
)

type CreateProductInput struct {
	FarmerID          string          `json:"-" validate:"required"`
	Name              string          `json:"name" validate:"required,max=255"`
	Description       string          `json:"description"`
	Category          string          `json:"category" validate:"required,max=50"`
	PricePerUnit      decimal.Decimal `json:"price_per_unit"`
	QuantityAvailable int             `json:"quantity_available" validate:"gte=0"`
	Unit              string          `json:"unit" validate:"required,max=20"`
	HarvestDate       *time.Time      `json:"harvest_date"`
	Location          string          `json:"location" validate:"max=255"`
}

func (s *Service) CreateProduct(ctx context.Context, in CreateProductInput) (*models.Product, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if err := requireMoney("price_per_unit", in.PricePerUnit); err != nil {
		return nil, err
	}

	now := s.now()
	product := models.Product{
		FarmerID:          in.FarmerID,
		Name:              strings.TrimSpace(in.Name),
		Description:       in.Description,
		Category:          in.Category,
		PricePerUnit:      in.PricePerUnit,
		QuantityAvailable: in.QuantityAvailable,
		Unit:              in.Unit,
		Status:            models.ProductAvailable,
		HarvestDate:       in.HarvestDate,
		Location:          in.Location,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.store(ctx).Create(&product).Error; err != nil {
		return nil, storeErr("create product", err)
	}

	s.publish("products", realtime.Insert, product, nil)
	return &product, nil
}

func (s *Service) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	var product models.Product
	if err := s.store(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, lookupErr("product", err)
	}
	return &product, nil
}

// ProductFilter narrows the marketplace listing.
type ProductFilter struct {
	Category string
	Search   string
}

// ListProducts returns available products, newest first.
func (s *Service) ListProducts(ctx context.Context, f ProductFilter) ([]models.Product, error) {
	query := s.store(ctx).Where("status = ?", models.ProductAvailable)
	if f.Category != "" {
		query = query.Where("category = ?", f.Category)
	}
	if q := strings.TrimSpace(f.Search); q != "" {
		query = query.Where("name LIKE ?", "%"+q+"%")
	}

	var products []models.Product
	if err := query.Order("created_at desc").Find(&products).Error; err != nil {
		return nil, storeErr("list products", err)
	}
	return products, nil
}

func (s *Service) ListFarmerProducts(ctx context.Context, farmerID string) ([]models.Product, error) {
	var products []models.Product
	if err := s.store(ctx).Where("farmer_id = ?", farmerID).Order("created_at desc").Find(&products).Error; err != nil {
		return nil, storeErr("list farmer products", err)
	}
	return products, nil
}

// UpdateProductStatus lets the owning farmer mark a product sold or removed,
// or relist it.
func (s *Service) UpdateProductStatus(ctx context.Context, farmerID, productID string, status models.ProductStatus) (*models.Product, error) {
	switch status {
	case models.ProductAvailable, models.ProductSold, models.ProductRemoved:
	default:
		return nil, &ValidationError{Field: "status", Message: "must be one of available sold removed"}
	}

	product, err := s.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product.FarmerID != farmerID {
		return nil, forbidden("product belongs to another farmer")
	}
	if status == models.ProductAvailable && product.QuantityAvailable <= 0 {
		return nil, &ValidationError{Field: "quantity_available", Message: "restock the product before relisting it"}
	}

	if err := s.store(ctx).Model(product).Update("status", status).Error; err != nil {
		return nil, storeErr("update product status", err)
	}
	product.Status = status

	s.publish("products", realtime.Update, product, nil)
	return product, nil
}

// UpdateProductInput carries the fields a farmer may edit. Nil leaves a
// field unchanged.
type UpdateProductInput struct {
	Name              *string          `json:"name" validate:"omitempty,max=255"`
	Description       *string          `json:"description"`
	Category          *string          `json:"category" validate:"omitempty,max=50"`
	PricePerUnit      *decimal.Decimal `json:"price_per_unit"`
	QuantityAvailable *int             `json:"quantity_available" validate:"omitempty,gte=0"`
	Unit              *string          `json:"unit" validate:"omitempty,max=20"`
	HarvestDate       *time.Time       `json:"harvest_date"`
	Location          *string          `json:"location" validate:"omitempty,max=255"`
}

func (in *UpdateProductInput) changes() (map[string]interface{}, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}

	changes := map[string]interface{}{}
	for _, f := range []struct {
		column string
		value  *string
	}{
		{"name", in.Name},
		{"category", in.Category},
		{"unit", in.Unit},
	} {
		if f.value == nil {
			continue
		}
		v := strings.TrimSpace(*f.value)
		if v == "" {
			return nil, &ValidationError{Field: f.column, Message: "is required"}
		}
		changes[f.column] = v
	}
	if in.Description != nil {
		changes["description"] = strings.TrimSpace(*in.Description)
	}
	if in.Location != nil {
		changes["location"] = strings.TrimSpace(*in.Location)
	}
	if in.HarvestDate != nil {
		changes["harvest_date"] = in.HarvestDate.UTC()
	}
	if in.PricePerUnit != nil {
		if err := requireMoney("price_per_unit", *in.PricePerUnit); err != nil {
			return nil, err
		}
		changes["price_per_unit"] = *in.PricePerUnit
	}
	if in.QuantityAvailable != nil {
		changes["quantity_available"] = *in.QuantityAvailable
	}

	if len(changes) == 0 {
		return nil, &ValidationError{Field: "input", Message: "no fields to update"}
	}
	return changes, nil
}

// UpdateProduct edits the owning farmer's product. Restocking a sold
// product lists it again; taking the stock to zero marks it sold.
func (s *Service) UpdateProduct(ctx context.Context, farmerID, productID string, in UpdateProductInput) (*models.Product, error) {
	changes, err := in.changes()
	if err != nil {
		return nil, err
	}

	product, err := s.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product.FarmerID != farmerID {
		return nil, forbidden("product belongs to another farmer")
	}

	if in.QuantityAvailable != nil {
		switch {
		case *in.QuantityAvailable > 0 && product.Status == models.ProductSold:
			changes["status"] = models.ProductAvailable
		case *in.QuantityAvailable == 0 && product.Status == models.ProductAvailable:
			changes["status"] = models.ProductSold
		}
	}
	changes["updated_at"] = s.now()

	if err := s.store(ctx).Model(&models.Product{}).Where("id = ?", product.ID).Updates(changes).Error; err != nil {
		return nil, storeErr("update product", err)
	}

	updated, err := s.GetProduct(ctx, product.ID)
	if err != nil {
		return nil, err
	}
	s.publish("products", realtime.Update, updated, nil)
	return updated, nil
}
