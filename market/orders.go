package market

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"farmdirect/models"
	"farmdirect/realtime"
)

type CreateOrderInput struct {
	BuyerID         string                `json:"-" validate:"required"`
	FarmerID        string                `json:"farmer_id" validate:"required"`
	ProductID       *string               `json:"product_id"`
	AuctionID       *string               `json:"auction_id"`
	Quantity        int                   `json:"quantity" validate:"gt=0"`
	UnitPrice       decimal.Decimal       `json:"unit_price"`
	DeliveryMethod  models.DeliveryMethod `json:"delivery_method" validate:"required,oneof=pickup delivery"`
	DeliveryAddress *string               `json:"delivery_address"`
	Notes           *string               `json:"notes"`
}

func (in *CreateOrderInput) check() error {
	if err := validateInput(in); err != nil {
		return err
	}
	in.ProductID = trimmed(in.ProductID)
	in.AuctionID = trimmed(in.AuctionID)
	in.DeliveryAddress = trimmed(in.DeliveryAddress)
	in.Notes = trimmed(in.Notes)

	if (in.ProductID == nil) == (in.AuctionID == nil) {
		return &ValidationError{Field: "product_id", Message: "exactly one of product_id or auction_id is required"}
	}
	if err := requireMoney("unit_price", in.UnitPrice); err != nil {
		return err
	}
	if total := in.UnitPrice.Mul(decimal.NewFromInt(int64(in.Quantity))); total.GreaterThanOrEqual(maxMoney) {
		return &ValidationError{Field: "quantity", Message: "order total is too large"}
	}
	if in.DeliveryMethod == models.Delivery && in.DeliveryAddress == nil {
		return &ValidationError{Field: "delivery_address", Message: "is required for delivery"}
	}
	if in.DeliveryMethod == models.Pickup {
		in.DeliveryAddress = nil
	}
	if in.BuyerID == in.FarmerID {
		return &ValidationError{Field: "farmer_id", Message: "buyer and farmer must differ"}
	}
	if in.AuctionID != nil && in.Quantity != 1 {
		return &ValidationError{Field: "quantity", Message: "an auction settles as a single lot"}
	}
	return nil
}

// CreateOrder places a pending order. The total is fixed here as
// quantity × unit price and never recomputed.
func (s *Service) CreateOrder(ctx context.Context, in CreateOrderInput) (*models.Order, error) {
	if err := in.check(); err != nil {
		return nil, err
	}
	now := s.now()

	order := models.Order{
		BuyerID:         in.BuyerID,
		FarmerID:        in.FarmerID,
		ProductID:       in.ProductID,
		AuctionID:       in.AuctionID,
		Quantity:        in.Quantity,
		UnitPrice:       in.UnitPrice,
		TotalAmount:     in.UnitPrice.Mul(decimal.NewFromInt(int64(in.Quantity))),
		Status:          models.StatusPending,
		OrderType:       models.DirectPurchase,
		DeliveryMethod:  in.DeliveryMethod,
		DeliveryAddress: in.DeliveryAddress,
		Notes:           in.Notes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	tx := s.store(ctx).Begin()
	if tx.Error != nil {
		return nil, storeErr("begin create order", tx.Error)
	}

	var err error
	if in.AuctionID != nil {
		order.OrderType = models.AuctionPurchase
		err = s.reserveAuctionLot(tx, &order)
	} else {
		err = reserveStock(tx, &order)
	}
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Create(&order).Error; err != nil {
		tx.Rollback()
		if in.AuctionID != nil && isDuplicateKey(err) {
			return nil, &ValidationError{Field: "auction_id", Message: "auction already settled"}
		}
		return nil, storeErr("create order", err)
	}

	history := models.OrderStatusHistory{
		OrderID:   order.ID,
		Status:    models.StatusPending,
		ChangedBy: in.BuyerID,
		CreatedAt: now,
	}
	if err := tx.Create(&history).Error; err != nil {
		tx.Rollback()
		return nil, storeErr("create order history", err)
	}

	if err := tx.Commit().Error; err != nil {
		return nil, storeErr("commit create order", err)
	}

	s.publish("orders", realtime.Insert, order, nil)
	return &order, nil
}

// reserveStock checks the product against the order and takes the ordered
// quantity out of stock with a conditional decrement.
func reserveStock(tx *gorm.DB, order *models.Order) error {
	var product models.Product
	if err := tx.First(&product, "id = ?", *order.ProductID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &ValidationError{Field: "product_id", Message: "product not found"}
		}
		return storeErr("load product", err)
	}

	if product.FarmerID != order.FarmerID {
		return &ValidationError{Field: "farmer_id", Message: "product belongs to another farmer"}
	}
	if product.Status != models.ProductAvailable {
		return &ValidationError{Field: "product_id", Message: "product is not available"}
	}
	if !product.PricePerUnit.Equal(order.UnitPrice) {
		return &ValidationError{Field: "unit_price", Message: "does not match the current product price"}
	}

	res := tx.Model(&models.Product{}).
		Where("id = ? AND quantity_available >= ?", product.ID, order.Quantity).
		Update("quantity_available", gorm.Expr("quantity_available - ?", order.Quantity))
	if res.Error != nil {
		return storeErr("decrement stock", res.Error)
	}
	if res.RowsAffected == 0 {
		return &ValidationError{Field: "quantity", Message: "exceeds quantity available"}
	}

	if err := tx.Model(&models.Product{}).
		Where("id = ? AND quantity_available <= 0", product.ID).
		Update("status", models.ProductSold).Error; err != nil {
		return storeErr("mark product sold", err)
	}
	return nil
}

// reserveAuctionLot checks that the order settles an ended auction for its
// winner at the winning bid, then closes the auction and its product.
func (s *Service) reserveAuctionLot(tx *gorm.DB, order *models.Order) error {
	var auction models.Auction
	if err := tx.First(&auction, "id = ?", *order.AuctionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &ValidationError{Field: "auction_id", Message: "auction not found"}
		}
		return storeErr("load auction", err)
	}

	if auction.FarmerID != order.FarmerID {
		return &ValidationError{Field: "farmer_id", Message: "auction belongs to another farmer"}
	}
	if auction.StatusAt(s.now()) != models.AuctionEnded {
		return &ValidationError{Field: "auction_id", Message: "auction has not ended"}
	}
	if auction.HighestBidderID == nil || *auction.HighestBidderID != order.BuyerID {
		return &ValidationError{Field: "auction_id", Message: "buyer did not win the auction"}
	}
	if auction.CurrentBid == nil || !auction.CurrentBid.Equal(order.UnitPrice) {
		return &ValidationError{Field: "unit_price", Message: "does not match the winning bid"}
	}

	productID := auction.ProductID
	order.ProductID = &productID

	if err := tx.Model(&models.Auction{}).
		Where("id = ? AND status = ?", auction.ID, models.AuctionActive).
		Updates(map[string]interface{}{"status": models.AuctionEnded, "updated_at": s.now()}).Error; err != nil {
		return storeErr("close auction", err)
	}
	if err := tx.Model(&models.Product{}).
		Where("id = ?", auction.ProductID).
		Updates(map[string]interface{}{"status": models.ProductSold, "quantity_available": 0}).Error; err != nil {
		return storeErr("mark auctioned product sold", err)
	}
	return nil
}

// TransitionOrder moves an order to target on behalf of actorID. The write
// is conditional on the status read, so a concurrent change makes it fail
// instead of overwriting.
func (s *Service) TransitionOrder(ctx context.Context, orderID, actorID string, target models.OrderStatus, note *string) error {
	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if err := checkTransition(order, actorID, target); err != nil {
		return err
	}

	from := order.Status
	now := s.now()

	tx := s.store(ctx).Begin()
	if tx.Error != nil {
		return storeErr("begin transition", tx.Error)
	}

	res := tx.Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, from).
		Updates(map[string]interface{}{"status": target, "updated_at": now})
	if res.Error != nil {
		tx.Rollback()
		return storeErr("update order status", res.Error)
	}
	if res.RowsAffected == 0 {
		tx.Rollback()
		return &TransitionError{From: from, To: target, Reason: "order status changed concurrently"}
	}

	history := models.OrderStatusHistory{
		OrderID:   orderID,
		Status:    target,
		ChangedBy: actorID,
		Notes:     trimmed(note),
		CreatedAt: now,
	}
	if err := tx.Create(&history).Error; err != nil {
		tx.Rollback()
		return storeErr("append order history", err)
	}

	if err := tx.Commit().Error; err != nil {
		return storeErr("commit transition", err)
	}

	order.Status = target
	order.UpdatedAt = now
	s.publish("orders", realtime.Update, order, nil)
	return nil
}

// nextByFarmer is the forward path only the farmer may drive.
var nextByFarmer = map[models.OrderStatus]models.OrderStatus{
	models.StatusPending:        models.StatusConfirmed,
	models.StatusConfirmed:      models.StatusPreparing,
	models.StatusPreparing:      models.StatusReadyForPickup,
	models.StatusReadyForPickup: models.StatusCompleted,
}

func checkTransition(order *models.Order, actorID string, target models.OrderStatus) error {
	reject := func(reason string) error {
		return &TransitionError{From: order.Status, To: target, Reason: reason}
	}

	isFarmer := actorID == order.FarmerID
	isBuyer := actorID == order.BuyerID

	switch {
	case !isFarmer && !isBuyer:
		return reject("actor is not a party to the order")
	case order.Status.Terminal():
		return reject("order is " + string(order.Status))
	case target == models.StatusCancelled:
		if order.Status != models.StatusPending {
			return reject("only pending orders can be cancelled")
		}
		return nil
	case nextByFarmer[order.Status] != target:
		return reject("not the next status")
	case !isFarmer:
		return reject("only the farmer may advance the order")
	}
	return nil
}

func (s *Service) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	var order models.Order
	if err := s.store(ctx).First(&order, "id = ?", orderID).Error; err != nil {
		return nil, lookupErr("order", err)
	}
	return &order, nil
}

// ListOrderHistory returns the order's transitions, oldest first.
func (s *Service) ListOrderHistory(ctx context.Context, orderID string) ([]models.OrderStatusHistory, error) {
	if _, err := s.GetOrder(ctx, orderID); err != nil {
		return nil, err
	}

	var history []models.OrderStatusHistory
	if err := s.store(ctx).Where("order_id = ?", orderID).Order("created_at asc, id asc").Find(&history).Error; err != nil {
		return nil, storeErr("list order history", err)
	}
	return history, nil
}

// OrderFilter selects the orders a user sees.
type OrderFilter struct {
	UserID   string
	AsFarmer bool
	Status   models.OrderStatus
}

// ListOrders returns the user's orders, newest first. Farmers see orders
// placed with them, consumers the orders they placed.
func (s *Service) ListOrders(ctx context.Context, f OrderFilter) ([]models.Order, error) {
	column := "buyer_id"
	if f.AsFarmer {
		column = "farmer_id"
	}
	query := s.store(ctx).Preload("Product").Where(column+" = ?", f.UserID)
	if status := strings.TrimSpace(string(f.Status)); status != "" && status != "all" {
		query = query.Where("status = ?", status)
	}

	var orders []models.Order
	if err := query.Order("created_at desc").Find(&orders).Error; err != nil {
		return nil, storeErr("list orders", err)
	}
	return orders, nil
}
