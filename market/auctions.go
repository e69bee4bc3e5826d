package market

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"farmdirect/models"
	"farmdirect/realtime"
)

// AuctionState is the read model of an auction at a point in time.
type AuctionState struct {
	AuctionID        string               `json:"auction_id"`
	CurrentBid       *decimal.Decimal     `json:"current_bid"`
	HighestBidderID  *string              `json:"highest_bidder_id"`
	Status           models.AuctionStatus `json:"status"`
	EffectiveMinimum decimal.Decimal      `json:"effective_minimum"`
	EndTime          time.Time            `json:"end_time"`
}

// CreateAuction opens a timed auction for one of the farmer's available
// products.
func (s *Service) CreateAuction(ctx context.Context, farmerID, productID string, startingPrice decimal.Decimal, endTime time.Time) (*models.Auction, error) {
	if farmerID == "" {
		return nil, &ValidationError{Field: "farmer_id", Message: "is required"}
	}
	if productID == "" {
		return nil, &ValidationError{Field: "product_id", Message: "is required"}
	}
	if err := requireMoney("starting_price", startingPrice); err != nil {
		return nil, err
	}
	now := s.now()
	if !endTime.After(now) {
		return nil, &ValidationError{Field: "end_time", Message: "must be in the future"}
	}

	var product models.Product
	if err := s.store(ctx).First(&product, "id = ?", productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &ValidationError{Field: "product_id", Message: "product not found"}
		}
		return nil, storeErr("load product", err)
	}
	if product.FarmerID != farmerID {
		return nil, &ValidationError{Field: "product_id", Message: "product belongs to another farmer"}
	}
	if product.Status != models.ProductAvailable {
		return nil, &ValidationError{Field: "product_id", Message: "product is not available"}
	}

	auction := models.Auction{
		ProductID:     productID,
		FarmerID:      farmerID,
		StartingPrice: startingPrice,
		StartTime:     now,
		EndTime:       endTime.UTC(),
		Status:        models.AuctionActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store(ctx).Create(&auction).Error; err != nil {
		return nil, storeErr("create auction", err)
	}

	s.publish("auctions", realtime.Insert, auction, nil)
	return &auction, nil
}

// PlaceBid accepts amount from bidderID iff it is strictly greater than the
// auction's effective minimum at commit time. The auction update is a
// conditional write on the stored minimum, so of two racing bidders with
// the same stale view only one can win.
func (s *Service) PlaceBid(ctx context.Context, auctionID, bidderID string, amount decimal.Decimal) (*models.Bid, error) {
	if bidderID == "" {
		return nil, &ValidationError{Field: "bidder_id", Message: "is required"}
	}
	if err := checkMoneyScale("amount", amount); err != nil {
		return nil, err
	}

	tx := s.store(ctx).Begin()
	if tx.Error != nil {
		return nil, storeErr("begin place bid", tx.Error)
	}

	var auction models.Auction
	if err := tx.First(&auction, "id = ?", auctionID).Error; err != nil {
		tx.Rollback()
		return nil, lookupErr("auction", err)
	}

	now := s.now()
	if err := checkBid(&auction, bidderID, amount, now); err != nil {
		tx.Rollback()
		return nil, err
	}

	res := tx.Model(&models.Auction{}).
		Where("id = ? AND status = ? AND COALESCE(current_bid, starting_price) < CAST(? AS DECIMAL(12,2))",
			auction.ID, models.AuctionActive, amount).
		Updates(map[string]interface{}{
			"current_bid":       amount,
			"highest_bidder_id": bidderID,
			"updated_at":        now,
		})
	if res.Error != nil {
		tx.Rollback()
		return nil, storeErr("update auction bid", res.Error)
	}
	if res.RowsAffected == 0 {
		tx.Rollback()
		return nil, &BidRejectedError{Reason: BidTooLow, Minimum: auction.EffectiveMinimum()}
	}

	bid := models.Bid{
		AuctionID: auction.ID,
		BidderID:  bidderID,
		Amount:    amount,
		CreatedAt: now,
	}
	if err := tx.Create(&bid).Error; err != nil {
		tx.Rollback()
		return nil, storeErr("create bid", err)
	}

	if err := tx.Commit().Error; err != nil {
		return nil, storeErr("commit place bid", err)
	}

	auction.CurrentBid = &amount
	auction.HighestBidderID = &bidderID
	auction.UpdatedAt = now
	s.publish("bids", realtime.Insert, bid, nil)
	s.publish("auctions", realtime.Update, auction, nil)
	return &bid, nil
}

func checkBid(auction *models.Auction, bidderID string, amount decimal.Decimal, now time.Time) error {
	switch {
	case auction.FarmerID == bidderID:
		return &BidRejectedError{Reason: BidSelfBid}
	case auction.Status != models.AuctionActive:
		return &BidRejectedError{Reason: BidNotActive}
	case !now.Before(auction.EndTime):
		return &BidRejectedError{Reason: BidAuctionEnded}
	case !amount.GreaterThan(auction.EffectiveMinimum()):
		return &BidRejectedError{Reason: BidTooLow, Minimum: auction.EffectiveMinimum()}
	}
	return nil
}

func (s *Service) GetAuction(ctx context.Context, auctionID string) (*models.Auction, error) {
	var auction models.Auction
	if err := s.store(ctx).Preload("Product").First(&auction, "id = ?", auctionID).Error; err != nil {
		return nil, lookupErr("auction", err)
	}
	return &auction, nil
}

// GetAuctionState reports the auction with its status derived from the clock.
func (s *Service) GetAuctionState(ctx context.Context, auctionID string) (*AuctionState, error) {
	auction, err := s.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	return &AuctionState{
		AuctionID:        auction.ID,
		CurrentBid:       auction.CurrentBid,
		HighestBidderID:  auction.HighestBidderID,
		Status:           auction.StatusAt(s.now()),
		EffectiveMinimum: auction.EffectiveMinimum(),
		EndTime:          auction.EndTime,
	}, nil
}

// ListActiveAuctions returns auctions still open for bidding, newest first.
func (s *Service) ListActiveAuctions(ctx context.Context) ([]models.Auction, error) {
	var stored []models.Auction
	if err := s.store(ctx).Preload("Product").
		Where("status = ?", models.AuctionActive).
		Order("created_at desc").
		Find(&stored).Error; err != nil {
		return nil, storeErr("list auctions", err)
	}

	now := s.now()
	active := make([]models.Auction, 0, len(stored))
	for _, a := range stored {
		if a.StatusAt(now) == models.AuctionActive {
			active = append(active, a)
		}
	}
	return active, nil
}

// ListBids returns accepted bids, highest (and so most recent) first.
func (s *Service) ListBids(ctx context.Context, auctionID string) ([]models.Bid, error) {
	if _, err := s.GetAuction(ctx, auctionID); err != nil {
		return nil, err
	}
	var bids []models.Bid
	if err := s.store(ctx).Where("auction_id = ?", auctionID).Order("amount desc").Find(&bids).Error; err != nil {
		return nil, storeErr("list bids", err)
	}
	return bids, nil
}

// CancelAuction withdraws an active auction nobody has bid on yet.
func (s *Service) CancelAuction(ctx context.Context, farmerID, auctionID string) (*models.Auction, error) {
	auction, err := s.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if auction.FarmerID != farmerID {
		return nil, forbidden("auction belongs to another farmer")
	}
	if auction.StatusAt(s.now()) != models.AuctionActive {
		return nil, &ValidationError{Field: "auction_id", Message: "auction is not active"}
	}

	now := s.now()
	res := s.store(ctx).Model(&models.Auction{}).
		Where("id = ? AND status = ? AND current_bid IS NULL", auctionID, models.AuctionActive).
		Updates(map[string]interface{}{"status": models.AuctionCancelled, "updated_at": now})
	if res.Error != nil {
		return nil, storeErr("cancel auction", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, &ValidationError{Field: "auction_id", Message: "auction already has bids"}
	}

	auction.Status = models.AuctionCancelled
	auction.UpdatedAt = now
	s.publish("auctions", realtime.Update, auction, nil)
	return auction, nil
}

// CloseAuction persists the ended status once the end time has passed. It
// is idempotent and never required for correctness since reads derive it.
func (s *Service) CloseAuction(ctx context.Context, auctionID string) (*models.Auction, error) {
	auction, err := s.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if auction.Status != models.AuctionActive || auction.StatusAt(now) != models.AuctionEnded {
		return auction, nil
	}

	res := s.store(ctx).Model(&models.Auction{}).
		Where("id = ? AND status = ?", auctionID, models.AuctionActive).
		Updates(map[string]interface{}{"status": models.AuctionEnded, "updated_at": now})
	if res.Error != nil {
		return nil, storeErr("close auction", res.Error)
	}
	auction.Status = models.AuctionEnded
	if res.RowsAffected > 0 {
		auction.UpdatedAt = now
		s.publish("auctions", realtime.Update, auction, nil)
	}
	return auction, nil
}

// CloseExpiredAuctions persists ended for every active auction past its
// end time and reports how many it closed.
func (s *Service) CloseExpiredAuctions(ctx context.Context) (int, error) {
	var stored []models.Auction
	if err := s.store(ctx).Where("status = ?", models.AuctionActive).Find(&stored).Error; err != nil {
		return 0, storeErr("list open auctions", err)
	}

	now := s.now()
	closed := 0
	for _, a := range stored {
		if a.StatusAt(now) != models.AuctionEnded {
			continue
		}
		if _, err := s.CloseAuction(ctx, a.ID); err != nil {
			return closed, err
		}
		closed++
	}
	return closed, nil
}

// SettleAuction turns an ended, won auction into a pending auction purchase
// order for the highest bidder at the winning bid.
func (s *Service) SettleAuction(ctx context.Context, auctionID string) (*models.Order, error) {
	auction, err := s.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if auction.StatusAt(s.now()) != models.AuctionEnded {
		return nil, &ValidationError{Field: "auction_id", Message: "auction has not ended"}
	}
	if auction.HighestBidderID == nil || auction.CurrentBid == nil {
		return nil, &ValidationError{Field: "auction_id", Message: "auction ended without bids"}
	}

	id := auction.ID
	return s.CreateOrder(ctx, CreateOrderInput{
		BuyerID:        *auction.HighestBidderID,
		FarmerID:       auction.FarmerID,
		AuctionID:      &id,
		Quantity:       1,
		UnitPrice:      *auction.CurrentBid,
		DeliveryMethod: models.Pickup,
	})
}
