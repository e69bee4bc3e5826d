package market

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"farmdirect/models"
)

const (
	bidderA = "bidder-a-0000-0000-0000-00000000000a"
	bidderB = "bidder-b-0000-0000-0000-00000000000b"
)

func (f *fixture) auction(t *testing.T, start string, d time.Duration) *models.Auction {
	t.Helper()
	p := f.product(t, farmerID, 1, start)
	a, err := f.svc.CreateAuction(ctx, farmerID, p.ID, money(start), f.clock.Now().Add(d))
	require.NoError(t, err)
	return a
}

func requireRejected(t *testing.T, err error, reason BidRejectReason) {
	t.Helper()
	require.ErrorIs(t, err, ErrBidRejected)
	var be *BidRejectedError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, reason, be.Reason)
}

func TestBiddingScenario(t *testing.T) {
	f := newFixture(t)
	a := f.auction(t, "100", time.Hour)

	_, err := f.svc.PlaceBid(ctx, a.ID, bidderA, money("100"))
	requireRejected(t, err, BidTooLow)

	_, err = f.svc.PlaceBid(ctx, a.ID, bidderA, money("101"))
	require.NoError(t, err)
	state, err := f.svc.GetAuctionState(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, state.CurrentBid)
	assert.True(t, state.CurrentBid.Equal(money("101")))
	assert.Equal(t, bidderA, *state.HighestBidderID)

	_, err = f.svc.PlaceBid(ctx, a.ID, bidderB, money("101"))
	requireRejected(t, err, BidTooLow)

	_, err = f.svc.PlaceBid(ctx, a.ID, bidderB, money("150"))
	require.NoError(t, err)
	state, err = f.svc.GetAuctionState(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, state.CurrentBid.Equal(money("150")))
	assert.Equal(t, bidderB, *state.HighestBidderID)
	assert.True(t, state.EffectiveMinimum.Equal(money("150")))
	assert.Equal(t, models.AuctionActive, state.Status)

	bids, err := f.svc.ListBids(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, bids, 2)
	assert.True(t, bids[0].Amount.Equal(money("150")))
	assert.True(t, bids[1].Amount.Equal(money("101")))
}

func TestRejectedBidLeavesNoTrace(t *testing.T) {
	f := newFixture(t)
	a := f.auction(t, "20", time.Hour)
	_, err := f.svc.PlaceBid(ctx, a.ID, bidderA, money("25"))
	require.NoError(t, err)
	f.feed.reset()

	_, err = f.svc.PlaceBid(ctx, a.ID, bidderB, money("24.99"))
	requireRejected(t, err, BidTooLow)
	var be *BidRejectedError
	require.ErrorAs(t, err, &be)
	assert.True(t, be.Minimum.Equal(money("25")))

	var stored models.Auction
	f.reload(t, &stored, a.ID)
	assert.True(t, stored.CurrentBid.Equal(money("25")))
	assert.Equal(t, bidderA, *stored.HighestBidderID)

	var count int64
	require.NoError(t, f.db.Model(&models.Bid{}).Where("auction_id = ?", a.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
	assert.Empty(t, f.feed.tables())
}

func TestFarmerCannotBidOnOwnAuction(t *testing.T) {
	f := newFixture(t)
	a := f.auction(t, "10", time.Hour)

	for _, amount := range []string{"5", "10", "1000"} {
		_, err := f.svc.PlaceBid(ctx, a.ID, farmerID, money(amount))
		requireRejected(t, err, BidSelfBid)
	}
}

func TestBidAfterEndTime(t *testing.T) {
	f := newFixture(t)
	a := f.auction(t, "10", time.Hour)
	_, err := f.svc.PlaceBid(ctx, a.ID, bidderA, money("11"))
	require.NoError(t, err)

	f.clock.Advance(time.Hour)

	_, err = f.svc.PlaceBid(ctx, a.ID, bidderB, money("50"))
	requireRejected(t, err, BidAuctionEnded)

	state, err := f.svc.GetAuctionState(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AuctionEnded, state.Status)
	assert.True(t, state.CurrentBid.Equal(money("11")))
	assert.Equal(t, bidderA, *state.HighestBidderID)

	active, err := f.svc.ListActiveAuctions(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestBidOnCancelledAuction(t *testing.T) {
	f := newFixture(t)
	a := f.auction(t, "10", time.Hour)

	_, err := f.svc.CancelAuction(ctx, otherID, a.ID)
	require.ErrorIs(t, err, ErrForbidden)

	cancelled, err := f.svc.CancelAuction(ctx, farmerID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AuctionCancelled, cancelled.Status)

	_, err = f.svc.PlaceBid(ctx, a.ID, bidderA, money("20"))
	requireRejected(t, err, BidNotActive)
}

func TestCannotCancelAuctionWithBids(t *testing.T) {
	f := newFixture(t)
	a := f.auction(t, "10", time.Hour)
	_, err := f.svc.PlaceBid(ctx, a.ID, bidderA, money("12"))
	require.NoError(t, err)

	_, err = f.svc.CancelAuction(ctx, farmerID, a.ID)
	require.ErrorIs(t, err, ErrValidation)

	var stored models.Auction
	f.reload(t, &stored, a.ID)
	assert.Equal(t, models.AuctionActive, stored.Status)
}

func TestBidOnUnknownAuction(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.PlaceBid(ctx, "missing", bidderA, money("10"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateAuctionValidation(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, farmerID, 1, "10")
	theirs := f.product(t, otherID, 1, "10")
	later := f.clock.Now().Add(time.Hour)

	tests := []struct {
		name      string
		farmer    string
		productID string
		start     string
		end       time.Time
		field     string
	}{
		{"zero start", farmerID, p.ID, "0", later, "starting_price"},
		{"negative start", farmerID, p.ID, "-1", later, "starting_price"},
		{"ends now", farmerID, p.ID, "10", f.clock.Now(), "end_time"},
		{"ended", farmerID, p.ID, "10", f.clock.Now().Add(-time.Minute), "end_time"},
		{"missing product", farmerID, "nope", "10", later, "product_id"},
		{"not owner", farmerID, theirs.ID, "10", later, "product_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateAuction(ctx, tt.farmer, tt.productID, money(tt.start), tt.end)
			require.ErrorIs(t, err, ErrValidation)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}

	_, err := f.svc.UpdateProductStatus(ctx, farmerID, p.ID, models.ProductRemoved)
	require.NoError(t, err)
	_, err = f.svc.CreateAuction(ctx, farmerID, p.ID, money("10"), later)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestConcurrentBidsAreStrictlyIncreasing(t *testing.T) {
	f := newFixture(t)
	a := f.auction(t, "10", time.Hour)

	const bidders = 16
	var wg sync.WaitGroup
	errs := make([]error, bidders)
	for i := 0; i < bidders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// pairs of bidders race with the same amount
			amount := money(fmt.Sprintf("%d", 11+i/2))
			_, errs[i] = f.svc.PlaceBid(ctx, a.ID, fmt.Sprintf("bidder-%02d", i), amount)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			requireRejected(t, err, BidTooLow)
		}
	}

	var bids []models.Bid
	require.NoError(t, f.db.Where("auction_id = ?", a.ID).Order("rowid asc").Find(&bids).Error)
	require.NotEmpty(t, bids)
	for i := 1; i < len(bids); i++ {
		assert.True(t, bids[i].Amount.GreaterThan(bids[i-1].Amount), "bid %d (%s) not above %s", i, bids[i].Amount, bids[i-1].Amount)
	}

	last := bids[len(bids)-1]
	var stored models.Auction
	f.reload(t, &stored, a.ID)
	require.NotNil(t, stored.CurrentBid)
	assert.True(t, stored.CurrentBid.Equal(last.Amount))
	assert.Equal(t, last.BidderID, *stored.HighestBidderID)
}

func TestBidPublishesBidAndAuction(t *testing.T) {
	f := newFixture(t)
	a := f.auction(t, "10", time.Hour)
	f.feed.reset()

	_, err := f.svc.PlaceBid(ctx, a.ID, bidderA, money("10.50"))
	require.NoError(t, err)
	assert.Equal(t, []string{"bids INSERT", "auctions UPDATE"}, f.feed.tables())
}

func TestCloseAuctionIsIdempotent(t *testing.T) {
	f := newFixture(t)
	a := f.auction(t, "10", time.Hour)

	still, err := f.svc.CloseAuction(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AuctionActive, still.Status)

	f.clock.Advance(2 * time.Hour)
	n, err := f.svc.CloseExpiredAuctions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	again, err := f.svc.CloseAuction(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AuctionEnded, again.Status)

	n, err = f.svc.CloseExpiredAuctions(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSettleAuction(t *testing.T) {
	f := newFixture(t)
	a := f.auction(t, "40", time.Hour)
	_, err := f.svc.PlaceBid(ctx, a.ID, bidderA, money("45"))
	require.NoError(t, err)
	_, err = f.svc.PlaceBid(ctx, a.ID, bidderB, money("52.5"))
	require.NoError(t, err)

	_, err = f.svc.SettleAuction(ctx, a.ID)
	require.ErrorIs(t, err, ErrValidation, "auction still running")

	f.clock.Advance(time.Hour)
	order, err := f.svc.SettleAuction(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, bidderB, order.BuyerID)
	assert.Equal(t, farmerID, order.FarmerID)
	assert.Equal(t, models.AuctionPurchase, order.OrderType)
	assert.Equal(t, models.StatusPending, order.Status)
	assert.Equal(t, 1, order.Quantity)
	assert.True(t, order.TotalAmount.Equal(money("52.50")))
	require.NotNil(t, order.ProductID)
	assert.Equal(t, a.ProductID, *order.ProductID)

	var stored models.Auction
	f.reload(t, &stored, a.ID)
	assert.Equal(t, models.AuctionEnded, stored.Status)
	var product models.Product
	f.reload(t, &product, a.ProductID)
	assert.Equal(t, models.ProductSold, product.Status)

	_, err = f.svc.SettleAuction(ctx, a.ID)
	assert.ErrorIs(t, err, ErrValidation, "second settlement")
}

func TestAuctionOrderMustMatchWinner(t *testing.T) {
	f := newFixture(t)
	a := f.auction(t, "40", time.Hour)
	_, err := f.svc.PlaceBid(ctx, a.ID, bidderA, money("45"))
	require.NoError(t, err)
	f.clock.Advance(time.Hour)

	_, err = f.svc.CreateOrder(ctx, CreateOrderInput{
		BuyerID: bidderB, FarmerID: farmerID, AuctionID: strPtr(a.ID),
		Quantity: 1, UnitPrice: money("45"), DeliveryMethod: models.Pickup,
	})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.CreateOrder(ctx, CreateOrderInput{
		BuyerID: bidderA, FarmerID: farmerID, AuctionID: strPtr(a.ID),
		Quantity: 1, UnitPrice: money("40"), DeliveryMethod: models.Pickup,
	})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestSettleAuctionWithoutBids(t *testing.T) {
	f := newFixture(t)
	a := f.auction(t, "40", time.Hour)
	f.clock.Advance(time.Hour)

	_, err := f.svc.SettleAuction(ctx, a.ID)
	assert.ErrorIs(t, err, ErrValidation)
}
