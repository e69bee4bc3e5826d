package market

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"farmdirect/db"
	"farmdirect/models"
	"farmdirect/realtime"
)

var ctx = context.Background()

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recorder struct {
	mu      sync.Mutex
	changes []realtime.Change
}

func (r *recorder) Publish(change realtime.Change) {
	r.mu.Lock()
	r.changes = append(r.changes, change)
	r.mu.Unlock()
}

func (r *recorder) tables() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.changes))
	for _, c := range r.changes {
		out = append(out, c.Table+" "+string(c.Event))
	}
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	r.changes = nil
	r.mu.Unlock()
}

type fixture struct {
	db    *gorm.DB
	svc   *Service
	clock *fakeClock
	feed  *recorder
}

// newFixture opens a private in-memory sqlite database. One open
// connection makes concurrent transactions queue instead of failing with
// SQLITE_BUSY.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn, err := db.Open(db.DriverSQLite, "file:"+uuid.NewString()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	conn = conn.Session(&gorm.Session{Logger: logger.Default.LogMode(logger.Silent)})

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.Migrate(conn))

	clock := &fakeClock{now: time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)}
	feed := &recorder{}
	return &fixture{
		db:    conn,
		svc:   NewService(conn, WithClock(clock.Now), WithPublisher(feed)),
		clock: clock,
		feed:  feed,
	}
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func strPtr(s string) *string { return &s }

func (f *fixture) product(t *testing.T, farmerID string, qty int, price string) *models.Product {
	t.Helper()
	p, err := f.svc.CreateProduct(ctx, CreateProductInput{
		FarmerID:          farmerID,
		Name:              "Heirloom tomatoes",
		Category:          "vegetables",
		PricePerUnit:      money(price),
		QuantityAvailable: qty,
		Unit:              "kg",
	})
	require.NoError(t, err)
	return p
}

func (f *fixture) order(t *testing.T, buyerID string, p *models.Product, qty int) *models.Order {
	t.Helper()
	o, err := f.svc.CreateOrder(ctx, CreateOrderInput{
		BuyerID:        buyerID,
		FarmerID:       p.FarmerID,
		ProductID:      strPtr(p.ID),
		Quantity:       qty,
		UnitPrice:      p.PricePerUnit,
		DeliveryMethod: models.Pickup,
	})
	require.NoError(t, err)
	return o
}

// advance walks an order along the farmer's path up to target.
func (f *fixture) advance(t *testing.T, o *models.Order, target models.OrderStatus) {
	t.Helper()
	path := []models.OrderStatus{
		models.StatusConfirmed,
		models.StatusPreparing,
		models.StatusReadyForPickup,
		models.StatusCompleted,
	}
	for _, status := range path {
		require.NoError(t, f.svc.TransitionOrder(ctx, o.ID, o.FarmerID, status, nil))
		if status == target {
			return
		}
	}
}

func (f *fixture) reload(t *testing.T, out interface{}, id string) {
	t.Helper()
	require.NoError(t, f.db.First(out, "id = ?", id).Error)
}
