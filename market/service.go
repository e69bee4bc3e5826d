// Package market implements the order lifecycle, the auction engine and the
// rating gate on top of a GORM store.
package market

import (
	"context"
	"log"
	"time"

	"gorm.io/gorm"

	"farmdirect/realtime"
)

// Publisher receives change hints after successful commits.
type Publisher interface {
	Publish(change realtime.Change)
}

type nopPublisher struct{}

func (nopPublisher) Publish(realtime.Change) {}

// Service runs every core command against the store. All writes of one
// command happen in one transaction.
type Service struct {
	db   *gorm.DB
	now  func() time.Time
	feed Publisher
}

type Option func(*Service)

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithPublisher sets where change hints go.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.feed = p }
}

func NewService(db *gorm.DB, opts ...Option) *Service {
	s := &Service{
		db:   db,
		now:  func() time.Time { return time.Now().UTC() },
		feed: nopPublisher{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now is the service clock.
func (s *Service) Now() time.Time {
	return s.now()
}

func (s *Service) store(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

func (s *Service) publish(table string, event realtime.Event, v interface{}, extra realtime.Row) {
	row, err := realtime.RowOf(v)
	if err != nil {
		log.Printf("realtime: encode %s row: %v", table, err)
		return
	}
	for k, val := range extra {
		row[k] = val
	}
	s.feed.Publish(realtime.Change{Table: table, Event: event, Row: row})
}
