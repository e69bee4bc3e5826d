package market

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"farmdirect/models"
)

var (
	// ErrValidation is returned for malformed or out-of-range input.
	ErrValidation = errors.New("validation error")

	// ErrNotFound is returned when a referenced record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrForbidden is returned when the actor may not touch the record.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidTransition is returned when an order status change breaks the state machine.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrBidRejected is returned when a bid is not accepted.
	ErrBidRejected = errors.New("bid rejected")

	// ErrRatingNotAllowed is returned when rating preconditions are unmet.
	ErrRatingNotAllowed = errors.New("rating not allowed")

	// ErrDuplicateRating is returned when the rater already rated the order.
	ErrDuplicateRating = errors.New("duplicate rating")

	// ErrStoreUnavailable is returned when the store or network failed.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// ValidationError represents a validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// TransitionError is a rejected order status change.
type TransitionError struct {
	From   models.OrderStatus
	To     models.OrderStatus
	Reason string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid transition %s -> %s: %s", e.From, e.To, e.Reason)
}

func (e *TransitionError) Is(target error) bool { return target == ErrInvalidTransition }

// BidRejectReason names why a bid was refused.
type BidRejectReason string

const (
	BidTooLow       BidRejectReason = "amount_too_low"
	BidNotActive    BidRejectReason = "auction_not_active"
	BidAuctionEnded BidRejectReason = "auction_ended"
	BidSelfBid      BidRejectReason = "self_bid"
)

// BidRejectedError carries the reason a bid was refused. Minimum is set
// for BidTooLow.
type BidRejectedError struct {
	Reason  BidRejectReason
	Minimum decimal.Decimal
}

func (e *BidRejectedError) Error() string {
	if e.Reason == BidTooLow {
		return fmt.Sprintf("bid rejected: %s (must exceed %s)", e.Reason, e.Minimum.StringFixed(2))
	}
	return fmt.Sprintf("bid rejected: %s", e.Reason)
}

func (e *BidRejectedError) Is(target error) bool { return target == ErrBidRejected }

type ratingError struct {
	kind error
	msg  string
}

func (e *ratingError) Error() string        { return e.kind.Error() + ": " + e.msg }
func (e *ratingError) Is(target error) bool { return target == e.kind }

func ratingNotAllowed(msg string) error {
	return &ratingError{kind: ErrRatingNotAllowed, msg: msg}
}

func forbidden(msg string) error {
	return fmt.Errorf("%w: %s", ErrForbidden, msg)
}

func notFound(what string) error {
	return fmt.Errorf("%s: %w", what, ErrNotFound)
}

// StoreError wraps a failed store operation. Nothing was committed.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store error during %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) Is(target error) bool { return target == ErrStoreUnavailable }

func storeErr(op string, err error) error {
	log.Printf("store: %s failed: %v", op, err)
	return &StoreError{Op: op, Err: err}
}

// lookupErr turns a failed single-row read into NotFound or StoreError.
func lookupErr(what string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound(what)
	}
	return storeErr("load "+what, err)
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate")
}

// Kind names the error category for transport layers.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrBidRejected):
		return "bid_rejected"
	case errors.Is(err, ErrRatingNotAllowed):
		return "rating_not_allowed"
	case errors.Is(err, ErrDuplicateRating):
		return "duplicate_rating"
	case errors.Is(err, ErrStoreUnavailable):
		return "store_unavailable"
	default:
		return "internal"
	}
}
