package market

import (
	"context"
	"math"

	"farmdirect/models"
	"farmdirect/realtime"
)

type SubmitRatingInput struct {
	OrderID     string  `json:"order_id" validate:"required"`
	RaterID     string  `json:"-" validate:"required"`
	RatedUserID string  `json:"rated_user_id" validate:"required"`
	Score       int     `json:"rating" validate:"min=1,max=5"`
	Review      *string `json:"review"`
}

// SubmitRating records one rating per (order, rater) on a completed order,
// from one party about the other.
func (s *Service) SubmitRating(ctx context.Context, in SubmitRatingInput) (*models.Rating, error) {
	if err := validateInput(&in); err != nil {
		return nil, err
	}

	tx := s.store(ctx).Begin()
	if tx.Error != nil {
		return nil, storeErr("begin submit rating", tx.Error)
	}

	var order models.Order
	if err := tx.First(&order, "id = ?", in.OrderID).Error; err != nil {
		tx.Rollback()
		return nil, lookupErr("order", err)
	}
	if err := checkRating(&order, in.RaterID, in.RatedUserID); err != nil {
		tx.Rollback()
		return nil, err
	}

	var prior int64
	if err := tx.Model(&models.Rating{}).
		Where("order_id = ? AND rating_user_id = ?", in.OrderID, in.RaterID).
		Count(&prior).Error; err != nil {
		tx.Rollback()
		return nil, storeErr("count ratings", err)
	}
	if prior > 0 {
		tx.Rollback()
		return nil, &ratingError{kind: ErrDuplicateRating, msg: "order already rated by this user"}
	}

	now := s.now()
	rating := models.Rating{
		OrderID:      in.OrderID,
		RatedUserID:  in.RatedUserID,
		RatingUserID: in.RaterID,
		Score:        in.Score,
		Review:       trimmed(in.Review),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := tx.Create(&rating).Error; err != nil {
		tx.Rollback()
		if isDuplicateKey(err) {
			return nil, &ratingError{kind: ErrDuplicateRating, msg: "order already rated by this user"}
		}
		return nil, storeErr("create rating", err)
	}

	if err := tx.Commit().Error; err != nil {
		return nil, storeErr("commit submit rating", err)
	}

	s.publish("ratings", realtime.Insert, rating, nil)
	return &rating, nil
}

func checkRating(order *models.Order, raterID, ratedUserID string) error {
	if order.Status != models.StatusCompleted {
		return ratingNotAllowed("order is " + string(order.Status))
	}
	var other string
	switch raterID {
	case order.BuyerID:
		other = order.FarmerID
	case order.FarmerID:
		other = order.BuyerID
	default:
		return ratingNotAllowed("rater is not a party to the order")
	}
	if ratedUserID != other {
		return ratingNotAllowed("rated user is not the other party")
	}
	return nil
}

// RatingSummary is a user's received ratings, Mean rounded to one decimal.
type RatingSummary struct {
	Mean  float64 `json:"mean"`
	Count int64   `json:"count"`
}

func (s *Service) GetAverageRating(ctx context.Context, userID string) (RatingSummary, error) {
	var row struct {
		Mean  *float64
		Count int64
	}
	if err := s.store(ctx).Model(&models.Rating{}).
		Select("AVG(score) AS mean, COUNT(*) AS count").
		Where("rated_user_id = ?", userID).
		Scan(&row).Error; err != nil {
		return RatingSummary{}, storeErr("average rating", err)
	}
	if row.Count == 0 || row.Mean == nil {
		return RatingSummary{}, nil
	}
	return RatingSummary{Mean: math.Round(*row.Mean*10) / 10, Count: row.Count}, nil
}

// ListRatings returns the ratings userID received, newest first.
func (s *Service) ListRatings(ctx context.Context, userID string) ([]models.Rating, error) {
	var ratings []models.Rating
	if err := s.store(ctx).Where("rated_user_id = ?", userID).Order("created_at desc").Find(&ratings).Error; err != nil {
		return nil, storeErr("list ratings", err)
	}
	return ratings, nil
}

// RatedOrderIDs lists the orders raterID has already rated.
func (s *Service) RatedOrderIDs(ctx context.Context, raterID string) ([]string, error) {
	var ids []string
	if err := s.store(ctx).Model(&models.Rating{}).Where("rating_user_id = ?", raterID).Pluck("order_id", &ids).Error; err != nil {
		return nil, storeErr("list rated orders", err)
	}
	return ids, nil
}
