package market

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"farmdirect/models"
)

func (f *fixture) completedOrder(t *testing.T) *models.Order {
	t.Helper()
	o := f.order(t, buyerID, f.product(t, farmerID, 5, "3.00"), 1)
	f.advance(t, o, models.StatusCompleted)
	return o
}

func TestRatingScenario(t *testing.T) {
	f := newFixture(t)
	o := f.completedOrder(t)

	r, err := f.svc.SubmitRating(ctx, SubmitRatingInput{
		OrderID: o.ID, RaterID: buyerID, RatedUserID: farmerID, Score: 5, Review: strPtr(" Sweetest tomatoes "),
	})
	require.NoError(t, err)
	require.NotNil(t, r.Review)
	assert.Equal(t, "Sweetest tomatoes", *r.Review)

	_, err = f.svc.SubmitRating(ctx, SubmitRatingInput{
		OrderID: o.ID, RaterID: buyerID, RatedUserID: farmerID, Score: 4,
	})
	require.ErrorIs(t, err, ErrDuplicateRating)

	_, err = f.svc.SubmitRating(ctx, SubmitRatingInput{
		OrderID: o.ID, RaterID: farmerID, RatedUserID: farmerID, Score: 5,
	})
	require.ErrorIs(t, err, ErrRatingNotAllowed)

	// the farmer may still rate the buyer
	_, err = f.svc.SubmitRating(ctx, SubmitRatingInput{
		OrderID: o.ID, RaterID: farmerID, RatedUserID: buyerID, Score: 4,
	})
	require.NoError(t, err)

	var count int64
	require.NoError(t, f.db.Model(&models.Rating{}).Where("order_id = ?", o.ID).Count(&count).Error)
	assert.EqualValues(t, 2, count)
}

func TestRatingRequiresCompletedOrder(t *testing.T) {
	f := newFixture(t)
	o := f.order(t, buyerID, f.product(t, farmerID, 5, "3.00"), 1)

	for _, status := range []models.OrderStatus{models.StatusPending, models.StatusConfirmed, models.StatusPreparing, models.StatusReadyForPickup} {
		if status != models.StatusPending {
			require.NoError(t, f.svc.TransitionOrder(ctx, o.ID, farmerID, status, nil))
		}
		_, err := f.svc.SubmitRating(ctx, SubmitRatingInput{
			OrderID: o.ID, RaterID: buyerID, RatedUserID: farmerID, Score: 5,
		})
		assert.ErrorIs(t, err, ErrRatingNotAllowed, string(status))
	}

	cancelled := f.order(t, buyerID, f.product(t, farmerID, 5, "3.00"), 1)
	require.NoError(t, f.svc.TransitionOrder(ctx, cancelled.ID, buyerID, models.StatusCancelled, nil))
	_, err := f.svc.SubmitRating(ctx, SubmitRatingInput{
		OrderID: cancelled.ID, RaterID: buyerID, RatedUserID: farmerID, Score: 1,
	})
	assert.ErrorIs(t, err, ErrRatingNotAllowed)
}

func TestRatingInputErrors(t *testing.T) {
	f := newFixture(t)
	o := f.completedOrder(t)

	tests := []struct {
		name string
		in   SubmitRatingInput
		want error
	}{
		{"score too low", SubmitRatingInput{OrderID: o.ID, RaterID: buyerID, RatedUserID: farmerID, Score: 0}, ErrValidation},
		{"score too high", SubmitRatingInput{OrderID: o.ID, RaterID: buyerID, RatedUserID: farmerID, Score: 6}, ErrValidation},
		{"unknown order", SubmitRatingInput{OrderID: "missing", RaterID: buyerID, RatedUserID: farmerID, Score: 3}, ErrNotFound},
		{"stranger rates", SubmitRatingInput{OrderID: o.ID, RaterID: otherID, RatedUserID: farmerID, Score: 3}, ErrRatingNotAllowed},
		{"rates a stranger", SubmitRatingInput{OrderID: o.ID, RaterID: buyerID, RatedUserID: otherID, Score: 3}, ErrRatingNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.SubmitRating(ctx, tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	var count int64
	require.NoError(t, f.db.Model(&models.Rating{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestConcurrentDuplicateRatings(t *testing.T) {
	f := newFixture(t)
	o := f.completedOrder(t)

	const attempts = 8
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.SubmitRating(ctx, SubmitRatingInput{
				OrderID: o.ID, RaterID: buyerID, RatedUserID: farmerID, Score: 1 + i%5,
			})
		}(i)
	}
	wg.Wait()

	accepted := 0
	for _, err := range errs {
		if err == nil {
			accepted++
			continue
		}
		assert.ErrorIs(t, err, ErrDuplicateRating)
	}
	assert.Equal(t, 1, accepted)
}

func TestAverageRating(t *testing.T) {
	f := newFixture(t)

	summary, err := f.svc.GetAverageRating(ctx, farmerID)
	require.NoError(t, err)
	assert.Equal(t, RatingSummary{}, summary)

	for _, score := range []int{5, 4, 4} {
		o := f.completedOrder(t)
		_, err := f.svc.SubmitRating(ctx, SubmitRatingInput{
			OrderID: o.ID, RaterID: buyerID, RatedUserID: farmerID, Score: score,
		})
		require.NoError(t, err)
	}

	summary, err = f.svc.GetAverageRating(ctx, farmerID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, summary.Count)
	assert.Equal(t, 4.3, summary.Mean)

	ratings, err := f.svc.ListRatings(ctx, farmerID)
	require.NoError(t, err)
	assert.Len(t, ratings, 3)

	rated, err := f.svc.RatedOrderIDs(ctx, buyerID)
	require.NoError(t, err)
	assert.Len(t, rated, 3)

	none, err := f.svc.RatedOrderIDs(ctx, farmerID)
	require.NoError(t, err)
	assert.Empty(t, none)
}
