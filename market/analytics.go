package market

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"farmdirect/models"
)

const (
	analyticsMonths = 6
	topProducts     = 5
	recentOrders    = 5
	otherCategory   = "Other"
)

type StatusCount struct {
	Status models.OrderStatus `json:"name"`
	Count  int                `json:"value"`
}

type CategoryStat struct {
	Category string          `json:"category"`
	Count    int             `json:"count"`
	Revenue  decimal.Decimal `json:"revenue"`
}

type MonthlyStat struct {
	Month   string          `json:"month"`
	Orders  int             `json:"orders"`
	Revenue decimal.Decimal `json:"revenue"`
}

type ProductStat struct {
	models.Product
	OrderCount int `json:"order_count"`
}

// Analytics is a dashboard summary of one user's orders. Revenue is money
// earned for a farmer and money spent for a consumer; TotalRevenue counts
// every order, CompletedRevenue only completed ones.
type Analytics struct {
	TotalOrders       int             `json:"total_orders"`
	TotalRevenue      decimal.Decimal `json:"total_revenue"`
	CompletedRevenue  decimal.Decimal `json:"completed_revenue"`
	TotalProducts     int             `json:"total_products,omitempty"`
	AvailableProducts int             `json:"available_products,omitempty"`
	OrdersByStatus    []StatusCount   `json:"orders_by_status"`
	TopProducts       []ProductStat   `json:"top_products,omitempty"`
	CategoryStats     []CategoryStat  `json:"category_stats"`
	MonthlyStats      []MonthlyStat   `json:"monthly_stats"`
	RecentOrders      []models.Order  `json:"recent_orders"`
}

func (s *Service) FarmerAnalytics(ctx context.Context, farmerID string, now time.Time) (*Analytics, error) {
	orders, err := s.ListOrders(ctx, OrderFilter{UserID: farmerID, AsFarmer: true})
	if err != nil {
		return nil, err
	}
	products, err := s.ListFarmerProducts(ctx, farmerID)
	if err != nil {
		return nil, err
	}

	a := summarize(orders, now)
	a.TotalProducts = len(products)
	for _, p := range products {
		if p.Status == models.ProductAvailable {
			a.AvailableProducts++
		}
	}
	a.TopProducts = rankProducts(products, orders)
	return a, nil
}

func (s *Service) ConsumerAnalytics(ctx context.Context, buyerID string, now time.Time) (*Analytics, error) {
	orders, err := s.ListOrders(ctx, OrderFilter{UserID: buyerID})
	if err != nil {
		return nil, err
	}
	return summarize(orders, now), nil
}

// summarize expects orders newest first, as ListOrders returns them.
func summarize(orders []models.Order, now time.Time) *Analytics {
	a := &Analytics{
		TotalOrders:      len(orders),
		TotalRevenue:     decimal.Zero,
		CompletedRevenue: decimal.Zero,
	}

	byStatus := map[models.OrderStatus]int{}
	byCategory := map[string]*CategoryStat{}
	months := lastMonths(now.UTC(), analyticsMonths)
	byMonth := make(map[string]*MonthlyStat, len(months))
	for i := range months {
		byMonth[months[i].key] = &months[i].stat
	}

	for _, o := range orders {
		a.TotalRevenue = a.TotalRevenue.Add(o.TotalAmount)
		if o.Status == models.StatusCompleted {
			a.CompletedRevenue = a.CompletedRevenue.Add(o.TotalAmount)
		}
		byStatus[o.Status]++

		category := otherCategory
		if o.Product != nil && o.Product.Category != "" {
			category = o.Product.Category
		}
		cs, ok := byCategory[category]
		if !ok {
			cs = &CategoryStat{Category: category, Revenue: decimal.Zero}
			byCategory[category] = cs
		}
		cs.Count++
		cs.Revenue = cs.Revenue.Add(o.TotalAmount)

		if ms, ok := byMonth[o.CreatedAt.UTC().Format("2006-01")]; ok {
			ms.Orders++
			ms.Revenue = ms.Revenue.Add(o.TotalAmount)
		}
	}

	a.OrdersByStatus = make([]StatusCount, 0, len(byStatus))
	for status, n := range byStatus {
		a.OrdersByStatus = append(a.OrdersByStatus, StatusCount{Status: status, Count: n})
	}
	sort.Slice(a.OrdersByStatus, func(i, j int) bool {
		return a.OrdersByStatus[i].Status < a.OrdersByStatus[j].Status
	})

	a.CategoryStats = make([]CategoryStat, 0, len(byCategory))
	for _, cs := range byCategory {
		a.CategoryStats = append(a.CategoryStats, *cs)
	}
	sort.Slice(a.CategoryStats, func(i, j int) bool {
		if a.CategoryStats[i].Count != a.CategoryStats[j].Count {
			return a.CategoryStats[i].Count > a.CategoryStats[j].Count
		}
		return a.CategoryStats[i].Category < a.CategoryStats[j].Category
	})

	a.MonthlyStats = make([]MonthlyStat, len(months))
	for i, m := range months {
		a.MonthlyStats[i] = m.stat
	}

	n := recentOrders
	if len(orders) < n {
		n = len(orders)
	}
	a.RecentOrders = orders[:n]
	return a
}

type monthBucket struct {
	key  string
	stat MonthlyStat
}

// lastMonths returns n calendar months ending with now's, oldest first.
func lastMonths(now time.Time, n int) []monthBucket {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	buckets := make([]monthBucket, n)
	for i := 0; i < n; i++ {
		m := first.AddDate(0, i-(n-1), 0)
		buckets[i] = monthBucket{
			key:  m.Format("2006-01"),
			stat: MonthlyStat{Month: m.Format("Jan"), Revenue: decimal.Zero},
		}
	}
	return buckets
}

func rankProducts(products []models.Product, orders []models.Order) []ProductStat {
	counts := map[string]int{}
	for _, o := range orders {
		if o.ProductID != nil {
			counts[*o.ProductID]++
		}
	}

	ranked := make([]ProductStat, 0, len(products))
	for _, p := range products {
		ranked = append(ranked, ProductStat{Product: p, OrderCount: counts[p.ID]})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].OrderCount > ranked[j].OrderCount
	})
	if len(ranked) > topProducts {
		ranked = ranked[:topProducts]
	}
	return ranked
}
