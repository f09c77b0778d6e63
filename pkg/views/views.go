// Package views holds pure projections over the mirrored collections. Nothing
// here caches: callers recompute on demand, so "today" is always read fresh.
package views

import (
	"sort"
	"strings"
	"time"

	"github.com/example/monarch/pkg/models"
	"github.com/shopspring/decimal"
)

// FilterShops keeps shops on routeID (any route when empty) whose name contains
// query, ignoring case. An empty query matches every shop.
func FilterShops(shops []models.Shop, routeID, query string) []models.Shop {
	needle := strings.ToLower(query)
	out := make([]models.Shop, 0, len(shops))
	for _, s := range shops {
		if routeID != "" && s.RouteID != routeID {
			continue
		}
		if !strings.Contains(strings.ToLower(s.Name), needle) {
			continue
		}
		out = append(out, s)
	}
	return out
}

type DailyStats struct {
	Date          string  `json:"date"`
	DailySales    float64 `json:"dailySales"`
	DailyExpenses float64 `json:"dailyExpenses"`
	TotalOrders   int     `json:"totalOrders"`
}

// Day formats t as the calendar-date string stamped on documents.
func Day(t time.Time, layout string) string {
	return t.Format(layout)
}

// Daily sums today's sales and expenses, where today is now in layout.
func Daily(orders []models.Order, expenses []models.Expense, now time.Time, layout string) DailyStats {
	today := Day(now, layout)

	sales := decimal.Zero
	for _, o := range orders {
		if o.Date == today {
			sales = sales.Add(decimal.NewFromFloat(o.Total))
		}
	}

	spent := decimal.Zero
	for _, e := range ExpensesOn(expenses, today) {
		spent = spent.Add(decimal.NewFromFloat(e.AmountValue()))
	}

	return DailyStats{
		Date:          today,
		DailySales:    sales.InexactFloat64(),
		DailyExpenses: spent.InexactFloat64(),
		TotalOrders:   len(orders),
	}
}

func ExpensesOn(expenses []models.Expense, day string) []models.Expense {
	out := make([]models.Expense, 0)
	for _, e := range expenses {
		if e.Date == day {
			out = append(out, e)
		}
	}
	return out
}

// OrderHistory returns a copy of orders, newest first.
func OrderHistory(orders []models.Order) []models.Order {
	out := append([]models.Order{}, orders...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp > out[j].Timestamp
	})
	return out
}
