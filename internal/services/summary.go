package services

import (
	"discord-store-bot/internal/models"
	"discord-store-bot/internal/validation"
	"github.com/shopspring/decimal"
	"sort"
	"time"
)

const dateLayout = "2006-01-02"

// Summary агрегирует завершённые заказы за период
type Summary struct {
	From         time.Time
	To           time.Time
	Orders       int
	Revenue      decimal.Decimal
	TopSeller    string
	TopSellerQty int
}

// ParseRange разбирает даты YYYY-MM-DD; конец включает весь последний день
func ParseRange(from, to string, loc *time.Location) (time.Time, time.Time, error) {
	f, err := time.ParseInLocation(dateLayout, from, loc)
	if err != nil {
		return time.Time{}, time.Time{}, validation.Errorf("invalid date %q, use YYYY-MM-DD", from)
	}
	t, err := time.ParseInLocation(dateLayout, to, loc)
	if err != nil {
		return time.Time{}, time.Time{}, validation.Errorf("invalid date %q, use YYYY-MM-DD", to)
	}
	if t.Before(f) {
		return time.Time{}, time.Time{}, validation.Errorf("the end date is before the start date")
	}
	return f, t.AddDate(0, 0, 1).Add(-time.Nanosecond), nil
}

// Summarize считает только completed-заказы с closedAt в [from, to]
func Summarize(orders []models.Order, from, to time.Time) Summary {
	s := Summary{From: from, To: to, Revenue: decimal.Zero}
	qty := map[string]int{}
	for _, o := range orders {
		if o.Status != models.StatusCompleted || o.ClosedAt.Before(from) || o.ClosedAt.After(to) {
			continue
		}
		s.Orders++
		s.Revenue = s.Revenue.Add(o.FinalPrice)
		qty[o.ProductName] += o.Quantity
	}
	names := make([]string, 0, len(qty))
	for n := range qty {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		if qty[n] > s.TopSellerQty {
			s.TopSeller, s.TopSellerQty = n, qty[n]
		}
	}
	return s
}

// DailySummary итоги текущих суток в часовом поясе loc
func DailySummary(orders []models.Order, now time.Time, loc *time.Location) Summary {
	local := now.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return Summarize(orders, start, start.AddDate(0, 0, 1).Add(-time.Nanosecond))
}

type TicketStats struct {
	Completed int
	Open      int
	Total     int
}

// ComputeTicketStats: завершённые заказы за 30 дней плюс открытые тикеты.
// Отменённые тикеты заказов не создают и поэтому не учитываются.
func ComputeTicketStats(orders []models.Order, pending []models.PendingOrder, now time.Time) TicketStats {
	since := now.AddDate(0, 0, -30)
	var st TicketStats
	for _, o := range orders {
		if o.Status == models.StatusCompleted && o.CreatedAt.After(since) {
			st.Completed++
		}
	}
	st.Open = len(pending)
	st.Total = st.Completed + st.Open
	return st
}
