package services

import (
	"context"
	"fmt"

	"github.com/example/ecomserver/internal/models"
	"github.com/example/ecomserver/internal/repository"
)

// MonthLabels are the bucket labels of a sales report, January first.
var MonthLabels = [12]string{"JAN", "FEB", "MAR", "APRIL", "MAY", "JUNE", "JULY", "AUG", "SEP", "OCT", "NOV", "DEC"}

// MonthlySale is one calendar month of revenue.
type MonthlySale struct {
	Month string `json:"month"`
	Sale  int64  `json:"sale"`
}

// SalesReport is the revenue total plus its per-month breakdown.
type SalesReport struct {
	TotalSales   int64         `json:"totalSales"`
	MonthlySales []MonthlySale `json:"monthlySales"`
}

// AggregateSales totals order amounts and buckets them by calendar month (UTC).
//
// Amounts that do not start with an integer count as zero. Orders without a
// date still count towards the total but land in no bucket.
func AggregateSales(orders []models.Order) SalesReport {
	buckets := make([]MonthlySale, len(MonthLabels))
	for i, label := range MonthLabels {
		buckets[i] = MonthlySale{Month: label}
	}

	var total int64
	for _, order := range orders {
		amount, ok := order.Amount.Int()
		if !ok {
			continue
		}
		total += amount

		if month, ok := orderMonth(order); ok {
			buckets[month-1].Sale += amount
		}
	}

	return SalesReport{TotalSales: total, MonthlySales: buckets}
}

// orderMonth returns the 1-based month of the order date.
func orderMonth(order models.Order) (int, bool) {
	if order.Date == nil || order.Date.IsZero() {
		return 0, false
	}
	month := int(order.Date.UTC().Month())
	if month < 1 || month > len(MonthLabels) {
		return 0, false
	}
	return month, true
}

// SalesService builds sales reports from the order store.
type SalesService struct {
	orders repository.OrderRepository
}

// NewSalesService constructs a SalesService.
func NewSalesService(orders repository.OrderRepository) *SalesService {
	return &SalesService{orders: orders}
}

// Report aggregates every order, or only those dated in year when year > 0.
func (s *SalesService) Report(ctx context.Context, year int) (SalesReport, error) {
	orders, err := s.orders.Find(ctx, repository.OrderFilter{Year: year})
	if err != nil {
		return SalesReport{}, fmt.Errorf("load orders: %w", err)
	}
	return AggregateSales(orders), nil
}
