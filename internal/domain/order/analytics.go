package order

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"
)

// topProductLimit caps the top-sellers list in the analytics summary.
const topProductLimit = 10

// ProductCount is one entry of the top-sellers list.
type ProductCount struct {
	Name  string
	Count int
}

// Summary aggregates ledger-wide order statistics for the admin dashboard.
// It is a read model over the ledger, not a separate store.
type Summary struct {
	TotalOrders     int
	TotalSales      decimal.Decimal
	ActiveOrders    int
	CancelledOrders int
	CompletedOrders int
	MonthlySales    map[string]decimal.Decimal
	MonthlyOrders   map[string]int
	TopProducts     []ProductCount
}

// AnalyticsSummary computes order statistics across the whole ledger.
func (s *Service) AnalyticsSummary(ctx context.Context) (*Summary, error) {
	orders, err := s.orders.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	sum := &Summary{
		TotalOrders:   len(orders),
		TotalSales:    decimal.Zero,
		MonthlySales:  make(map[string]decimal.Decimal),
		MonthlyOrders: make(map[string]int),
	}

	quantities := make(map[string]int)
	for i := range orders {
		o := &orders[i]
		sum.TotalSales = sum.TotalSales.Add(o.Total)

		switch {
		case o.Cancelled:
			sum.CancelledOrders++
		case o.Status == StatusDelivered:
			sum.CompletedOrders++
		default:
			sum.ActiveOrders++
		}

		month := o.CreatedAt.UTC().Format("2006-01")
		sum.MonthlySales[month] = sum.MonthlySales[month].Add(o.Total)
		sum.MonthlyOrders[month]++

		for _, item := range o.Items {
			quantities[item.Name] += item.Quantity
		}
	}

	sum.TopProducts = topProducts(quantities, topProductLimit)
	return sum, nil
}

func topProducts(quantities map[string]int, limit int) []ProductCount {
	counts := make([]ProductCount, 0, len(quantities))
	for name, count := range quantities {
		counts = append(counts, ProductCount{Name: name, Count: count})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Name < counts[j].Name
	})
	if len(counts) > limit {
		counts = counts[:limit]
	}
	return counts
}
