package catalog

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

type PriceReader interface {
	ListPricesByCategory(ctx context.Context, categoryID int64) ([]decimal.Decimal, error)
}

// AveragePrice is the mean price of the products linked directly to
// categoryID, rounded to cents. It is zero when no product matches.
func AveragePrice(ctx context.Context, r PriceReader, categoryID int64) (decimal.Decimal, error) {
	prices, err := r.ListPricesByCategory(ctx, categoryID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("list prices for category %d: %w", categoryID, err)
	}
	if len(prices) == 0 {
		return decimal.Zero, nil
	}

	sum := decimal.Zero
	for _, p := range prices {
		sum = sum.Add(p)
	}
	return sum.Div(decimal.NewFromInt(int64(len(prices)))).Round(2), nil
}
