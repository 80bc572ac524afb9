package market

import (
	"fmt"
	"math"
	"sort"

	"github.com/dustin/go-humanize"
	"idledata/pkg/models"
)

// Row ids, in display order
const (
	RowLatestSoldMedian  = "latest-sold-median"
	RowLatestSoldRange   = "latest-sold-range"
	RowHistoryDataMedian = "history-data-median"
)

// Placeholder values shown instead of a price
const (
	StateLoading  = "Loading..."
	StateNoData   = "No data"
	StateError    = "Error"
	StateNoAPIKey = "No API Key"
)

// Row is one labelled value of the price summary
type Row struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Value string `json:"value"`
}

var rowLabels = []struct{ id, label string }{
	{RowLatestSoldMedian, "Latest Sold Median"},
	{RowLatestSoldRange, "Latest Sold Range"},
	{RowHistoryDataMedian, "History Data Median"},
}

// Positive returns the values above zero sorted ascending
func Positive(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if v > 0 {
			out = append(out, v)
		}
	}
	sort.Float64s(out)
	return out
}

// Median of the positive values. ok is false when there are none.
func Median(values []float64) (median float64, ok bool) {
	prices := Positive(values)
	n := len(prices)
	if n == 0 {
		return 0, false
	}
	middle := n / 2
	if n%2 == 0 {
		return (prices[middle-1] + prices[middle]) / 2, true
	}
	return prices[middle], true
}

// PriceRange returns the smallest and largest positive value
func PriceRange(values []float64) (min, max float64, ok bool) {
	prices := Positive(values)
	if len(prices) == 0 {
		return 0, 0, false
	}
	return prices[0], prices[len(prices)-1], true
}

// FormatGold renders a price with thousands separators and at most three decimals
func FormatGold(v float64) string {
	return humanize.Commaf(math.Round(v*1000) / 1000)
}

// SalePrices returns price_per_item of every sale
func SalePrices(sales []models.Sale) []float64 {
	prices := make([]float64, len(sales))
	for i, s := range sales {
		prices[i] = s.PricePerItem
	}
	return prices
}

// AveragePrices returns average_price of every history point
func AveragePrices(points []models.HistoryPoint) []float64 {
	prices := make([]float64, len(points))
	for i, p := range points {
		prices[i] = p.AveragePrice
	}
	return prices
}

// Rows computes the price summary of a market history
func Rows(h *models.MarketHistory) []Row {
	if h == nil {
		h = &models.MarketHistory{}
	}
	values := map[string]string{
		RowLatestSoldMedian:  StateNoData,
		RowLatestSoldRange:   StateNoData,
		RowHistoryDataMedian: StateNoData,
	}

	sold := SalePrices(h.LatestSold)
	if median, ok := Median(sold); ok {
		values[RowLatestSoldMedian] = FormatGold(median)
	}
	if lo, hi, ok := PriceRange(sold); ok {
		values[RowLatestSoldRange] = fmt.Sprintf("%s - %s", FormatGold(lo), FormatGold(hi))
	}
	if median, ok := Median(AveragePrices(h.HistoryData)); ok {
		values[RowHistoryDataMedian] = FormatGold(median)
	}

	rows := make([]Row, len(rowLabels))
	for i, rl := range rowLabels {
		rows[i] = Row{ID: rl.id, Label: rl.label, Value: values[rl.id]}
	}
	return rows
}

// StateRows returns the three rows all showing state
func StateRows(state string) []Row {
	rows := make([]Row, len(rowLabels))
	for i, rl := range rowLabels {
		rows[i] = Row{ID: rl.id, Label: rl.label, Value: state}
	}
	return rows
}
