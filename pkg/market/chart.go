package market

import (
	"time"

	"idledata/pkg/models"
)

// Chart ids
const (
	ChartHistory    = "history-price-chart"
	ChartLatestSold = "latest-sold-chart"
)

// Dataset is one plotted series
type Dataset struct {
	Label           string    `json:"label"`
	Data            []float64 `json:"data"`
	BorderColor     string    `json:"borderColor"`
	BackgroundColor string    `json:"backgroundColor"`
	Tension         float64   `json:"tension"`
	Fill            bool      `json:"fill"`
}

// Chart is a chart configuration ready for the overlay's charting library.
// When there is nothing to plot, Datasets is empty and Empty holds the
// message to draw instead.
type Chart struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Title      string    `json:"title"`
	XAxisTitle string    `json:"xAxisTitle"`
	YAxisTitle string    `json:"yAxisTitle"`
	MaxXTicks  int       `json:"maxXTicks,omitempty"`
	Labels     []string  `json:"labels"`
	Datasets   []Dataset `json:"datasets"`
	YAxis      *Axis     `json:"yAxis,omitempty"`
	Empty      string    `json:"empty,omitempty"`
}

// HistoryChart plots average_price per day as a line chart labelled MM/DD
func HistoryChart(h *models.MarketHistory, loc *time.Location) Chart {
	chart := Chart{
		ID:         ChartHistory,
		Type:       "line",
		Title:      "Historical Price Trends",
		XAxisTitle: "Date",
		YAxisTitle: "Gold",
		Labels:     []string{},
		Datasets:   []Dataset{},
	}
	if h == nil || len(h.HistoryData) == 0 {
		chart.Empty = "No historical data available"
		return chart
	}

	prices := AveragePrices(h.HistoryData)
	for _, p := range h.HistoryData {
		chart.Labels = append(chart.Labels, formatTime(p.Date, "01/02", loc))
	}
	chart.MaxXTicks = len(prices) + 1
	chart.Datasets = append(chart.Datasets, Dataset{
		Label:           "Average Price",
		Data:            prices,
		BorderColor:     "rgb(75, 192, 192)",
		BackgroundColor: "rgba(75, 192, 192, 0.2)",
		Tension:         0.1,
		Fill:            true,
	})
	if axis, ok := ScaleAxis(prices); ok {
		chart.YAxis = &axis
	}
	return chart
}

// LatestSoldChart plots recent sales oldest first as a scatter chart
// labelled HH:MM:SS
func LatestSoldChart(h *models.MarketHistory, loc *time.Location) Chart {
	chart := Chart{
		ID:         ChartLatestSold,
		Type:       "scatter",
		Title:      "Recent Transaction Prices",
		XAxisTitle: "Time",
		YAxisTitle: "Gold",
		Labels:     []string{},
		Datasets:   []Dataset{},
	}
	if h == nil || len(h.LatestSold) == 0 {
		chart.Empty = "No recent transactions available"
		return chart
	}

	// The API lists the newest sale first.
	n := len(h.LatestSold)
	prices := make([]float64, 0, n)
	for i := n - 1; i >= 0; i-- {
		sale := h.LatestSold[i]
		chart.Labels = append(chart.Labels, formatTime(sale.SoldAt, "15:04:05", loc))
		prices = append(prices, sale.PricePerItem)
	}
	chart.MaxXTicks = n + 1
	chart.Datasets = append(chart.Datasets, Dataset{
		Label:           "Transaction Price",
		Data:            prices,
		BorderColor:     "rgb(255, 99, 132)",
		BackgroundColor: "rgba(255, 99, 132, 0.6)",
		Tension:         0.1,
		Fill:            true,
	})
	if axis, ok := ScaleAxis(prices); ok {
		chart.YAxis = &axis
	}
	return chart
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// formatTime renders a timestamp in loc. Plain dates are calendar days and
// are not shifted. Unparseable values are returned unchanged.
func formatTime(value, layout string, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return t.Format(layout)
	}
	for _, l := range timeLayouts {
		if t, err := time.Parse(l, value); err == nil {
			return t.In(loc).Format(layout)
		}
	}
	return value
}

// Summary is everything the overlay shows for one item and tier
type Summary struct {
	Rows   []Row   `json:"rows"`
	Charts []Chart `json:"charts"`
}

// Summarize builds the rows and both charts of a market history
func Summarize(h *models.MarketHistory, loc *time.Location) Summary {
	return Summary{
		Rows:   Rows(h),
		Charts: []Chart{HistoryChart(h, loc), LatestSoldChart(h, loc)},
	}
}

// StateSummary is the summary shown when there is no history to summarise
func StateSummary(state string) Summary {
	return Summary{Rows: StateRows(state), Charts: []Chart{}}
}
