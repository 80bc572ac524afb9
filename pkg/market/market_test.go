package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"idledata/pkg/models"
)

func TestMedian(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   float64
		ok     bool
	}{
		{"odd", []float64{30, 10, 20}, 20, true},
		{"even", []float64{10, 20, 30, 40}, 25, true},
		{"non-positive excluded", []float64{-5, 10}, 10, true},
		{"zero excluded", []float64{0, 0, 4}, 4, true},
		{"nothing positive", []float64{0, -1}, 0, false},
		{"empty", nil, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Median(tt.values)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPriceRange(t *testing.T) {
	lo, hi, ok := PriceRange([]float64{40, -3, 10, 25})
	require.True(t, ok)
	assert.Equal(t, 10.0, lo)
	assert.Equal(t, 40.0, hi)

	lo, hi, ok = PriceRange([]float64{7})
	require.True(t, ok)
	assert.Equal(t, lo, hi)

	_, _, ok = PriceRange(nil)
	assert.False(t, ok)
}

func TestFormatGold(t *testing.T) {
	assert.Equal(t, "1,234,567", FormatGold(1234567))
	assert.Equal(t, "1,180.5", FormatGold(1180.5))
	assert.Equal(t, "0.333", FormatGold(1.0/3))
	assert.Equal(t, "25", FormatGold(25))
}

func TestRows(t *testing.T) {
	h := &models.MarketHistory{
		LatestSold: []models.Sale{
			{PricePerItem: 1500}, {PricePerItem: 1000}, {PricePerItem: 0}, {PricePerItem: 1250},
		},
		HistoryData: []models.HistoryPoint{
			{Date: "2024-01-01", AveragePrice: 1100},
			{Date: "2024-01-02", AveragePrice: 1261},
		},
	}

	rows := Rows(h)
	require.Len(t, rows, 3)
	assert.Equal(t, Row{ID: RowLatestSoldMedian, Label: "Latest Sold Median", Value: "1,250"}, rows[0])
	assert.Equal(t, Row{ID: RowLatestSoldRange, Label: "Latest Sold Range", Value: "1,000 - 1,500"}, rows[1])
	assert.Equal(t, Row{ID: RowHistoryDataMedian, Label: "History Data Median", Value: "1,180.5"}, rows[2])
}

func TestRowsWithoutData(t *testing.T) {
	for _, h := range []*models.MarketHistory{nil, {}, {LatestSold: []models.Sale{{PricePerItem: 0}}}} {
		for _, row := range Rows(h) {
			assert.Equal(t, StateNoData, row.Value, row.ID)
		}
	}
}

func TestStateRows(t *testing.T) {
	rows := StateRows(StateNoAPIKey)
	require.Len(t, rows, 3)
	for _, row := range rows {
		assert.Equal(t, StateNoAPIKey, row.Value)
	}
	assert.Equal(t, RowHistoryDataMedian, rows[2].ID)
}

func TestScaleAxisIdenticalValues(t *testing.T) {
	tests := []struct {
		value    float64
		step     float64
		min, max float64
	}{
		{1500, 100, 1400, 1600},
		{120, 50, 50, 200},
		{40, 10, 30, 50},
		{3, 1, 2, 4},
		{1000, 100, 900, 1100},
	}

	for _, tt := range tests {
		axis, ok := ScaleAxis([]float64{tt.value, tt.value, 0})
		require.True(t, ok)
		assert.Equal(t, tt.step, axis.Step, "value %v", tt.value)
		assert.InDelta(t, tt.min, axis.Min, 1e-9, "value %v", tt.value)
		assert.InDelta(t, tt.max, axis.Max, 1e-9, "value %v", tt.value)
	}
}

func TestScaleAxisSmallBandFloorsAtZero(t *testing.T) {
	axis, ok := ScaleAxis([]float64{0.05})
	require.True(t, ok)
	assert.Equal(t, 0.1, axis.Step)
	assert.Equal(t, 0.0, axis.Min)
	assert.InDelta(t, 0.2, axis.Max, 1e-9)
}

func TestScaleAxisNiceStep(t *testing.T) {
	// span 900 -> rough 180 -> step 200
	axis, ok := ScaleAxis([]float64{1100, 2000, 1500})
	require.True(t, ok)
	assert.Equal(t, 200.0, axis.Step)
	assert.Equal(t, 800.0, axis.Min)
	assert.Equal(t, 2200.0, axis.Max)

	// span 40 -> rough 8 -> step 10, min floored at zero
	axis, ok = ScaleAxis([]float64{5, 45})
	require.True(t, ok)
	assert.Equal(t, 10.0, axis.Step)
	assert.Equal(t, 0.0, axis.Min)
	assert.Equal(t, 60.0, axis.Max)

	_, ok = ScaleAxis([]float64{0, -2})
	assert.False(t, ok)
}

func TestNiceStep(t *testing.T) {
	assert.Equal(t, 1.0, NiceStep(5))
	assert.Equal(t, 2.0, NiceStep(10))
	assert.Equal(t, 5.0, NiceStep(20))
	assert.Equal(t, 10.0, NiceStep(30))
}

func TestHistoryChart(t *testing.T) {
	h := &models.MarketHistory{HistoryData: []models.HistoryPoint{
		{Date: "2024-03-09", AveragePrice: 100},
		{Date: "2024-03-10", AveragePrice: 0},
	}}

	chart := HistoryChart(h, time.UTC)
	assert.Equal(t, "line", chart.Type)
	assert.Equal(t, "Historical Price Trends", chart.Title)
	assert.Equal(t, []string{"03/09", "03/10"}, chart.Labels)
	assert.Equal(t, 3, chart.MaxXTicks)
	require.Len(t, chart.Datasets, 1)
	assert.Equal(t, "Average Price", chart.Datasets[0].Label)
	assert.Equal(t, []float64{100, 0}, chart.Datasets[0].Data)
	require.NotNil(t, chart.YAxis)
	assert.Equal(t, 50.0, chart.YAxis.Step)
	assert.Empty(t, chart.Empty)
}

func TestLatestSoldChartIsChronological(t *testing.T) {
	h := &models.MarketHistory{LatestSold: []models.Sale{
		{PricePerItem: 30, SoldAt: "2024-03-10T12:00:05Z"},
		{PricePerItem: 20, SoldAt: "2024-03-10T11:30:00Z"},
		{PricePerItem: 10, SoldAt: "2024-03-10T09:15:42Z"},
	}}

	chart := LatestSoldChart(h, time.UTC)
	assert.Equal(t, "scatter", chart.Type)
	assert.Equal(t, []string{"09:15:42", "11:30:00", "12:00:05"}, chart.Labels)
	assert.Equal(t, []float64{10, 20, 30}, chart.Datasets[0].Data)
	assert.Equal(t, "Transaction Price", chart.Datasets[0].Label)
	assert.Equal(t, "rgb(255, 99, 132)", chart.Datasets[0].BorderColor)
}

func TestChartsWithoutData(t *testing.T) {
	s := Summarize(&models.MarketHistory{}, time.UTC)
	require.Len(t, s.Charts, 2)
	assert.Equal(t, "No historical data available", s.Charts[0].Empty)
	assert.Equal(t, "No recent transactions available", s.Charts[1].Empty)
	assert.Empty(t, s.Charts[0].Datasets)
	assert.Nil(t, s.Charts[1].YAxis)
}
