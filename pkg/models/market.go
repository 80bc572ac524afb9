package models

// Series names the two market history feeds of an item
type Series string

const (
	SeriesListings Series = "listings"
	SeriesOrders   Series = "orders"
)

// AllSeries lists the series fetched for every item and tier
var AllSeries = []Series{SeriesListings, SeriesOrders}

// Sale is one recent transaction
type Sale struct {
	PricePerItem float64 `json:"price_per_item" bson:"price_per_item"`
	Quantity     int     `json:"quantity" bson:"quantity"`
	TotalPrice   float64 `json:"total_price" bson:"total_price"`
	SoldAt       string  `json:"sold_at" bson:"sold_at"`
}

// HistoryPoint is one daily aggregate. Within a series it is identified by Date.
type HistoryPoint struct {
	Date         string  `json:"date" bson:"date"`
	AveragePrice float64 `json:"average_price" bson:"average_price"`
	TotalSold    int     `json:"total_sold" bson:"total_sold"`
}

// MarketHistory is the market-history response for one item, tier and series
type MarketHistory struct {
	LatestSold        []Sale         `json:"latest_sold"`
	HistoryData       []HistoryPoint `json:"history_data"`
	Type              string         `json:"type"`
	EndpointUpdatesAt string         `json:"endpoint_updates_at"`
}
