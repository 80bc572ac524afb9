// Package market turns a market history response into what the overlay
// displays: three price rows and two chart configurations.
//
// Prices that are zero or negative are ignored by every statistic. Numbers
// are formatted with thousands separators:
//
//	rows := market.Rows(history)
//	// Latest Sold Median   1,250
//	// Latest Sold Range    1,000 - 1,500
//	// History Data Median  1,180.5
package market
