package idlemmo

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"idledata/pkg/models"
)

const (
	// BaseURL is the versioned root of the public API
	BaseURL = "https://api.idle-mmo.com/v1"

	// SearchEndpoint is the paginated item search
	SearchEndpoint = "/item/search"

	// DefaultUserAgent identifies this tool to the API operators
	DefaultUserAgent = "IdleData/0.0.1"
)

// SearchURL builds the URL of one item search page
func SearchURL(base, query string, page int) string {
	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	params.Set("query", query)

	return fmt.Sprintf("%s%s?%s", strings.TrimRight(base, "/"), SearchEndpoint, params.Encode())
}

// MarketHistoryURL builds the URL of one item's market history for a tier and series
func MarketHistoryURL(base, hashedID string, tier int, series models.Series) string {
	params := url.Values{}
	params.Set("tier", strconv.Itoa(tier))
	params.Set("type", string(series))

	return fmt.Sprintf("%s/item/%s/market-history?%s",
		strings.TrimRight(base, "/"), url.PathEscape(hashedID), params.Encode())
}
