package overlay

import (
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"
)

// Selection is the item and tier currently being inspected
type Selection struct {
	ItemID string `json:"item_id"`
	Tier   int    `json:"tier"`
}

func (s Selection) String() string {
	return fmt.Sprintf("%s (tier %d)", s.ItemID, s.Tier)
}

// ParseInspectURL reads the selection from an inspect link such as
// https://web.idle-mmo.com/item/inspect/DBngxedVYJqlNX64wW8o?tier=1&same_window=true.
// The item id is the last path segment and tier is a query parameter; both
// are required.
func ParseInspectURL(href string) (Selection, error) {
	u, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return Selection{}, fmt.Errorf("parse inspect url: %w", err)
	}

	id := path.Base(strings.TrimRight(u.Path, "/"))
	if id == "" || id == "." || id == "/" {
		return Selection{}, fmt.Errorf("inspect url %q has no item id", href)
	}

	rawTier := u.Query().Get("tier")
	if rawTier == "" {
		return Selection{}, fmt.Errorf("inspect url %q has no tier", href)
	}
	tier, err := strconv.Atoi(rawTier)
	if err != nil || tier < 0 {
		return Selection{}, fmt.Errorf("inspect url %q has invalid tier %q", href, rawTier)
	}

	return Selection{ItemID: id, Tier: tier}, nil
}
