// Package slug derives URL-friendly names for items and reports names that
// collapse to the same slug.
package slug

import (
	"regexp"
	"strings"
)

var (
	whitespaceRun = regexp.MustCompile(`[\s\v\x{00A0}\x{1680}\x{2000}-\x{200A}\x{2028}\x{2029}\x{202F}\x{205F}\x{3000}\x{FEFF}]+`)
	nonWord       = regexp.MustCompile(`[^\w-]+`)
	dashRun       = regexp.MustCompile(`-{2,}`)
)

// Slugify lowercases and trims text, turns whitespace runs into "-", drops
// everything outside [A-Za-z0-9_-], collapses repeated "-" and trims "-"
// from both ends. Slugify(Slugify(s)) == Slugify(s).
func Slugify(text string) string {
	s := strings.TrimSpace(strings.ToLower(text))
	s = whitespaceRun.ReplaceAllString(s, "-")
	s = nonWord.ReplaceAllString(s, "")
	s = dashRun.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// Group is one slug shared by several items
type Group struct {
	Slug  string   `json:"slug" bson:"_id"`
	Count int      `json:"count" bson:"count"`
	Names []string `json:"names" bson:"names"`
}

// FindCollisions slugifies names and returns every slug produced more than
// once. Groups are ordered by the position at which the slug first
// repeated; names keep their input order.
func FindCollisions(names []string) []Group {
	counts := make(map[string]int, len(names))
	byslug := make(map[string][]string, len(names))
	var order []string

	for _, name := range names {
		s := Slugify(name)
		counts[s]++
		byslug[s] = append(byslug[s], name)
		if counts[s] == 2 {
			order = append(order, s)
		}
	}

	groups := make([]Group, 0, len(order))
	for _, s := range order {
		groups = append(groups, Group{Slug: s, Count: counts[s], Names: byslug[s]})
	}
	return groups
}

// Distinct counts the different slugs among names
func Distinct(names []string) int {
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		seen[Slugify(name)] = struct{}{}
	}
	return len(seen)
}
