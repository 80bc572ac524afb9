package models

import (
	"bytes"
	"fmt"
	"slices"
	"sort"

	"github.com/goccy/go-json"
)

// Item is one catalog record from the item search endpoint. Fields the
// pipelines do not interpret are kept in Extra and written back unchanged,
// in the order the API sent them.
type Item struct {
	HashedID string
	Name     string
	Type     string
	Quality  string
	Extra    map[string]json.RawMessage

	// order is the decoded key order; nil means canonical order
	order []string
}

var itemKeys = []string{"hashed_id", "name", "type", "quality"}

func (i *Item) known(key string) (*string, bool) {
	switch key {
	case "hashed_id":
		return &i.HashedID, true
	case "name":
		return &i.Name, true
	case "type":
		return &i.Type, true
	case "quality":
		return &i.Quality, true
	}
	return nil, false
}

// UnmarshalJSON decodes an item and keeps every unknown attribute
func (i *Item) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	keys, err := objectKeys(data)
	if err != nil {
		return err
	}

	*i = Item{}
	for key, value := range raw {
		target, ok := i.known(key)
		if !ok {
			if i.Extra == nil {
				i.Extra = make(map[string]json.RawMessage)
			}
			i.Extra[key] = value
			continue
		}
		if string(value) == "null" {
			continue
		}
		if err := json.Unmarshal(value, target); err != nil {
			return fmt.Errorf("item field %s: %w", key, err)
		}
	}
	i.setOrder(keys)
	return nil
}

// MarshalJSON writes the item as one object, keeping the decoded key order.
// Known fields missing from that order follow it, then new attributes sorted.
func (i Item) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for n, key := range i.keys() {
		var value []byte
		if target, ok := i.known(key); ok {
			encoded, err := json.Marshal(*target)
			if err != nil {
				return nil, err
			}
			value = encoded
		} else {
			value = i.Extra[key]
		}

		if n > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// RemoveExtra drops preserved attributes by key
func (i *Item) RemoveExtra(keys ...string) {
	for _, key := range keys {
		delete(i.Extra, key)
	}
	if len(i.Extra) == 0 {
		i.Extra = nil
	}
	i.setOrder(i.order)
}

// keys lists the output keys: the decoded order first, restricted to keys
// that still exist, then the rest in canonical order
func (i *Item) keys() []string {
	seen := make(map[string]bool, len(i.order)+len(itemKeys)+len(i.Extra))
	out := make([]string, 0, len(itemKeys)+len(i.Extra))
	add := func(key string) {
		if seen[key] {
			return
		}
		if _, ok := i.known(key); !ok {
			if _, ok := i.Extra[key]; !ok {
				return
			}
		}
		seen[key] = true
		out = append(out, key)
	}

	for _, key := range i.order {
		add(key)
	}
	for _, key := range itemKeys {
		add(key)
	}
	extra := make([]string, 0, len(i.Extra))
	for key := range i.Extra {
		extra = append(extra, key)
	}
	sort.Strings(extra)
	for _, key := range extra {
		add(key)
	}
	return out
}

// setOrder records keys as the key order, or nil when it is canonical
func (i *Item) setOrder(keys []string) {
	i.order = keys
	resolved := i.keys()
	i.order = nil
	if !slices.Equal(resolved, i.keys()) {
		i.order = resolved
	}
}

// objectKeys returns the top-level keys of a JSON object in document order
func objectKeys(data []byte) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	if _, err := dec.Token(); err != nil {
		return nil, err
	}

	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected object key %v", tok)
		}
		keys = append(keys, key)
		if err := skipValue(dec); err != nil {
			return nil, err
		}
	}
	return keys, nil
}

func skipValue(dec *json.Decoder) error {
	depth := 0
	for {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		switch tok {
		case json.Delim('{'), json.Delim('['):
			depth++
		case json.Delim('}'), json.Delim(']'):
			depth--
		}
		if depth == 0 {
			return nil
		}
	}
}

// Pagination is the paging block of a search response
type Pagination struct {
	CurrentPage int `json:"current_page"`
	LastPage    int `json:"last_page"`
	PerPage     int `json:"per_page"`
	Total       int `json:"total"`
}

// SearchPage is one page of item search results
type SearchPage struct {
	Items      []Item     `json:"items"`
	Pagination Pagination `json:"pagination"`
}
