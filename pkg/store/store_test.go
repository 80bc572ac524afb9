package store

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"idledata/pkg/models"
)

func TestItemDocumentJSON(t *testing.T) {
	doc := NewItemDocument(models.Item{
		HashedID: "h1",
		Name:     "Iron  Ore!",
		Type:     "ore",
		Quality:  "common",
		Extra:    map[string]json.RawMessage{"image_url": json.RawMessage(`"https://cdn/x.png"`)},
	})
	assert.Equal(t, "h1", doc.ID)
	assert.Equal(t, "iron-ore", doc.Slug)

	data, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"_id": "h1",
		"slug": "iron-ore",
		"hashed_id": "h1",
		"name": "Iron  Ore!",
		"type": "ore",
		"quality": "common",
		"image_url": "https://cdn/x.png"
	}`, string(data))

	var decoded ItemDocument
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, doc, decoded)
}

func TestIsHistoryCollection(t *testing.T) {
	assert.True(t, IsHistoryCollection("abc_0_orders_history_data"))
	assert.False(t, IsHistoryCollection("items"))
}

func TestItemDocumentKeepsItemOrder(t *testing.T) {
	var item models.Item
	require.NoError(t, json.Unmarshal([]byte(`{"name":"Iron Ore","hashed_id":"h1","image_url":"u","type":"ore","quality":"common"}`), &item))

	data, err := json.Marshal(NewItemDocument(item))
	require.NoError(t, err)
	assert.Equal(t, `{"name":"Iron Ore","hashed_id":"h1","image_url":"u","type":"ore","quality":"common","_id":"h1","slug":"iron-ore"}`, string(data))

	var decoded ItemDocument
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, item, decoded.Item)
}
