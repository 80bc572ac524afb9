// Package storage manages the harvest's on-disk artifacts.
//
// The harvest writes one shard per query (items/a.json, items/b.json, ...)
// and reconciliation writes the deduplicated item set (items.json). Both are
// pretty-printed JSON arrays of raw items and are written atomically through
// a temporary file and rename, so a crash never leaves a half-written shard.
//
// Shards are never modified after the harvest writes them. Clean removes them
// on request once their contents have been reconciled.
package storage
