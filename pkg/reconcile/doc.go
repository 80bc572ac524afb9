// Package reconcile turns the harvest's per-query shards into a single
// deduplicated item set.
//
// Items are keyed by hashed_id and the first copy seen wins; shards are read
// in lexical file order, so the winner is deterministic. Slug collisions are
// reported but never block the output, and the shards themselves are left
// untouched unless the caller asks for them to be cleaned.
package reconcile
