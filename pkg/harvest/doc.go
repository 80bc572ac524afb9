// Package harvest sweeps the IdleMMO item search to build a local copy of
// the item catalog.
//
// The search endpoint has no "list everything" mode, so the harvest issues
// one query per letter of the alphabet and follows each query's pagination
// to the last page. Every query with results is written to its own shard
// file; the same item usually appears under several letters and is only
// deduplicated later by the reconcile step.
//
// Pacing happens at two levels: the API client pauses after every call and
// the harvest pauses once more between queries.
package harvest
