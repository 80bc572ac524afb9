// Package checkpoint persists harvest progress so an interrupted sweep can
// resume.
//
// The unit of progress is the query: a query is recorded only after all of
// its pages were fetched and its shard was written. A run that stops in the
// middle of a query fetches that query again from page 1 on resume.
//
// The checkpoint is a small JSON file written atomically (temp file, fsync,
// rename) after every completed query.
package checkpoint
