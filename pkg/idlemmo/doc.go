// Package idlemmo is the client for the IdleMMO public API.
//
// It covers the two endpoints the pipelines need:
//   - item search, paginated by page number
//   - per-item market history for a tier and series (listings or orders)
//
// Every call carries the bearer key, a fixed User-Agent and Accept header.
// A successful call is followed by the client's pacer pause, so a client
// built from configuration never exceeds one call per call_delay. Failed
// calls are not retried; non-2xx responses come back as HTTP-kind errors
// from pkg/errors:
//
//	client := idlemmo.NewClientFromConfig(&cfg.API, log)
//	page, err := client.SearchItems(ctx, "a", 1)
//	if errors.IsKind(err, errors.KindHTTP) {
//	    // "HTTP 401: Unauthorized"
//	}
package idlemmo
