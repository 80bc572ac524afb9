// Package ratelimit provides the client-side pacing used by the pipelines.
//
// The IdleMMO API asks callers to stay under its request budget, so every
// successful call is followed by a fixed pause, and the harvest adds a second
// pause between queries. Both are expressed as a Pacer:
//
//	pacer := ratelimit.NewFixedDelay(3100 * time.Millisecond)
//	if err := pacer.Pause(ctx); err != nil {
//	    return err // cancelled
//	}
//
// Pacing is fixed. Nothing here adapts to server responses.
package ratelimit
