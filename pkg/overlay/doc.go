// Package overlay drives the in-game price overlay. A Session receives the
// inspect link of whatever the player selects, debounces page mutations,
// skips repeats of the same item and tier, and hands market rows and
// charts to a Renderer. A missing API key or a failed fetch is rendered
// as placeholder rows instead of being returned.
package overlay
