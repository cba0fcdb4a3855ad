// Package ui is the terminal rendering layer of the feed.
package ui

import "time"

// FeedChanged is sent whenever the engine signals a change.
type FeedChanged struct{}

// AnimTick advances the scroll animation by one frame.
type AnimTick struct{ Time time.Time }

// PrefSaved reports the outcome of a preference write.
type PrefSaved struct{ Err error }
