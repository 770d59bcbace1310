package domain

import "github.com/jonboulle/clockwork"

// orRealClock returns c, or the wall clock when c is nil. Tests inject a fake
// clock for deterministic FirstSeen/LastSeen values.
func orRealClock(c clockwork.Clock) clockwork.Clock {
	if c == nil {
		return clockwork.NewRealClock()
	}
	return c
}
