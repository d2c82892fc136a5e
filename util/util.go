package util

import "time"

// DrainChan receives from c until no value is immediately available and returns everything received.
// It never blocks.
func DrainChan[T any](c <-chan T) (items []T) {
	for {
		select {
		case item, ok := <-c:
			if !ok {
				return
			}
			items = append(items, item)
		default:
			return
		}
	}
}

// SecondsToDuration converts a (possibly fractional) number of seconds to a time.Duration
func SecondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}
