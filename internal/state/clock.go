package state

import "sync/atomic"

// Generation hands out increasing version numbers. A Board stamps every
// stroke mutation with one, so a caller can tell whether an asynchronous
// result computed for version v still applies.
type Generation struct {
	counter uint64
}

// Next returns the next version number.
func (g *Generation) Next() uint64 {
	return atomic.AddUint64(&g.counter, 1)
}
