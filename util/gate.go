package util

// A Gate limits concurrency. Each gate allows at most n goroutines inside
// the protected section at a time. A goroutine enters by calling Enter() and
// signals that it is finished by calling Leave().
type Gate chan struct{}

// NewGate returns a Gate admitting at most n entries at a time.
func NewGate(n int) Gate {
	return Gate(make(chan struct{}, n))
}

// Enter blocks the calling goroutine until fewer than n goroutines are
// inside the gate, and then enters. Safe to call from many goroutines.
func (g Gate) Enter() {
	g <- struct{}{}
}

// Leave exits the gate. Balance every call to Enter with a call to Leave.
// The two calls do not need to come from the same goroutine.
func (g Gate) Leave() {
	<-g
}
