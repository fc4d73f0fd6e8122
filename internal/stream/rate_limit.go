package stream

import (
	"sync"
)

// maxStreams caps open streams across all clients.
const maxStreams = 1000

// connLimiter counts open streams per client address and in total.
type connLimiter struct {
	mu       sync.Mutex
	perKey   map[string]int
	open     int
	maxKey   int
	maxTotal int
}

func newConnLimiter(maxPerKey int) *connLimiter {
	return &connLimiter{
		perKey:   make(map[string]int),
		maxKey:   maxPerKey,
		maxTotal: maxStreams,
	}
}

// acquire takes a slot for key. The returned release func gives the slot
// back and may be called more than once.
func (l *connLimiter) acquire(key string) (release func(), ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.open >= l.maxTotal || l.perKey[key] >= l.maxKey {
		return func() {}, false
	}
	l.perKey[key]++
	l.open++

	var once sync.Once
	return func() { once.Do(func() { l.release(key) }) }, true
}

func (l *connLimiter) release(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.open--
	if l.perKey[key]--; l.perKey[key] <= 0 {
		delete(l.perKey, key)
	}
}

// active returns the open streams for key.
func (l *connLimiter) active(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.perKey[key]
}

// total returns the open streams across all keys.
func (l *connLimiter) total() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.open
}
