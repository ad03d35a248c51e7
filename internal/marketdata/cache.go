package marketdata

import (
	"sync"

	"algo_engine/internal/models"
)

// BarCache holds the most recent bars per symbol/timeframe in a fixed-depth
// ring. Writers are the warmup loader and the WS stream; readers are
// strategy cycles, so the lock is read-mostly.
type BarCache struct {
	mu    sync.RWMutex
	depth int
	rings map[string]*barRing
}

type barRing struct {
	buf   []models.OHLCBar
	start int
	size  int
}

func NewBarCache(depth int) *BarCache {
	if depth <= 0 {
		depth = 500
	}
	return &BarCache{
		depth: depth,
		rings: make(map[string]*barRing),
	}
}

func cacheKey(symbol, timeframe string) string {
	return symbol + "|" + timeframe
}

// Append adds one closed bar. A bar with the same timestamp as the newest
// cached one replaces it (venues resend the closing print).
func (c *BarCache) Append(bar models.OHLCBar) {
	key := cacheKey(bar.Symbol, bar.Timeframe)

	c.mu.Lock()
	defer c.mu.Unlock()

	r, ok := c.rings[key]
	if !ok {
		r = &barRing{buf: make([]models.OHLCBar, c.depth)}
		c.rings[key] = r
	}

	if r.size > 0 {
		lastIdx := (r.start + r.size - 1) % len(r.buf)
		last := r.buf[lastIdx]
		if bar.Timestamp.Equal(last.Timestamp) {
			r.buf[lastIdx] = bar
			return
		}
		if bar.Timestamp.Before(last.Timestamp) {
			return // out-of-order, keep the series ascending
		}
	}

	if r.size < len(r.buf) {
		r.buf[(r.start+r.size)%len(r.buf)] = bar
		r.size++
		return
	}
	r.buf[r.start] = bar
	r.start = (r.start + 1) % len(r.buf)
}

// Last returns up to n newest bars, ascending by timestamp.
func (c *BarCache) Last(symbol, timeframe string, n int) []models.OHLCBar {
	c.mu.RLock()
	defer c.mu.RUnlock()

	r, ok := c.rings[cacheKey(symbol, timeframe)]
	if !ok || r.size == 0 || n <= 0 {
		return nil
	}
	if n > r.size {
		n = r.size
	}
	out := make([]models.OHLCBar, n)
	first := r.size - n
	for i := 0; i < n; i++ {
		out[i] = r.buf[(r.start+first+i)%len(r.buf)]
	}
	return out
}

func (c *BarCache) Size(symbol, timeframe string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.rings[cacheKey(symbol, timeframe)]
	if !ok {
		return 0
	}
	return r.size
}
