package metrics

import "sync/atomic"

// CacheMetric counts hits and misses of a memoized computation.
type CacheMetric struct {
	name   string
	hits   atomic.Int64
	misses atomic.Int64
}

func newCacheMetric(name string) *CacheMetric {
	return &CacheMetric{name: name}
}

// Hit records a reuse of a cached result.
func (c *CacheMetric) Hit() {
	if enabled.Load() {
		c.hits.Add(1)
	}
}

// Miss records a recomputation.
func (c *CacheMetric) Miss() {
	if enabled.Load() {
		c.misses.Add(1)
	}
}

// Name returns the metric name.
func (c *CacheMetric) Name() string { return c.name }

// Hits returns the number of recorded hits.
func (c *CacheMetric) Hits() int64 { return c.hits.Load() }

// Misses returns the number of recorded misses.
func (c *CacheMetric) Misses() int64 { return c.misses.Load() }

// HitRate returns hits / (hits + misses), or 0 with no data.
func (c *CacheMetric) HitRate() float64 {
	h, m := c.hits.Load(), c.misses.Load()
	if h+m == 0 {
		return 0
	}
	return float64(h) / float64(h+m)
}

// Reset clears the counters.
func (c *CacheMetric) Reset() {
	c.hits.Store(0)
	c.misses.Store(0)
}

// CacheStats is a snapshot of a cache metric.
type CacheStats struct {
	Name    string  `json:"name"`
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

// Stats returns a snapshot.
func (c *CacheMetric) Stats() CacheStats {
	return CacheStats{Name: c.name, Hits: c.Hits(), Misses: c.Misses(), HitRate: c.HitRate()}
}

// PipelineCache tracks reuse of memoized pipeline stage results.
var PipelineCache = newCacheMetric("pipeline_cache")

// AllCacheMetrics returns all registered cache metrics.
func AllCacheMetrics() []*CacheMetric {
	return []*CacheMetric{PipelineCache}
}
