package shortage

import (
	"hash/fnv"
	"math"
	"math/rand"
	"sync"

	"golang.org/x/sync/singleflight"
)

const (
	historySteps    = 30
	featuresPerStep = 5
	scoringWindow   = 7
	outbreakOnset   = 20
)

// FeatureVector is one step of synthetic history: normalized stock level,
// normalized usage, day-of-week phase, weather multiplier, outbreak
// multiplier.
type FeatureVector [featuresPerStep]float64

// History is the fixed-length feature sequence for one (drug, location) key.
type History []FeatureVector

// HistoryCache memoizes synthetic histories per (drug, location) key for the
// process lifetime. Population is guarded with singleflight so concurrent
// first requests for the same key generate at most once and every caller
// observes the identical sequence.
type HistoryCache struct {
	mu      sync.RWMutex
	entries map[string]History
	group   singleflight.Group
}

// NewHistoryCache returns an empty cache.
func NewHistoryCache() *HistoryCache {
	return &HistoryCache{entries: make(map[string]History)}
}

// Get returns the history for the key, generating and caching it on first
// use.
func (c *HistoryCache) Get(drugName, location string) History {
	key := drugName + "\x1f" + location

	c.mu.RLock()
	h, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return h
	}

	v, _, _ := c.group.Do(key, func() (any, error) {
		c.mu.RLock()
		h, ok := c.entries[key]
		c.mu.RUnlock()
		if ok {
			return h, nil
		}
		h = generateHistory(drugName, location)
		c.mu.Lock()
		c.entries[key] = h
		c.mu.Unlock()
		return h, nil
	})
	return v.(History)
}

// Len reports the number of cached keys.
func (c *HistoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// generateHistory derives a deterministic 30-step sequence from the key. The
// outbreak multiplier stays flat at 1.0 for the first 20 steps and is
// randomly elevated afterwards, modelling a late demand shock.
func generateHistory(drugName, location string) History {
	rng := rand.New(rand.NewSource(historySeed(drugName, location)))

	h := make(History, historySteps)
	for step := range h {
		outbreak := 1.0
		if step >= outbreakOnset {
			outbreak = 1.0 + rng.Float64()*1.5
		}
		h[step] = FeatureVector{
			0.3 + rng.Float64()*0.7,                       // stock level
			0.1 + rng.Float64()*0.9,                       // usage
			(math.Sin(2*math.Pi*float64(step)/7) + 1) / 2, // day-of-week phase
			0.8 + rng.Float64()*0.4,                       // weather multiplier
			outbreak,
		}
	}
	return h
}

func historySeed(drugName, location string) int64 {
	f := fnv.New64a()
	f.Write([]byte(drugName))
	f.Write([]byte{0})
	f.Write([]byte(location))
	return int64(f.Sum64())
}
