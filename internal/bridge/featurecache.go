package bridge

import "math"

// valueEpsilon is the change threshold below which a numeric feature write
// is suppressed. The cloud reports battery as an integer but the host layer
// stores floats; tiny representational drift must not generate writes.
const valueEpsilon = 0.01

// FeatureValueCache deduplicates feature writes: a value is only pushed to
// the registry and the bus when it differs from the last pushed value by at
// least valueEpsilon (numeric), or at all (text).
//
// The cache is owned by the engine's single control flow and is not
// synchronized.
type FeatureValueCache struct {
	values map[string]float64
	texts  map[string]string
}

// NewFeatureValueCache creates an empty cache.
func NewFeatureValueCache() *FeatureValueCache {
	return &FeatureValueCache{
		values: make(map[string]float64),
		texts:  make(map[string]string),
	}
}

// Update records value under key and reports whether a write is needed:
// always true for a first value, true when the change exceeds valueEpsilon
// (a delta of exactly valueEpsilon is still suppressed). The stored value
// is only replaced when true is returned, so slow drift below the
// threshold never accumulates silently.
func (c *FeatureValueCache) Update(key string, value float64) bool {
	prev, seen := c.values[key]
	if seen && math.Abs(value-prev) <= valueEpsilon {
		return false
	}
	c.values[key] = value
	return true
}

// UpdateText records display text under key and reports whether a write is
// needed.
func (c *FeatureValueCache) UpdateText(key, text string) bool {
	prev, seen := c.texts[key]
	if seen && prev == text {
		return false
	}
	c.texts[key] = text
	return true
}

// Forget drops all cached entries for key so the next update writes
// unconditionally. Called during rebinding for devices the cloud no
// longer reports, so a device that later returns republishes in full.
func (c *FeatureValueCache) Forget(key string) {
	delete(c.values, key)
	delete(c.texts, key)
}

// Len returns the number of cached numeric entries.
func (c *FeatureValueCache) Len() int {
	return len(c.values)
}
