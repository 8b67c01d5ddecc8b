package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIPRateLimiter(t *testing.T) {
	rl := NewIPRateLimiter(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 2, EntryTTL: time.Minute})
	defer rl.Stop()

	a := rl.getLimiter("10.0.0.1")
	assert.True(t, a.Allow())
	assert.True(t, a.Allow())
	assert.False(t, a.Allow())

	// clients do not share buckets
	assert.True(t, rl.getLimiter("10.0.0.2").Allow())
	assert.Same(t, a, rl.getLimiter("10.0.0.1"))
	assert.Equal(t, 2, rl.Size())

	rl.cleanup(time.Now().Add(2 * time.Minute))
	assert.Zero(t, rl.Size())

	rl.Stop()
}
