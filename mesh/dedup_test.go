package mesh

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDedupCache_NovelThenRepeat(t *testing.T) {
	c := newDedupCache(4, 30*time.Second)
	now := time.Unix(0, 0)

	assert.Equal(t, Novel, c.observe(1, 10, now))
	assert.Equal(t, 1, c.timesReceived(1, 10))

	assert.Equal(t, Repeat, c.observe(1, 10, now.Add(time.Second)))
	assert.Equal(t, Repeat, c.observe(1, 10, now.Add(2*time.Second)))
	assert.Equal(t, 3, c.timesReceived(1, 10))

	// same sequence from another source is a different message
	assert.Equal(t, Novel, c.observe(2, 10, now))
	assert.Equal(t, 2, c.len())
}

func TestDedupCache_EvictsLeastRecentlySeen(t *testing.T) {
	c := newDedupCache(3, time.Minute)
	base := time.Unix(0, 0)

	c.observe(1, 1, base)
	c.observe(2, 2, base.Add(1*time.Second))
	c.observe(3, 3, base.Add(2*time.Second))

	// refresh the oldest entry so (2,2) becomes the least recently seen
	assert.Equal(t, Repeat, c.observe(1, 1, base.Add(3*time.Second)))

	assert.Equal(t, Novel, c.observe(4, 4, base.Add(4*time.Second)))
	assert.Equal(t, 3, c.len())
	assert.Equal(t, 0, c.timesReceived(2, 2))
	assert.Equal(t, 2, c.timesReceived(1, 1))
	assert.Equal(t, 1, c.timesReceived(3, 3))
	assert.Equal(t, 1, c.timesReceived(4, 4))
}

func TestDedupCache_ExpiredEntryIsNovel(t *testing.T) {
	c := newDedupCache(2, 10*time.Second)
	base := time.Unix(0, 0)

	c.observe(5, 5, base)
	assert.Equal(t, Repeat, c.observe(5, 5, base.Add(10*time.Second)))
	assert.Equal(t, Novel, c.observe(5, 5, base.Add(21*time.Second)))
	assert.Equal(t, 1, c.timesReceived(5, 5))
}

func TestDedupCache_Purge(t *testing.T) {
	c := newDedupCache(4, 10*time.Second)
	base := time.Unix(0, 0)

	c.observe(1, 1, base)
	c.observe(2, 2, base.Add(5*time.Second))
	c.observe(3, 3, base.Add(9*time.Second))

	assert.Equal(t, 1, c.purge(base.Add(11*time.Second)))
	assert.Equal(t, 2, c.len())
	assert.Equal(t, 0, c.timesReceived(1, 1))

	assert.Equal(t, 2, c.purge(base.Add(time.Minute)))
	assert.Equal(t, 0, c.len())
}

func TestDedupCache_TimesReceivedSaturates(t *testing.T) {
	c := newDedupCache(1, time.Minute)
	now := time.Unix(0, 0)

	for range 300 {
		c.observe(1, 1, now)
	}
	assert.Equal(t, 255, c.timesReceived(1, 1))
}
