package mesh

import "time"

// Observation classifies an inbound (source, sequence) pair.
type Observation uint8

const (
	// Novel means the pair was not seen within the retention window.
	Novel Observation = iota
	// Repeat means the pair was already observed within the retention window.
	Repeat
)

func (o Observation) String() string {
	if o == Novel {
		return "Novel"
	}

	return "Repeat"
}

// processedEntry records one observed (source, sequenceID) pair.
type processedEntry struct {
	source        uint16
	sequenceID    uint8
	timesReceived uint8
	lastSeen      time.Time
	used          bool
}

// dedupCache is the bounded table of recently observed messages.
//
// When the table is full, the least recently seen entry is evicted to admit
// a new one.
type dedupCache struct {
	entries []processedEntry
	window  time.Duration
}

func newDedupCache(capacity int, window time.Duration) *dedupCache {
	return &dedupCache{
		entries: make([]processedEntry, capacity),
		window:  window,
	}
}

// observe records a sighting of (source, seq) at now.
//
// An entry older than the retention window is treated as expired, and the
// sighting is Novel again.
func (c *dedupCache) observe(source uint16, seq uint8, now time.Time) Observation {
	victim := -1

	for i := range c.entries {
		e := &c.entries[i]
		if !e.used {
			if victim < 0 || c.entries[victim].used {
				victim = i
			}

			continue
		}

		if e.source == source && e.sequenceID == seq {
			if c.expired(e, now) {
				e.timesReceived = 1
				e.lastSeen = now

				return Novel
			}

			if e.timesReceived < ^uint8(0) {
				e.timesReceived++
			}
			e.lastSeen = now

			return Repeat
		}

		// prefer free slots, then the least recently seen entry
		if victim < 0 || (c.entries[victim].used && e.lastSeen.Before(c.entries[victim].lastSeen)) {
			victim = i
		}
	}

	c.entries[victim] = processedEntry{
		source:        source,
		sequenceID:    seq,
		timesReceived: 1,
		lastSeen:      now,
		used:          true,
	}

	return Novel
}

// purge removes entries older than the retention window and returns the
// number of removed entries.
func (c *dedupCache) purge(now time.Time) int {
	n := 0
	for i := range c.entries {
		if c.entries[i].used && c.expired(&c.entries[i], now) {
			c.entries[i] = processedEntry{}
			n++
		}
	}

	return n
}

func (c *dedupCache) expired(e *processedEntry, now time.Time) bool {
	return now.Sub(e.lastSeen) > c.window
}

// timesReceived returns the observation count of (source, seq), or 0 when
// the pair is not in the table.
func (c *dedupCache) timesReceived(source uint16, seq uint8) int {
	for i := range c.entries {
		e := &c.entries[i]
		if e.used && e.source == source && e.sequenceID == seq {
			return int(e.timesReceived)
		}
	}

	return 0
}

func (c *dedupCache) len() int {
	n := 0
	for i := range c.entries {
		if c.entries[i].used {
			n++
		}
	}

	return n
}

func (c *dedupCache) reset() {
	clear(c.entries)
}
