package mesh

// seqGenerator hands out 8-bit sequence identifiers. It starts at a random
// value and increments, wrapping modulo 256.
type seqGenerator struct {
	next uint8
}

func newSeqGenerator(r RandomSource) seqGenerator {
	return seqGenerator{next: uint8(r.Random())} //nolint:gosec // intentional truncation
}

func (g *seqGenerator) genID() uint8 {
	id := g.next
	g.next++

	return id
}

// genUnusedID returns the next identifier for which inUse reports false.
// The second result is false when all 256 identifiers are in use.
func (g *seqGenerator) genUnusedID(inUse func(uint8) bool) (uint8, bool) {
	for range 256 {
		id := g.genID()
		if !inUse(id) {
			return id, true
		}
	}

	return 0, false
}
