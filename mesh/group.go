package mesh

// groupTable is the bounded set of groups this device belongs to.
// Slots are allocated once and reused; order is not significant.
type groupTable struct {
	slots []groupSlot
}

type groupSlot struct {
	id   uint16
	used bool
}

func newGroupTable(capacity int) *groupTable {
	return &groupTable{slots: make([]groupSlot, capacity)}
}

func isValidGroupID(id uint16) bool {
	return id != 0 && id != BroadcastAddress
}

// join adds id to the table. Joining a group twice is a no-op.
func (g *groupTable) join(id uint16) error {
	if !isValidGroupID(id) {
		return ErrInvalidGroup
	}

	free := -1
	for i := range g.slots {
		if !g.slots[i].used {
			if free < 0 {
				free = i
			}

			continue
		}
		if g.slots[i].id == id {
			return nil
		}
	}

	if free < 0 {
		return ErrTableFull
	}

	g.slots[free] = groupSlot{id: id, used: true}

	return nil
}

func (g *groupTable) leave(id uint16) error {
	for i := range g.slots {
		if g.slots[i].used && g.slots[i].id == id {
			g.slots[i] = groupSlot{}
			return nil
		}
	}

	return ErrNotMember
}

func (g *groupTable) contains(id uint16) bool {
	for i := range g.slots {
		if g.slots[i].used && g.slots[i].id == id {
			return true
		}
	}

	return false
}

func (g *groupTable) len() int {
	n := 0
	for i := range g.slots {
		if g.slots[i].used {
			n++
		}
	}

	return n
}

func (g *groupTable) reset() {
	clear(g.slots)
}
