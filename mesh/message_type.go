package mesh

import "strconv"

// MessageType is the 3-bit frame type carried in the header.
type MessageType uint8

const (
	// Broadcast frames are accepted by every device on the network.
	Broadcast MessageType = iota
	// GroupBroadcast frames are accepted by members of the destination group.
	GroupBroadcast
	// Stateless frames are unreliable unicast messages.
	Stateless
	// Stateful frames are reliable unicast messages answered by a StatefulAck.
	Stateful
	// StatefulAck acknowledges a Stateful frame; it carries no payload.
	StatefulAck
)

// maxMessageType is the highest defined type; 5–7 are reserved.
const maxMessageType = StatefulAck

// IsValid reports whether t is one of the five defined message types.
func (t MessageType) IsValid() bool {
	return t <= maxMessageType
}

// IsDataBearing reports whether frames of this type carry application data
// and therefore go through duplicate suppression and delivery.
func (t MessageType) IsDataBearing() bool {
	switch t {
	case Broadcast, GroupBroadcast, Stateless, Stateful:
		return true
	default:
		return false
	}
}

func (t MessageType) String() string {
	switch t {
	case Broadcast:
		return "Broadcast"
	case GroupBroadcast:
		return "GroupBroadcast"
	case Stateless:
		return "Stateless"
	case Stateful:
		return "Stateful"
	case StatefulAck:
		return "StatefulAck"
	default:
		return "MessageType(" + strconv.Itoa(int(t)) + ")"
	}
}
