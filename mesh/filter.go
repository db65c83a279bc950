package mesh

import "fmt"

// addressFilter rejects frames from other networks and frames that are not
// addressed to this device or one of its groups.
type addressFilter struct {
	networkID uint16
	deviceID  uint16
	groups    *groupTable
}

// check returns nil when the frame must be processed further.
func (f *addressFilter) check(h *Header) error {
	if h.NetworkID != f.networkID {
		return fmt.Errorf("%w: got 0x%04X, want 0x%04X", ErrForeignNetwork, h.NetworkID, f.networkID)
	}

	if h.Source == f.deviceID {
		return ErrOwnFrame
	}

	switch h.Type {
	case Broadcast, StatefulAck:
		return nil

	case GroupBroadcast:
		if f.groups.contains(h.Destination) {
			return nil
		}

		return fmt.Errorf("%w: group 0x%04X not joined", ErrNotAddressed, h.Destination)

	case Stateless, Stateful:
		if h.Destination == f.deviceID {
			return nil
		}

		return fmt.Errorf("%w: destination 0x%04X", ErrNotAddressed, h.Destination)

	default:
		return fmt.Errorf("%w: %d", ErrUnknownType, uint8(h.Type))
	}
}
