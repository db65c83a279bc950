package mesh

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddressFilter(t *testing.T) {
	groups := newGroupTable(2)
	require.NoError(t, groups.join(0x0100))

	f := addressFilter{networkID: 7, deviceID: 2, groups: groups}

	tests := []struct {
		name    string
		hdr     Header
		wantErr error
	}{
		{name: "broadcast", hdr: Header{NetworkID: 7, Source: 1, Destination: BroadcastAddress, Type: Broadcast}},
		{name: "broadcast any destination", hdr: Header{NetworkID: 7, Source: 1, Destination: 0x55, Type: Broadcast}},
		{name: "ack always passes", hdr: Header{NetworkID: 7, Source: 1, Destination: 9, Type: StatefulAck}},
		{name: "joined group", hdr: Header{NetworkID: 7, Source: 1, Destination: 0x0100, Type: GroupBroadcast}},
		{name: "other group", hdr: Header{NetworkID: 7, Source: 1, Destination: 0x0200, Type: GroupBroadcast}, wantErr: ErrNotAddressed},
		{name: "stateless to us", hdr: Header{NetworkID: 7, Source: 1, Destination: 2, Type: Stateless}},
		{name: "stateless to other", hdr: Header{NetworkID: 7, Source: 1, Destination: 3, Type: Stateless}, wantErr: ErrNotAddressed},
		{name: "stateful to us", hdr: Header{NetworkID: 7, Source: 1, Destination: 2, Type: Stateful}},
		{name: "stateful to other", hdr: Header{NetworkID: 7, Source: 1, Destination: 3, Type: Stateful}, wantErr: ErrNotAddressed},
		{name: "foreign network", hdr: Header{NetworkID: 8, Source: 1, Destination: 2, Type: Stateful}, wantErr: ErrForeignNetwork},
		{name: "foreign broadcast", hdr: Header{NetworkID: 8, Source: 1, Type: Broadcast}, wantErr: ErrForeignNetwork},
		{name: "own frame", hdr: Header{NetworkID: 7, Source: 2, Type: Broadcast}, wantErr: ErrOwnFrame},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.check(&tt.hdr)
			if tt.wantErr == nil {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}
