package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-advmesh/mcast"
)

func TestLoadSettings(t *testing.T) {
	t.Setenv("NETWORK_ID", "0x0007")
	t.Setenv("DEVICE_ID", "2")
	t.Setenv("GROUPS", "256, 0x0200")
	t.Setenv("SERIAL_PORT", "/dev/ttyUSB0")
	t.Setenv("SERIAL_BAUD", "9600")
	t.Setenv("HEARTBEAT", "5s")
	t.Setenv("MCAST_ADDR", "")

	s, err := loadSettings()
	require.NoError(t, err)

	assert.Equal(t, &settings{
		networkID:  7,
		deviceID:   2,
		mcastAddr:  mcast.DefaultAddress,
		groups:     []uint16{0x0100, 0x0200},
		serialPort: "/dev/ttyUSB0",
		serialBaud: 9600,
		heartbeat:  5 * time.Second,
	}, s)
}

func TestLoadSettings_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"device missing", "DEVICE_ID", ""},
		{"device overflow", "DEVICE_ID", "70000"},
		{"network", "NETWORK_ID", "net"},
		{"group", "GROUPS", "1,x"},
		{"baud", "SERIAL_BAUD", "-1"},
		{"heartbeat", "HEARTBEAT", "often"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DEVICE_ID", "1")
			t.Setenv(tt.key, tt.val)

			_, err := loadSettings()
			require.Error(t, err)
		})
	}
}
