// meshnode runs a mesh node on a UDP multicast group.
//
// The node is configured by environment variables:
//
//	NETWORK_ID     network identifier (default 1)
//	DEVICE_ID      device identifier (required)
//	MCAST_ADDR     multicast group "ip:port" (default 239.77.77.77:7777)
//	GROUPS         comma separated groups to join
//	SERIAL_PORT    serial device bridged with the uartbridge line protocol
//	SERIAL_BAUD    serial baud rate (default 115200)
//	HEARTBEAT      interval of a broadcast heartbeat, e.g. "5s" (disabled by default)
//	LOG_LEVEL      debug, info, warn or error (default info)
//	ENV            "development" selects the console log format
//
// Without a serial port, delivered messages are logged.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/arloliu/go-advmesh/logger"
	"github.com/arloliu/go-advmesh/mcast"
	"github.com/arloliu/go-advmesh/mesh"
	"github.com/arloliu/go-advmesh/node"
	"github.com/arloliu/go-advmesh/uartbridge"
)

var log logger.Logger

type settings struct {
	networkID  uint16
	deviceID   uint16
	mcastAddr  string
	groups     []uint16
	serialPort string
	serialBaud int
	heartbeat  time.Duration
}

func loadSettings() (*settings, error) {
	s := &settings{
		networkID:  1,
		mcastAddr:  mcast.DefaultAddress,
		serialBaud: 115200,
	}

	if val := os.Getenv("NETWORK_ID"); val != "" {
		n, err := strconv.ParseUint(val, 0, 16)
		if err != nil {
			return nil, fmt.Errorf("invalid NETWORK_ID %q: %w", val, err)
		}
		s.networkID = uint16(n)
	}

	val := os.Getenv("DEVICE_ID")
	if val == "" {
		return nil, fmt.Errorf("DEVICE_ID is required")
	}
	n, err := strconv.ParseUint(val, 0, 16)
	if err != nil {
		return nil, fmt.Errorf("invalid DEVICE_ID %q: %w", val, err)
	}
	s.deviceID = uint16(n)

	if val := os.Getenv("MCAST_ADDR"); val != "" {
		s.mcastAddr = val
	}

	if val := os.Getenv("GROUPS"); val != "" {
		for _, g := range strings.Split(val, ",") {
			n, err := strconv.ParseUint(strings.TrimSpace(g), 0, 16)
			if err != nil {
				return nil, fmt.Errorf("invalid group %q: %w", g, err)
			}
			s.groups = append(s.groups, uint16(n))
		}
	}

	s.serialPort = os.Getenv("SERIAL_PORT")
	if val := os.Getenv("SERIAL_BAUD"); val != "" {
		n, err := strconv.Atoi(val)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid SERIAL_BAUD %q", val)
		}
		s.serialBaud = n
	}

	if val := os.Getenv("HEARTBEAT"); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid HEARTBEAT %q", val)
		}
		s.heartbeat = d
	}

	return s, nil
}

func logMessage(msg node.Message) {
	log.Info("message received", "source", msg.Source, "payload", fmt.Sprintf("%x", msg.Payload))
}

func retryExhausted(destination uint16, seq uint8) {
	log.Warn("reliable message not acknowledged", "destination", destination, "sequenceID", seq)
}

func main() {
	level := logger.InfoLevel
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		if l, err := logger.ParseLevel(val); err == nil {
			level = l
		}
	}
	log = logger.NewSlog(level, false)

	if err := run(); err != nil {
		log.Error("meshnode failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	s, err := loadSettings()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := mesh.NewConfig(s.networkID, s.deviceID,
		mesh.WithLogger(log),
		mesh.WithRetryExhaustedHandler(retryExhausted),
	)
	if err != nil {
		return err
	}

	mcastCfg, err := mcast.NewConfig(s.mcastAddr, mcast.WithLogger(log))
	if err != nil {
		return err
	}

	medium, err := mcast.NewMedium(ctx, mcastCfg)
	if err != nil {
		return err
	}

	var (
		link    *serialLink
		bridge  *uartbridge.Bridge
		handler = logMessage
	)

	if s.serialPort != "" {
		link, err = openSerial(s.serialPort, s.serialBaud)
		if err != nil {
			_ = medium.Close()
			return err
		}
		bridge = uartbridge.New(link, log)
		handler = bridge.Deliver
	}

	n, err := node.NewNode(ctx, cfg, medium, node.WithHandler(handler))
	if err != nil {
		_ = medium.Close()
		return err
	}

	for _, g := range s.groups {
		if err := n.JoinGroup(ctx, g); err != nil {
			log.Error("failed to join group", "group", g, "error", err)
		}
	}

	if bridge != nil {
		go func() {
			if err := bridge.Serve(ctx, n); err != nil {
				log.Error("serial bridge stopped", "error", err)
			}
		}()
	}

	if s.heartbeat > 0 {
		go heartbeat(ctx, n, s.heartbeat)
	}

	log.Info("meshnode running",
		"networkID", s.networkID,
		"deviceID", s.deviceID,
		"group", s.mcastAddr,
		"serialPort", s.serialPort,
	)

	exitSig := make(chan os.Signal, 1)
	signal.Notify(exitSig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)
	<-exitSig

	log.Info("exit signal received")

	cancel()
	if link != nil {
		_ = link.Close()
	}
	if err := n.Close(); err != nil {
		log.Warn("failed to close node", "error", err)
	}

	log.Info("shutdown finished")

	return nil
}

func heartbeat(ctx context.Context, n *node.Node, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	count := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			count++
			payload := fmt.Appendf(nil, "hb %d", count)
			if err := n.Broadcast(ctx, payload); err != nil {
				log.Warn("failed to broadcast heartbeat", "error", err)
			}
		}
	}
}
