package mcast

import (
	"context"
	"fmt"
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// listen opens a UDP socket bound to the group port with SO_REUSEADDR and
// SO_REUSEPORT, so that several nodes on one host can share the group, and
// joins the multicast group on the default interface. Multicast loopback is
// enabled; a node hears its own advertisements and the transport drops them.
func listen(ctx context.Context, groupAddr *net.UDPAddr) (*net.UDPConn, error) {
	lc := net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			var sockErr error
			if err := c.Control(func(fd uintptr) {
				if sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); sockErr != nil {
					sockErr = fmt.Errorf("set SO_REUSEADDR: %w", sockErr)
					return
				}
				if sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1); sockErr != nil {
					sockErr = fmt.Errorf("set SO_REUSEPORT: %w", sockErr)
				}
			}); err != nil {
				return err
			}

			return sockErr
		},
	}

	pc, err := lc.ListenPacket(ctx, "udp4", fmt.Sprintf(":%d", groupAddr.Port))
	if err != nil {
		return nil, fmt.Errorf("mcast: listen: %w", err)
	}

	conn, ok := pc.(*net.UDPConn)
	if !ok {
		_ = pc.Close()
		return nil, fmt.Errorf("mcast: unexpected packet conn type %T", pc)
	}

	rc, err := conn.SyscallConn()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("mcast: syscall conn: %w", err)
	}

	var joinErr error
	if err := rc.Control(func(fd uintptr) {
		group := groupAddr.IP.To4()
		mreq := &unix.IPMreqn{
			Multiaddr: [4]byte{group[0], group[1], group[2], group[3]},
		}
		if joinErr = unix.SetsockoptIPMreqn(int(fd), unix.IPPROTO_IP, unix.IP_ADD_MEMBERSHIP, mreq); joinErr != nil {
			joinErr = fmt.Errorf("join group %s: %w", groupAddr.IP, joinErr)
			return
		}
		if joinErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_IP, unix.IP_MULTICAST_LOOP, 1); joinErr != nil {
			joinErr = fmt.Errorf("set IP_MULTICAST_LOOP: %w", joinErr)
		}
	}); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("mcast: socket control: %w", err)
	}

	if joinErr != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("mcast: %w", joinErr)
	}

	return conn, nil
}
