// Package mesh implements the transport layer of a flooding-style mesh that runs
// on top of a short-range broadcast medium (periodic advertisement packets).
//
// Devices never hold a connection to each other. Every message is a single
// frame handed to the host's advertise primitive, and every frame heard on the
// medium is handed back to [Transport.ProcessIncoming].
//
// # Delivery Semantics
//
//   - Broadcast: every device on the same network receives the frame.
//   - GroupBroadcast: only devices that joined the destination group receive it.
//   - Stateless: unreliable unicast to a single device.
//   - Stateful: reliable unicast; the receiver answers with a StatefulAck and the
//     sender re-advertises the frame until the ACK arrives or the retry limit
//     is reached.
//
// # Wire Format
//
// A frame is an 8-byte little-endian header followed by 0–31 payload bytes:
//
//	[NetworkID(2)][Source(2)][Length:5|Type:3 (1)][SequenceID(1)][Destination(2)][Payload(0–31)]
//
// # Execution Model
//
// A Transport is driven by a single cooperative execution context. Inbound
// frames, outbound sends and [Transport.PeriodicTask] must never run
// concurrently; the host serializes them. All tables are allocated once in
// [NewTransport] and never grow afterwards.
//
// The node package wraps a Transport with a goroutine-based dispatcher for hosts
// that deliver events from several goroutines.
package mesh
