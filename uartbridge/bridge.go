// Package uartbridge exposes a mesh node over a line-oriented serial link.
//
// Each command is one line of ASCII text. Numbers are decimal or 0x-prefixed
// hexadecimal; payloads are hexadecimal and may be omitted for an empty
// payload.
//
//	B <payload>            broadcast
//	G <group> <payload>    group broadcast
//	S <dst> <payload>      stateless unicast
//	R <dst> <payload>      reliable unicast, answered with "OK <seq>"
//	J <group>              join group
//	L <group>              leave group
//
// Every command is answered with "OK" or "ERR <reason>". Messages delivered
// to the node are written as "M <src> <payload>".
package uartbridge

import (
	"bufio"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/arloliu/go-advmesh/logger"
	"github.com/arloliu/go-advmesh/node"
)

// maxLineSize bounds a command line: a command, two numbers and a hex payload.
const maxLineSize = 256

var (
	// ErrUnknownCommand is reported for an unrecognized command letter.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrSyntax is reported for a command with missing or malformed arguments.
	ErrSyntax = errors.New("syntax error")
)

// Sender is the set of mesh operations the bridge can issue. *node.Node
// implements it.
type Sender interface {
	Broadcast(ctx context.Context, payload []byte) error
	BroadcastGroup(ctx context.Context, group uint16, payload []byte) error
	SendStateless(ctx context.Context, destination uint16, payload []byte) error
	SendStateful(ctx context.Context, destination uint16, payload []byte) (uint8, error)
	JoinGroup(ctx context.Context, group uint16) error
	LeaveGroup(ctx context.Context, group uint16) error
}

var _ Sender = (*node.Node)(nil)

// Bridge translates serial lines into mesh operations, and delivered
// messages into serial lines.
type Bridge struct {
	rw     io.ReadWriter
	logger logger.Logger

	mu sync.Mutex // serializes writes
}

// New creates a bridge over rw.
func New(rw io.ReadWriter, l logger.Logger) *Bridge {
	if l == nil {
		l = logger.GetLogger()
	}

	return &Bridge{rw: rw, logger: l}
}

// Deliver writes a delivered message to the link. It can be installed as a
// node handler.
func (b *Bridge) Deliver(msg node.Message) {
	if err := b.writeLine(fmt.Sprintf("M %d %s", msg.Source, hex.EncodeToString(msg.Payload))); err != nil {
		b.logger.Warn("uartbridge: failed to write message", "source", msg.Source, "error", err)
	}
}

// Serve reads commands until the link reaches EOF, a read fails or ctx is
// done, and executes them on sender. A blocked read is only interrupted by
// closing the link. Serve returns nil on EOF.
func (b *Bridge) Serve(ctx context.Context, sender Sender) error {
	scanner := bufio.NewScanner(b.rw)
	scanner.Buffer(make([]byte, maxLineSize), maxLineSize)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		resp := b.execute(ctx, sender, line)
		if err := b.writeLine(resp); err != nil {
			return fmt.Errorf("uartbridge: write response: %w", err)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("uartbridge: read: %w", err)
	}

	return nil
}

// execute runs one command line and returns the response line.
func (b *Bridge) execute(ctx context.Context, sender Sender, line string) string {
	fields := strings.Fields(line)
	cmd, args := strings.ToUpper(fields[0]), fields[1:]

	var (
		seq uint8
		err error
	)

	switch cmd {
	case "B":
		var payload []byte
		if payload, err = parsePayload(args, 0); err == nil {
			err = sender.Broadcast(ctx, payload)
		}

	case "G", "S", "R":
		var (
			addr    uint16
			payload []byte
		)
		if addr, err = parseAddr(args, 0); err == nil {
			payload, err = parsePayload(args, 1)
		}
		if err != nil {
			break
		}

		switch cmd {
		case "G":
			err = sender.BroadcastGroup(ctx, addr, payload)
		case "S":
			err = sender.SendStateless(ctx, addr, payload)
		default:
			seq, err = sender.SendStateful(ctx, addr, payload)
			if err == nil {
				return fmt.Sprintf("OK %d", seq)
			}
		}

	case "J", "L":
		var group uint16
		if group, err = parseAddr(args, 0); err != nil {
			break
		}
		if len(args) > 1 {
			err = fmt.Errorf("%w: unexpected argument %q", ErrSyntax, args[1])
			break
		}

		if cmd == "J" {
			err = sender.JoinGroup(ctx, group)
		} else {
			err = sender.LeaveGroup(ctx, group)
		}

	default:
		err = fmt.Errorf("%w %q", ErrUnknownCommand, fields[0])
	}

	if err != nil {
		b.logger.Debug("uartbridge: command failed", "command", line, "error", err)
		return "ERR " + err.Error()
	}

	return "OK"
}

func (b *Bridge) writeLine(line string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	_, err := io.WriteString(b.rw, line+"\n")

	return err
}

func parseAddr(args []string, i int) (uint16, error) {
	if len(args) <= i {
		return 0, fmt.Errorf("%w: missing address", ErrSyntax)
	}

	v, err := strconv.ParseUint(args[i], 0, 16)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid address %q", ErrSyntax, args[i])
	}

	return uint16(v), nil
}

// parsePayload decodes the optional hex payload at args[i], which must be
// the last argument.
func parsePayload(args []string, i int) ([]byte, error) {
	if len(args) <= i {
		return nil, nil
	}

	if len(args) > i+1 {
		return nil, fmt.Errorf("%w: unexpected argument %q", ErrSyntax, args[i+1])
	}

	payload, err := hex.DecodeString(args[i])
	if err != nil {
		return nil, fmt.Errorf("%w: invalid payload: %w", ErrSyntax, err)
	}

	return payload, nil
}
