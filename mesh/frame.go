package mesh

import (
	"encoding/binary"
	"fmt"
)

// HeaderSize is the fixed size of the frame header in bytes.
const HeaderSize = 8

// MaxPayloadSize is the maximum number of payload bytes in a single frame.
// The header length field is 5 bits wide.
const MaxPayloadSize = 31

// MaxFrameSize is the size of a frame carrying a full payload.
const MaxFrameSize = HeaderSize + MaxPayloadSize

// BroadcastAddress is the destination written into frames whose destination
// is ignored by receivers (Broadcast).
const BroadcastAddress uint16 = 0xFFFF

const (
	lengthMask = 0x1F
	typeShift  = 5
)

// Header is the decoded form of the 8-byte frame header.
type Header struct {
	NetworkID   uint16
	Source      uint16
	Destination uint16
	SequenceID  uint8
	Type        MessageType
	Length      uint8
}

// Frame is a header plus its payload.
//
// A Frame returned by ParseFrame aliases the buffer it was parsed from; the
// payload must be copied if it is retained after the buffer is reused.
type Frame struct {
	Header
	Payload []byte
}

// Size returns the encoded size of the frame.
func (f *Frame) Size() int {
	return HeaderSize + len(f.Payload)
}

// MarshalTo encodes the frame into buf and returns the number of bytes written.
//
// The header Length field is derived from len(Payload); the value stored in
// f.Length is ignored.
func (f *Frame) MarshalTo(buf []byte) (int, error) {
	if len(f.Payload) > MaxPayloadSize {
		return 0, fmt.Errorf("%w: got %d bytes", ErrPayloadTooLarge, len(f.Payload))
	}

	if !f.Type.IsValid() {
		return 0, fmt.Errorf("%w: %d", ErrUnknownType, uint8(f.Type))
	}

	n := f.Size()
	if len(buf) < n {
		return 0, fmt.Errorf("%w: need %d bytes, have %d", ErrShortBuffer, n, len(buf))
	}

	binary.LittleEndian.PutUint16(buf[0:2], f.NetworkID)
	binary.LittleEndian.PutUint16(buf[2:4], f.Source)
	buf[4] = byte(len(f.Payload))&lengthMask | byte(f.Type)<<typeShift
	buf[5] = f.SequenceID
	binary.LittleEndian.PutUint16(buf[6:8], f.Destination)
	copy(buf[HeaderSize:n], f.Payload)

	return n, nil
}

// Pack encodes the frame into a newly allocated slice.
func (f *Frame) Pack() ([]byte, error) {
	buf := make([]byte, f.Size())
	if _, err := f.MarshalTo(buf); err != nil {
		return nil, err
	}

	return buf, nil
}

// ParseFrame decodes a frame from data.
//
// ParseFrame validates:
//   - data holds at least a full header.
//   - the header length field equals the number of bytes after the header.
//   - the type field is one of the five defined message types.
//
// The returned frame's Payload aliases data.
func ParseFrame(data []byte) (Frame, error) {
	var f Frame
	if err := f.unmarshal(data); err != nil {
		return Frame{}, err
	}

	return f, nil
}

func (f *Frame) unmarshal(data []byte) error {
	if len(data) < HeaderSize {
		return fmt.Errorf("%w: %w: got %d bytes", ErrFrameMalformed, ErrFrameTooShort, len(data))
	}

	length := data[4] & lengthMask
	msgType := MessageType(data[4] >> typeShift)

	if int(length) != len(data)-HeaderSize {
		return fmt.Errorf("%w: %w: header says %d, frame carries %d",
			ErrFrameMalformed, ErrLengthMismatch, length, len(data)-HeaderSize)
	}

	if !msgType.IsValid() {
		return fmt.Errorf("%w: %w: %d", ErrFrameMalformed, ErrUnknownType, uint8(msgType))
	}

	f.NetworkID = binary.LittleEndian.Uint16(data[0:2])
	f.Source = binary.LittleEndian.Uint16(data[2:4])
	f.Length = length
	f.Type = msgType
	f.SequenceID = data[5]
	f.Destination = binary.LittleEndian.Uint16(data[6:8])
	f.Payload = data[HeaderSize : HeaderSize+int(length)]

	return nil
}
