package rcon

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// Wire layout, little-endian:
//
//	offset 0, 4 bytes  size = total frame length - 4
//	offset 4, 4 bytes  id
//	offset 8, 4 bytes  type
//	offset 12          body (ASCII)
//	last 2 bytes       terminator, both zero
const (
	// sizeFieldLen is the width of the leading size field, which the
	// declared size does not count.
	sizeFieldLen = 4
	// packetOverhead is what the size field adds over the body length:
	// id(4) + type(4) + terminator(2).
	packetOverhead = 10
	// MinFrameSize is the wire length of a packet with an empty body.
	MinFrameSize = 14
)

// Encode serializes pkt into one complete wire frame. The input is assumed
// well formed (ASCII body, no NUL); Encode itself cannot fail.
func Encode(pkt *Packet) []byte {
	size := len(pkt.Body) + packetOverhead
	buf := make([]byte, sizeFieldLen+size)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(size))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(pkt.ID))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(pkt.Type))
	copy(buf[12:], pkt.Body)
	// trailing two bytes stay zero: the terminator
	return buf
}

// Decode parses one complete frame. Buffers shorter than MinFrameSize or
// with a size field disagreeing with the actual frame length fail with
// ErrMalformedFrame; Decode never reads past the buffer.
func Decode(frame []byte) (*Packet, error) {
	if len(frame) < MinFrameSize {
		return nil, errors.Wrapf(ErrMalformedFrame,
			"frame too short: %d bytes (need at least %d)", len(frame), MinFrameSize)
	}

	size := int32(binary.LittleEndian.Uint32(frame[0:4]))
	if int(size) != len(frame)-sizeFieldLen {
		return nil, errors.Wrapf(ErrMalformedFrame,
			"declared size %d does not match frame length %d", size, len(frame))
	}

	return &Packet{
		ID:   int32(binary.LittleEndian.Uint32(frame[4:8])),
		Type: int32(binary.LittleEndian.Uint32(frame[8:12])),
		Body: string(frame[12 : len(frame)-2]),
	}, nil
}

// ReadFrame reads exactly one wire frame from r. It first reads the size
// field, then the declared remainder, so a frame split across several TCP
// segments is reassembled and two back-to-back frames are never merged.
// Frames whose declared size is below the protocol minimum fail with
// ErrMalformedFrame; frames longer than max bytes fail with
// ErrFrameTooLarge before any allocation.
func ReadFrame(r io.Reader, max int) ([]byte, error) {
	var head [sizeFieldLen]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return nil, err
	}

	size := int(int32(binary.LittleEndian.Uint32(head[:])))
	if size < packetOverhead {
		return nil, errors.Wrapf(ErrMalformedFrame, "declared size %d below minimum %d", size, packetOverhead)
	}
	if size+sizeFieldLen > max {
		return nil, errors.Wrapf(ErrFrameTooLarge, "declared size %d exceeds limit %d", size, max)
	}

	frame := make([]byte, sizeFieldLen+size)
	copy(frame, head[:])
	if _, err := io.ReadFull(r, frame[sizeFieldLen:]); err != nil {
		return nil, err
	}
	return frame, nil
}

// ResolvePacket normalizes either representation of a packet to the decoded
// form: pkt wins when both are given, otherwise the frame is decoded.
func ResolvePacket(pkt *Packet, frame []byte) (*Packet, error) {
	if pkt != nil {
		return pkt, nil
	}
	if frame == nil {
		return nil, errors.Wrap(ErrMalformedFrame, "neither packet nor frame given")
	}
	return Decode(frame)
}

// ResolveFrame is the encoding counterpart of ResolvePacket: it returns the
// raw frame as-is when given, otherwise encodes the packet.
func ResolveFrame(pkt *Packet, frame []byte) ([]byte, error) {
	if frame != nil {
		return frame, nil
	}
	if pkt == nil {
		return nil, errors.Wrap(ErrMalformedFrame, "neither packet nor frame given")
	}
	return Encode(pkt), nil
}
