package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/SkynetNext/flow-gateway/internal/buffer"
)

// HeaderSize is the size of a frame header (8 bytes)
const HeaderSize = 8

// Message IDs understood by the gateway. Any other ID is counted as data.
const (
	// MessageData carries an opaque payload on a flow
	MessageData uint16 = 1

	// MessageFlowClose ends a flow; the body is ignored
	MessageFlowClose uint16 = 2
)

// Frame layout (Little Endian):
//
//	Offset  Size    Type      Description
//	0-1     2       uint16    length - body length, header excluded
//	2-3     2       uint16    messageId - MessageData, MessageFlowClose, ...
//	4-7     4       uint32    flowId - client-chosen flow identifier
//
// Full frame:
//
//	[Header (8 bytes)] + [Body (length bytes)]
//
// A client may interleave frames of many flows on one connection. The
// gateway keys flows by (remote address, flowId).

// Header is a decoded frame header
type Header struct {
	Length    uint16 // Body length (excluding header)
	MessageID uint16
	FlowID    uint32
}

var (
	// ErrMessageTooLarge is returned when a body exceeds the configured maximum
	ErrMessageTooLarge = errors.New("message size exceeds maximum allowed")
)

// ReadHeader reads one 8-byte header in a single ReadFull
func ReadHeader(r io.Reader) (Header, error) {
	var buf [HeaderSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return Header{}, err
	}
	return Header{
		Length:    binary.LittleEndian.Uint16(buf[0:2]),
		MessageID: binary.LittleEndian.Uint16(buf[2:4]),
		FlowID:    binary.LittleEndian.Uint32(buf[4:8]),
	}, nil
}

// WriteHeader writes h as 8 bytes in one Write
func WriteHeader(w io.Writer, h Header) error {
	var buf [HeaderSize]byte
	binary.LittleEndian.PutUint16(buf[0:2], h.Length)
	binary.LittleEndian.PutUint16(buf[2:4], h.MessageID)
	binary.LittleEndian.PutUint32(buf[4:8], h.FlowID)
	_, err := w.Write(buf[:])
	return err
}

// WriteFrame writes a header for body followed by body
func WriteFrame(w io.Writer, messageID uint16, flowID uint32, body []byte) error {
	if len(body) > 0xFFFF {
		return fmt.Errorf("%w: %d bytes (max: %d)", ErrMessageTooLarge, len(body), 0xFFFF)
	}
	buf := make([]byte, HeaderSize+len(body))
	binary.LittleEndian.PutUint16(buf[0:2], uint16(len(body)))
	binary.LittleEndian.PutUint16(buf[2:4], messageID)
	binary.LittleEndian.PutUint32(buf[4:8], flowID)
	copy(buf[HeaderSize:], body)
	_, err := w.Write(buf)
	return err
}

// ReadFrame reads a complete frame. The body is borrowed from the buffer
// pool; the caller must hand it back with buffer.Put once done with it.
// A zero-length body is returned as nil.
func ReadFrame(r io.Reader, maxMessageSize int) (Header, []byte, error) {
	h, err := ReadHeader(r)
	if err != nil {
		return Header{}, nil, err
	}

	// Validate message size to prevent DoS
	if maxMessageSize > 0 && int(h.Length) > maxMessageSize {
		return h, nil, fmt.Errorf("%w: %d bytes (max: %d)", ErrMessageTooLarge, h.Length, maxMessageSize)
	}
	if h.Length == 0 {
		return h, nil, nil
	}

	body := buffer.Get(int(h.Length))
	if _, err := io.ReadFull(r, body); err != nil {
		buffer.Put(body)
		return h, nil, err
	}
	return h, body, nil
}
