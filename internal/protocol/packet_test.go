package protocol

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/SkynetNext/flow-gateway/internal/buffer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeader_WireLayout(t *testing.T) {
	var w bytes.Buffer
	require.NoError(t, WriteHeader(&w, Header{Length: 0x0102, MessageID: MessageFlowClose, FlowID: 0xA0B0C0D0}))
	assert.Equal(t, []byte{0x02, 0x01, 0x02, 0x00, 0xD0, 0xC0, 0xB0, 0xA0}, w.Bytes())

	h, err := ReadHeader(&w)
	require.NoError(t, err)
	assert.Equal(t, Header{Length: 0x0102, MessageID: MessageFlowClose, FlowID: 0xA0B0C0D0}, h)
}

func TestReadFrame(t *testing.T) {
	var w bytes.Buffer
	require.NoError(t, WriteFrame(&w, MessageData, 42, []byte("hello")))
	require.NoError(t, WriteFrame(&w, MessageFlowClose, 42, nil))

	h, body, err := ReadFrame(&w, 1024)
	require.NoError(t, err)
	assert.Equal(t, Header{Length: 5, MessageID: MessageData, FlowID: 42}, h)
	assert.Equal(t, "hello", string(body))
	buffer.Put(body)

	h, body, err = ReadFrame(&w, 1024)
	require.NoError(t, err)
	assert.Equal(t, MessageFlowClose, h.MessageID)
	assert.Nil(t, body)

	_, _, err = ReadFrame(&w, 1024)
	assert.ErrorIs(t, err, io.EOF)
}

func TestReadFrame_TooLarge(t *testing.T) {
	var w bytes.Buffer
	require.NoError(t, WriteFrame(&w, MessageData, 1, make([]byte, 64)))

	h, _, err := ReadFrame(&w, 32)
	assert.True(t, errors.Is(err, ErrMessageTooLarge))
	assert.Equal(t, uint16(64), h.Length)
}

func TestReadFrame_TruncatedBody(t *testing.T) {
	var w bytes.Buffer
	require.NoError(t, WriteHeader(&w, Header{Length: 10, MessageID: MessageData, FlowID: 1}))
	w.WriteString("abc")

	_, _, err := ReadFrame(&w, 0)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestWriteFrame_TooLarge(t *testing.T) {
	err := WriteFrame(io.Discard, MessageData, 1, make([]byte, 0x10000))
	assert.ErrorIs(t, err, ErrMessageTooLarge)
}
