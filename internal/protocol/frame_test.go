package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustSerialize(t *testing.T, p Packet) []byte {
	t.Helper()
	data, err := Serialize(p)
	require.NoError(t, err)
	return data
}

func TestFrameReaderDrainsWholePackets(t *testing.T) {
	packets := []Packet{
		&LoginPacket{Username: "alice", Password: "hunter2"},
		&HeartbeatPacket{},
		&MessagePacket{Username: "alice", Message: "hello"},
		&ResponsePacket{Code: ResponseOK},
		&LogoutPacket{},
	}

	var stream []byte
	for _, p := range packets {
		stream = append(stream, mustSerialize(t, p)...)
	}
	tail := mustSerialize(t, &MessagePacket{Username: "bob", Message: "partial"})[:5]
	stream = append(stream, tail...)

	var reader FrameReader
	reader.Feed(stream)

	for _, want := range packets {
		got, err := reader.Next()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	got, err := reader.Next()
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, len(tail), reader.Buffered())
}

func TestFrameReaderSplitInvariance(t *testing.T) {
	packets := []Packet{
		&MessagePacket{Username: "alice", Message: "one"},
		&ResponsePacket{Code: ResponseTakenUsername},
		&MessagePacket{Message: "system notice"},
	}
	var stream []byte
	for _, p := range packets {
		stream = append(stream, mustSerialize(t, p)...)
	}

	// Feeding one byte at a time must produce the same packet sequence as
	// feeding the whole stream at once.
	var reader FrameReader
	var got []Packet
	for _, b := range stream {
		reader.Feed([]byte{b})
		for {
			packet, err := reader.Next()
			require.NoError(t, err)
			if packet == nil {
				break
			}
			got = append(got, packet)
		}
	}

	assert.Equal(t, packets, got)
	assert.Zero(t, reader.Buffered())
}

func TestFrameReaderUnknownTypeIsFatal(t *testing.T) {
	var reader FrameReader
	reader.Feed([]byte{ProtocolVersion, 0x42})

	packet, err := reader.Next()
	require.NoError(t, err)
	assert.Nil(t, packet)

	reader.Feed([]byte{0x00, 0x00})
	_, err = reader.Next()
	var unknown *UnknownPacketError
	require.ErrorAs(t, err, &unknown)
	assert.True(t, IsFatal(err))
}
