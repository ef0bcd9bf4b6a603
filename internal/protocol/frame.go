package protocol

// FrameReader turns a monotonically growing byte buffer into a sequence of
// whole packets. Bytes are only consumed once a complete packet is available;
// a partial header or payload stays buffered for the next Feed.
type FrameReader struct {
	buf []byte
}

// Feed appends raw bytes from the stream to the buffer.
func (r *FrameReader) Feed(data []byte) {
	r.buf = append(r.buf, data...)
}

// Next extracts the first complete packet from the buffer, or returns
// (nil, nil) when more bytes are needed. Any other error is fatal for the
// stream and the connection must be closed.
func (r *FrameReader) Next() (Packet, error) {
	if len(r.buf) < HeaderSize {
		return nil, nil
	}

	packetType, payloadLength, err := DecodeHeader(r.buf)
	if err != nil {
		return nil, err
	}

	total := HeaderSize + payloadLength
	if len(r.buf) < total {
		return nil, nil
	}

	packet, err := FromPayload(packetType, r.buf[HeaderSize:total])
	if err != nil {
		return nil, err
	}

	r.buf = r.buf[total:]
	return packet, nil
}

// Buffered returns the number of unconsumed bytes.
func (r *FrameReader) Buffered() int { return len(r.buf) }
