package wire

import (
	"encoding/binary"
	"io"
)

// BinaryFramer implements fixed 8-byte-header framing: two big-endian
// uint32 fields (length, style) followed by exactly `length` payload bytes.
// style == 0 is a single-chunk frame;
// style >= 1 marks one of a chain of `style` remaining chunks, terminated
// by a frame with style == 1.
//
// Grounded on mini-rpc's protocol.Header/Encode/Decode (fixed header +
// io.ReadFull body read) generalized to the chaining rule from
// pyserve.socketprotocol.make_binary_protocol.
type BinaryFramer struct {
	codec Codec
}

// NewBinaryFramer builds a framer once for the given codec; callers should
// not reconstruct it per message.
func NewBinaryFramer(codec Codec) *BinaryFramer {
	return &BinaryFramer{codec: codec}
}

const binaryHeaderSize = 8 // 2 uint32 fields, big-endian: length, style

func (f *BinaryFramer) SendMessage(w io.Writer, p Packet) error {
	encoded, err := f.codec.Encode(p)
	if err != nil {
		return err
	}

	if len(encoded) <= MaxPacketSize {
		return writeBinaryChunk(w, encoded, 0)
	}

	// Chop into MaxPacketSize chunks, descending style counts, style == 1 on
	// the last chunk.
	chunks := chopBytes(encoded, MaxPacketSize)
	for i := 0; i < len(chunks)-1; i++ {
		if err := writeBinaryChunk(w, chunks[i], len(chunks)-i); err != nil {
			return err
		}
	}
	return writeBinaryChunk(w, chunks[len(chunks)-1], 1)
}

func writeBinaryChunk(w io.Writer, chunk []byte, style int) error {
	header := make([]byte, binaryHeaderSize)
	binary.BigEndian.PutUint32(header[0:4], uint32(len(chunk)))
	binary.BigEndian.PutUint32(header[4:8], uint32(style))
	if _, err := w.Write(header); err != nil {
		return err
	}
	_, err := w.Write(chunk)
	return err
}

func chopBytes(data []byte, size int) [][]byte {
	var chunks [][]byte
	for i := 0; i < len(data); i += size {
		end := i + size
		if end > len(data) {
			end = len(data)
		}
		chunks = append(chunks, data[i:end])
	}
	return chunks
}

func (f *BinaryFramer) RecvMessage(r io.Reader) (Packet, error) {
	length, style, ok := readBinaryHeader(r)
	if !ok {
		return nil, nil
	}

	if style == 0 {
		payload := make([]byte, length)
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, nil
		}
		return f.decodeOrNil(payload), nil
	}

	// style >= 1: read this chunk, then (style-1) more chunks, concatenating
	// payload bytes in receive order until a frame with style == 1 arrives.
	payload := make([]byte, 0, length)
	chunk := make([]byte, length)
	if _, err := io.ReadFull(r, chunk); err != nil {
		return nil, nil
	}
	payload = append(payload, chunk...)

	remaining := style - 1
	for i := 0; i < remaining; i++ {
		length, _, ok := readBinaryHeader(r)
		if !ok {
			return nil, nil
		}
		chunk := make([]byte, length)
		if _, err := io.ReadFull(r, chunk); err != nil {
			return nil, nil
		}
		payload = append(payload, chunk...)
	}
	return f.decodeOrNil(payload), nil
}

// readBinaryHeader reads and unpacks the 8-byte (length, style) header. A
// short or unreadable header is not an error the caller propagates — it is
// the malformed/disconnect signal, reported as ok == false so RecvMessage
// can return a nil packet.
func readBinaryHeader(r io.Reader) (length, style int, ok bool) {
	header := make([]byte, binaryHeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return 0, 0, false
	}
	return int(binary.BigEndian.Uint32(header[0:4])), int(binary.BigEndian.Uint32(header[4:8])), true
}

func (f *BinaryFramer) decodeOrNil(payload []byte) Packet {
	p, err := f.codec.Decode(payload)
	if err != nil {
		return nil
	}
	return p
}
