package wire

import "io"

// Codec serializes and deserializes a Packet. Implementations must return
// ErrPacketMalformed (wrapped) when a value cannot be represented on the
// wire — Decode malformed is reported through this same error to Framer,
// which converts it into a nil packet rather than propagating it further.
type Codec interface {
	Encode(p Packet) ([]byte, error)
	Decode(data []byte) (Packet, error)
	// Name is the lowercase logical name this codec is registered under,
	// e.g. "json" or "msgpack".
	Name() string
}

// Framer is the capability set a Connection Worker and a Client actually
// use: send and receive whole packets over a socket, with framing already
// applied. Binary and textual framing are the two concrete variants; both
// are built once per Codec (not reconstructed per call).
type Framer interface {
	SendMessage(w io.Writer, p Packet) error
	RecvMessage(r io.Reader) (Packet, error)
}
