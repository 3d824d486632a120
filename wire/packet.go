// Package wire defines the packet type, the codec contract, and the two
// framing strategies (binary length-prefixed, textual fixed-width-prefixed)
// that every connection in netmsg speaks.
//
// A Codec only knows how to turn a Packet into bytes and back; a Framer
// wraps a Codec with the on-wire chunking rules so callers read and write
// whole packets without worrying about TCP's sticky-packet problem.
package wire

import "errors"

// Packet is the top-level message unit exchanged between client and server.
// Its values are drawn from a closed set when non-nil: {nil, bool, int64,
// float64, string, []any, map[string]any}.
type Packet = map[string]any

// ErrPacketMalformed is returned by a Codec's Encode when the caller handed
// it a value it cannot serialize, and is the condition a Decode failure on
// the receive path is silently converted to (a nil packet plus a disconnect
// sentinel — it is never raised to a receive-path caller).
var ErrPacketMalformed = errors.New("wire: packet malformed")

// MaxPacketSize is the largest single-chunk payload the binary framer will
// write before switching to chained frames.
const MaxPacketSize = 8_000_000_000
