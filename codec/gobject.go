package codec

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"netmsg/wire"
)

// GobjectCodec is the binary codec shipped as "gobject" — a native-object
// serializer in the spirit of pyserve's pickleprotocol.py, which wraps
// Python's pickle module. encoding/gob is Go's own native object wire
// format, the closest available analogue, and is never a member of the
// default protocol list (it must be requested by name): an opt-in codec
// exactly like the original's pickle plugin.
//
// Like pickle, gob can only encode concrete types it has seen registered
// for interface values. Packets carry only the closed set of leaf types a
// Packet may hold, which are registered below at init time; any other
// concrete type reaching Encode (e.g. a channel or func value slipped into a
// packet by a careless caller) fails to encode and is surfaced as
// ErrPacketMalformed — the one codec that rejects arbitrary references as
// malformed at encode time in a way visible to the client.
type GobjectCodec struct{}

func init() {
	gob.Register(int64(0))
	gob.Register(int(0))
	gob.Register(float64(0))
	gob.Register("")
	gob.Register(false)
	gob.Register([]any{})
	gob.Register(map[string]any{})
}

func (c *GobjectCodec) Encode(p wire.Packet) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(p); err != nil {
		return nil, fmt.Errorf("%w: %v", wire.ErrPacketMalformed, err)
	}
	return buf.Bytes(), nil
}

func (c *GobjectCodec) Decode(data []byte) (wire.Packet, error) {
	var p wire.Packet
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&p); err != nil {
		return nil, fmt.Errorf("%w: %v", wire.ErrPacketMalformed, err)
	}
	return p, nil
}

func (c *GobjectCodec) Name() string { return "gobject" }
