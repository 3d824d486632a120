package codec

import (
	"encoding/json"
	"fmt"

	"netmsg/wire"
)

// JSONCodec is the textual codec shipped as "json". It is the fallback
// entry in the default protocol list ["msgpack", "json"].
//
// Grounded on mini-rpc/codec/json_codec.go, generalized from RPCMessage to
// a bare wire.Packet.
type JSONCodec struct{}

func (c *JSONCodec) Encode(p wire.Packet) ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", wire.ErrPacketMalformed, err)
	}
	return data, nil
}

func (c *JSONCodec) Decode(data []byte) (wire.Packet, error) {
	var p wire.Packet
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", wire.ErrPacketMalformed, err)
	}
	return p, nil
}

func (c *JSONCodec) Name() string { return "json" }
