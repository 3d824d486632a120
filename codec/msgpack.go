package codec

import (
	"bytes"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"netmsg/wire"
)

// MsgpackCodec is the binary codec shipped as "msgpack", the default
// protocol.
//
// Grounded on sadewadee-maboo/internal/protocol/msgpack.go, which wraps the
// same github.com/vmihailenco/msgpack/v5 library for the same
// Marshal/Unmarshal pair.
type MsgpackCodec struct{}

func (c *MsgpackCodec) Encode(p wire.Packet) ([]byte, error) {
	data, err := msgpack.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", wire.ErrPacketMalformed, err)
	}
	return data, nil
}

func (c *MsgpackCodec) Decode(data []byte) (wire.Packet, error) {
	var p wire.Packet
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.UseLooseInterfaceDecoding(true) // decode ints as int64, not width-narrowed int8/int16/int32
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("%w: %v", wire.ErrPacketMalformed, err)
	}
	return p, nil
}

func (c *MsgpackCodec) Name() string { return "msgpack" }
