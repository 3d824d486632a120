package wire

import (
	"io"
	"strconv"
	"strings"
)

// TextualFramer implements fixed-width decimal length-header framing: a
// `headerLength`-byte ASCII decimal, left padded with zeroString, giving the
// byte length of the codec-encoded payload that follows. A header read that
// returns zero bytes signals end-of-stream.
//
// Grounded on pyserve.socketprotocol.make_string_protocol.
type TextualFramer struct {
	codec        Codec
	headerLength int
	zeroString   string
}

// NewTextualFramer builds a framer once for the given codec and options.
func NewTextualFramer(codec Codec, headerLength int, zeroString string) *TextualFramer {
	return &TextualFramer{codec: codec, headerLength: headerLength, zeroString: zeroString}
}

func (f *TextualFramer) SendMessage(w io.Writer, p Packet) error {
	encoded, err := f.codec.Encode(p)
	if err != nil {
		return err
	}
	header := strings.Repeat(f.zeroString, f.headerLength)[:f.headerLength]
	digits := strconv.Itoa(len(encoded))
	header = header[:f.headerLength-len(digits)] + digits

	if _, err := w.Write([]byte(header)); err != nil {
		return err
	}
	_, err = w.Write(encoded)
	return err
}

func (f *TextualFramer) RecvMessage(r io.Reader) (Packet, error) {
	header := make([]byte, f.headerLength)
	n, err := io.ReadFull(r, header)
	if n == 0 {
		// A zero-byte read is end-of-stream, not an error to report.
		return nil, nil
	}
	if err != nil {
		return nil, nil
	}

	length, err := strconv.Atoi(strings.TrimSpace(string(header)))
	if err != nil {
		return nil, nil
	}

	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, nil
		}
	}

	p, err := f.codec.Decode(payload)
	if err != nil {
		return nil, nil
	}
	return p, nil
}
