package smf

import (
	"bytes"
	"fmt"
)

// readVLQ decodes one variable-length quantity: big-endian base 128, seven
// payload bits per byte, high bit set on every byte except the last. There
// is no cap on the encoded length; values past 32 bits wrap in the
// accumulator.
func readVLQ(r *bytes.Reader) (uint32, error) {
	var value uint32
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, fmt.Errorf("%w: truncated variable-length quantity", ErrMalformed)
		}

		value = value*128 + uint32(b&0x7F)
		if b < 0x80 {
			return value, nil
		}
	}
}

// writeVLQ appends the minimal variable-length encoding of value. A uint32
// needs at most five bytes.
func writeVLQ(buf *bytes.Buffer, value uint32) {
	var scratch [5]byte

	n := 1
	for v := value; v >= 128; v /= 128 {
		n++
	}

	scratch[n-1] = byte(value & 0x7F)
	for i := n - 2; i >= 0; i-- {
		value /= 128
		scratch[i] = byte(value&0x7F) | 0x80
	}

	buf.Write(scratch[:n])
}
