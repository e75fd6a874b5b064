package smf

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVLQRoundTrip(t *testing.T) {
	cases := []struct {
		value uint32
		size  int
	}{
		{0, 1},
		{127, 1},
		{128, 2},
		{16383, 2},
		{16384, 3},
		{2097151, 3},
		{2097152, 4},
	}

	for _, tc := range cases {
		var buf bytes.Buffer
		writeVLQ(&buf, tc.value)
		assert.Equal(t, tc.size, buf.Len(), "encoded size of %d", tc.value)

		got, err := readVLQ(bytes.NewReader(buf.Bytes()))
		require.NoError(t, err)
		assert.Equal(t, tc.value, got, "round trip of %d", tc.value)
	}
}

func TestVLQKnownBytes(t *testing.T) {
	cases := []struct {
		value uint32
		want  []byte
	}{
		{0x00, []byte{0x00}},
		{0x40, []byte{0x40}},
		{0x7F, []byte{0x7F}},
		{0x80, []byte{0x81, 0x00}},
		{0x2000, []byte{0xC0, 0x00}},
		{0x0FFFFFFF, []byte{0xFF, 0xFF, 0xFF, 0x7F}},
		{0xFFFFFFFF, []byte{0x8F, 0xFF, 0xFF, 0xFF, 0x7F}},
	}

	for _, tc := range cases {
		var buf bytes.Buffer
		writeVLQ(&buf, tc.value)
		assert.Equal(t, tc.want, buf.Bytes(), "encoding of %#x", tc.value)

		got, err := readVLQ(bytes.NewReader(tc.want))
		require.NoError(t, err)
		assert.Equal(t, tc.value, got)
	}
}

func TestVLQTruncated(t *testing.T) {
	for _, in := range [][]byte{{}, {0x81}, {0x81, 0x80}} {
		_, err := readVLQ(bytes.NewReader(in))
		assert.ErrorIs(t, err, ErrMalformed, "input % x", in)
	}
}
