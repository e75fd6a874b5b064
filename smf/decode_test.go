package smf

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chunk frames payload with a four-byte tag and a big-endian length.
func chunk(tag string, payload []byte) []byte {
	out := []byte(tag)
	n := len(payload)
	out = append(out, byte(n>>24), byte(n>>16), byte(n>>8), byte(n))
	return append(out, payload...)
}

func headerChunk(format Format, tracks int, ppqn uint16) []byte {
	return chunk("MThd", []byte{
		byte(format >> 8), byte(format),
		byte(tracks >> 8), byte(tracks),
		byte(ppqn >> 8), byte(ppqn),
	})
}

func TestDecodeHeader(t *testing.T) {
	in := bytes.Join([][]byte{
		headerChunk(FormatSimultaneous, 2, 480),
		chunk("MTrk", []byte{0x00, 0xFF, 0x2F, 0x00}),
		chunk("MTrk", []byte{0x00, 0xFF, 0x2F, 0x00}),
	}, nil)

	f, err := Decode(bytes.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, FormatSimultaneous, f.Format)
	assert.Equal(t, uint16(480), f.PPQN)
	require.Len(t, f.Tracks, 2)
	for _, track := range f.Tracks {
		require.Len(t, track.Events, 1)
		assert.Equal(t, KindEndOfTrack, track.Events[0].Msg.Kind())
	}
}

func TestDecodeHeaderBadLength(t *testing.T) {
	in := []byte{'M', 'T', 'h', 'd', 0, 0, 0, 5, 0, 0, 0, 1, 0}
	_, err := Decode(bytes.NewReader(in))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestDecodeSingleFormatTrackCount(t *testing.T) {
	_, err := Decode(bytes.NewReader(headerChunk(FormatSingleTrack, 2, 480)))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestDecodeDuplicateHeader(t *testing.T) {
	in := bytes.Join([][]byte{
		headerChunk(FormatSingleTrack, 1, 480),
		headerChunk(FormatSingleTrack, 1, 480),
	}, nil)
	_, err := Decode(bytes.NewReader(in))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestDecodeTrackBeforeHeader(t *testing.T) {
	in := chunk("MTrk", []byte{0x00, 0xFF, 0x2F, 0x00})
	_, err := Decode(bytes.NewReader(in))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestDecodeUnknownChunkType(t *testing.T) {
	in := bytes.Join([][]byte{
		headerChunk(FormatSingleTrack, 1, 480),
		chunk("XFIR", []byte{0x01, 0x02}),
	}, nil)
	_, err := Decode(bytes.NewReader(in))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestDecodeMissingHeader(t *testing.T) {
	_, err := Decode(bytes.NewReader(nil))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestDecodeFewerTracksThanDeclared(t *testing.T) {
	in := bytes.Join([][]byte{
		headerChunk(FormatSimultaneous, 3, 96),
		chunk("MTrk", []byte{0x00, 0xFF, 0x2F, 0x00}),
	}, nil)

	f, err := Decode(bytes.NewReader(in))
	require.NoError(t, err)
	require.Len(t, f.Tracks, 3)
	assert.Len(t, f.Tracks[0].Events, 1)
	assert.Empty(t, f.Tracks[1].Events)
	assert.Empty(t, f.Tracks[2].Events)
}

func TestDecodeMoreTracksThanDeclared(t *testing.T) {
	in := bytes.Join([][]byte{
		headerChunk(FormatSingleTrack, 1, 96),
		chunk("MTrk", []byte{0x00, 0xFF, 0x2F, 0x00}),
		chunk("MTrk", []byte{0x00, 0xFF, 0x2F, 0x00}),
	}, nil)
	_, err := Decode(bytes.NewReader(in))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestDecodeRunningStatus(t *testing.T) {
	in := bytes.Join([][]byte{
		headerChunk(FormatSingleTrack, 1, 480),
		chunk("MTrk", []byte{
			0x00, 0x91, 0x3C, 0x64,
			0x00, 0x40, 0x5A,
			0x00, 0x43, 0x50,
			0x00, 0xFF, 0x2F, 0x00,
		}),
	}, nil)

	f, err := Decode(bytes.NewReader(in))
	require.NoError(t, err)
	events := f.Tracks[0].Events
	require.Len(t, events, 4)

	want := []NoteOn{
		{Channel: 1, Key: 60, Velocity: 100},
		{Channel: 1, Key: 64, Velocity: 90},
		{Channel: 1, Key: 67, Velocity: 80},
	}
	for i, w := range want {
		on, ok := events[i].Msg.(*NoteOn)
		require.True(t, ok, "event %d", i)
		assert.Equal(t, w, *on, "event %d", i)
	}
}

func TestDecodeRunningStatusWithoutPrior(t *testing.T) {
	in := bytes.Join([][]byte{
		headerChunk(FormatSingleTrack, 1, 480),
		chunk("MTrk", []byte{0x00, 0x3C, 0x64}),
	}, nil)
	_, err := Decode(bytes.NewReader(in))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestDecodeUnknownMetaType(t *testing.T) {
	in := bytes.Join([][]byte{
		headerChunk(FormatSingleTrack, 1, 480),
		chunk("MTrk", []byte{0x00, 0xFF, 0x55, 0x00}),
	}, nil)
	_, err := Decode(bytes.NewReader(in))
	assert.ErrorIs(t, err, ErrUnknownEvent)
}

func TestDecodeHighMetaType(t *testing.T) {
	in := bytes.Join([][]byte{
		headerChunk(FormatSingleTrack, 1, 480),
		chunk("MTrk", []byte{0x00, 0xFF, 0x90, 0x00}),
	}, nil)
	_, err := Decode(bytes.NewReader(in))
	assert.ErrorIs(t, err, ErrUnknownEvent)
}

func TestDecodeTruncatedEvent(t *testing.T) {
	in := bytes.Join([][]byte{
		headerChunk(FormatSingleTrack, 1, 480),
		chunk("MTrk", []byte{0x00, 0x90, 0x3C}),
	}, nil)
	_, err := Decode(bytes.NewReader(in))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestDecodeMetaLengthMismatch(t *testing.T) {
	in := bytes.Join([][]byte{
		headerChunk(FormatSingleTrack, 1, 480),
		chunk("MTrk", []byte{0x00, 0xFF, 0x51, 0x02, 0x07, 0xA1}),
	}, nil)
	_, err := Decode(bytes.NewReader(in))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestDecodeText(t *testing.T) {
	in := bytes.Join([][]byte{
		headerChunk(FormatSingleTrack, 1, 480),
		chunk("MTrk", []byte{
			0x00, 0xFF, 0x03, 0x05, 'i', 'n', 't', 'r', 'o',
			0x00, 0xFF, 0x2F, 0x00,
		}),
	}, nil)

	f, err := Decode(bytes.NewReader(in))
	require.NoError(t, err)
	msg, ok := f.Tracks[0].Events[0].Msg.(*Text)
	require.True(t, ok)
	assert.Equal(t, KindSequenceName, msg.Type)
	assert.Equal(t, "intro", msg.Text)
}

func TestDecodeSysExForms(t *testing.T) {
	in := bytes.Join([][]byte{
		headerChunk(FormatSingleTrack, 1, 480),
		chunk("MTrk", []byte{
			0x00, 0xF0, 0x03, 0x41, 0x10, 0xF7,
			0x00, 0xFF, 0x7F, 0x02, 0x00, 0x41,
			0x00, 0xFF, 0x2F, 0x00,
		}),
	}, nil)

	f, err := Decode(bytes.NewReader(in))
	require.NoError(t, err)
	events := f.Tracks[0].Events
	require.Len(t, events, 3)

	raw, ok := events[0].Msg.(*SysEx)
	require.True(t, ok)
	assert.Equal(t, KindSysEx2, raw.Type)
	assert.Equal(t, []byte{0x41, 0x10, 0xF7}, raw.Data)

	meta, ok := events[1].Msg.(*SysEx)
	require.True(t, ok)
	assert.Equal(t, KindSysEx, meta.Type)
	assert.Equal(t, []byte{0x00, 0x41}, meta.Data)
}

func TestDecodeDeltaTimes(t *testing.T) {
	in := bytes.Join([][]byte{
		headerChunk(FormatSingleTrack, 1, 480),
		chunk("MTrk", []byte{
			0x81, 0x40, 0x90, 0x3C, 0x64,
			0x83, 0x60, 0x80, 0x3C, 0x00,
			0x00, 0xFF, 0x2F, 0x00,
		}),
	}, nil)

	f, err := Decode(bytes.NewReader(in))
	require.NoError(t, err)
	events := f.Tracks[0].Events
	require.Len(t, events, 3)
	assert.Equal(t, uint32(192), events[0].Delta)
	assert.Equal(t, uint32(480), events[1].Delta)
	assert.Equal(t, uint32(0), events[2].Delta)
}
