package smf

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"go-midifile/debug"
)

var (
	headerTag = [4]byte{'M', 'T', 'h', 'd'}
	trackTag  = [4]byte{'M', 'T', 'r', 'k'}
)

const headerLen = 6

// Decode reads a complete SMF from r. The header chunk must come first;
// any decode failure returns a nil file, never a partial one. A file that
// ends before all declared tracks appear keeps the missing tracks empty.
func Decode(r io.Reader) (*File, error) {
	var file *File
	next := 0 // index of the next track chunk

	for {
		var tag [4]byte
		if _, err := io.ReadFull(r, tag[:]); err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("%w: truncated chunk tag", ErrMalformed)
		}

		var length uint32
		if err := binary.Read(r, binary.BigEndian, &length); err != nil {
			return nil, fmt.Errorf("%w: truncated chunk length", ErrMalformed)
		}

		switch tag {
		case headerTag:
			if file != nil {
				return nil, fmt.Errorf("%w: duplicate header chunk", ErrMalformed)
			}

			f, err := decodeHeader(r, length)
			if err != nil {
				return nil, err
			}
			file = f

		case trackTag:
			if file == nil {
				return nil, fmt.Errorf("%w: track chunk before header", ErrMalformed)
			}
			if next >= len(file.Tracks) {
				return nil, fmt.Errorf("%w: more tracks than specified in header", ErrMalformed)
			}

			data := make([]byte, length)
			if _, err := io.ReadFull(r, data); err != nil {
				return nil, fmt.Errorf("%w: truncated track chunk", ErrMalformed)
			}

			debug.Log("smf", "decoding track %d (%d bytes)", next, length)
			track, err := decodeTrack(data)
			if err != nil {
				return nil, fmt.Errorf("track %d: %w", next, err)
			}
			file.Tracks[next] = track
			next++

		default:
			return nil, fmt.Errorf("%w: unknown chunk type %q", ErrMalformed, tag[:])
		}
	}

	if file == nil {
		return nil, fmt.Errorf("%w: no header chunk", ErrMalformed)
	}
	return file, nil
}

func decodeHeader(r io.Reader, length uint32) (*File, error) {
	if length != headerLen {
		return nil, fmt.Errorf("%w: header length is %d, expected %d", ErrMalformed, length, headerLen)
	}

	var fields struct {
		Format uint16
		Tracks uint16
		PPQN   uint16
	}
	if err := binary.Read(r, binary.BigEndian, &fields); err != nil {
		return nil, fmt.Errorf("%w: truncated header", ErrMalformed)
	}

	if Format(fields.Format) == FormatSingleTrack && fields.Tracks != 1 {
		return nil, fmt.Errorf("%w: single-track format with %d tracks", ErrMalformed, fields.Tracks)
	}

	file := &File{
		Format: Format(fields.Format),
		PPQN:   fields.PPQN,
		Tracks: make([]*Track, fields.Tracks),
	}
	for i := range file.Tracks {
		file.Tracks[i] = &Track{}
	}
	return file, nil
}

// decodeTrack parses one track chunk payload: a sequence of VLQ delta-time
// and event pairs. A data byte in status position reuses the last explicit
// channel-voice status (running status); the byte is pushed back so the
// per-kind decoder sees the full payload.
func decodeTrack(data []byte) (*Track, error) {
	track := &Track{}
	r := bytes.NewReader(data)

	var runningStatus byte
	for r.Len() > 0 {
		delta, err := readVLQ(r)
		if err != nil {
			return nil, err
		}

		status, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("%w: missing status byte", ErrMalformed)
		}

		var kind Kind
		code := status
		if status == 0xFF {
			metaType, err := r.ReadByte()
			if err != nil {
				return nil, fmt.Errorf("%w: missing meta type", ErrMalformed)
			}
			if !Kind(metaType).meta() {
				return nil, fmt.Errorf("%w: meta type %#02x", ErrUnknownEvent, metaType)
			}
			kind = Kind(metaType)
			code = metaType
		} else {
			if status < 0x80 {
				if runningStatus == 0 {
					return nil, fmt.Errorf("%w: data byte %#02x with no running status", ErrMalformed, status)
				}
				r.UnreadByte()
				status = runningStatus
				code = status
			} else {
				runningStatus = status
			}
			kind = Kind(status & 0xF0)
		}

		spec, ok := registry[kind]
		if !ok {
			return nil, fmt.Errorf("%w: %#02x", ErrUnknownEvent, code)
		}

		msg, err := spec.decode(r, code)
		if err != nil {
			return nil, err
		}
		track.Events = append(track.Events, &Event{Delta: delta, Msg: msg})
	}

	return track, nil
}
