package smf

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// Encode writes the file as SMF bytes. Every event is written with its
// full status byte; running-status compression is never emitted. Each
// track is buffered first so the chunk length can be written ahead of it.
func (f *File) Encode(w io.Writer) error {
	if _, err := w.Write(headerTag[:]); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, uint32(headerLen)); err != nil {
		return err
	}

	header := []uint16{uint16(f.Format), uint16(len(f.Tracks)), f.PPQN}
	if err := binary.Write(w, binary.BigEndian, header); err != nil {
		return err
	}

	for i, track := range f.Tracks {
		var buf bytes.Buffer
		for _, ev := range track.Events {
			writeVLQ(&buf, ev.Delta)

			spec, ok := registry[ev.Msg.Kind()]
			if !ok {
				return fmt.Errorf("track %d: %w: %#02x", i, ErrUnknownEvent, byte(ev.Msg.Kind()))
			}
			if err := spec.encode(&buf, ev.Msg); err != nil {
				return fmt.Errorf("track %d: %w", i, err)
			}
		}

		if _, err := w.Write(trackTag[:]); err != nil {
			return err
		}
		if err := binary.Write(w, binary.BigEndian, uint32(buf.Len())); err != nil {
			return err
		}
		if _, err := w.Write(buf.Bytes()); err != nil {
			return err
		}
	}

	return nil
}
