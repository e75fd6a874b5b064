// Package smf reads, writes, and manipulates Standard MIDI Files: a chunked
// binary container holding one or more tracks of delta-time-tagged events.
// Decoding produces a File whose tracks own their events; the player package
// consumes the same tree for playback and time mapping.
package smf

import (
	"errors"
	"os"
)

// Format is the SMF header's file format word.
type Format uint16

const (
	FormatSingleTrack  Format = 0
	FormatSimultaneous Format = 1
	FormatSequential   Format = 2
)

var (
	ErrMalformed        = errors.New("malformed midi data")
	ErrUnknownEvent     = errors.New("unknown event type")
	ErrUnsupportedWrite = errors.New("event type does not support writing")
	ErrNoKeySignature   = errors.New("file has no key signature")
	ErrModeMismatch     = errors.New("cannot transpose between major and minor")
)

// Event pairs a delta-time (ticks since the previous event in the same
// track) with its decoded payload.
type Event struct {
	Delta uint32
	Msg   Message
}

// Track is an ordered sequence of events. Order is playback order.
type Track struct {
	Events []*Event
}

// File is a fully decoded Standard MIDI File.
type File struct {
	Format Format
	PPQN   uint16 // pulses (ticks) per quarter note
	Tracks []*Track
}

// Open reads and decodes the SMF at path.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Decode(f)
}

// Save encodes the file to path, replacing any existing file.
func (f *File) Save(path string) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := f.Encode(out); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
