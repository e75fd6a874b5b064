package smf

import (
	"fmt"
	"strings"
)

// KeySignature mode values.
const (
	Major uint8 = 0
	Minor uint8 = 1
)

// Key identifies a key signature by its sharp/flat count and mode.
type Key struct {
	SharpsFlats int8
	Mode        uint8
}

// String returns the key's label from the transposition table, or "?" for
// a combination the table does not know.
func (k Key) String() string {
	if info := lookupKey(k); info != nil {
		return info.label
	}
	return "?"
}

// keyInfo ties a key to the pitch-class offset used for transposition.
type keyInfo struct {
	key    Key
	offset int8
	label  string
}

// keyTable covers the 15 sharp/flat counts in both modes. Offsets are
// semitone positions of the tonic within the octave.
var keyTable = [30]keyInfo{
	{Key{7, Major}, 1, "C# MAJ"},
	{Key{6, Major}, 6, "F# MAJ"},
	{Key{5, Major}, 11, "B MAJ"},
	{Key{4, Major}, 4, "E MAJ"},
	{Key{3, Major}, 9, "A MAJ"},
	{Key{2, Major}, 2, "D MAJ"},
	{Key{1, Major}, 7, "G MAJ"},
	{Key{0, Major}, 0, "C MAJ"},
	{Key{-1, Major}, 5, "F MAJ"},
	{Key{-2, Major}, 10, "Bb MAJ"},
	{Key{-3, Major}, 3, "Eb MAJ"},
	{Key{-4, Major}, 8, "Ab MAJ"},
	{Key{-5, Major}, 1, "Db MAJ"},
	{Key{-6, Major}, 6, "Gb MAJ"},
	{Key{-7, Major}, 11, "Cb MAJ"},

	{Key{7, Minor}, 10, "A# MIN"},
	{Key{6, Minor}, 3, "D# MIN"},
	{Key{5, Minor}, 8, "G# MIN"},
	{Key{4, Minor}, 1, "C# MIN"},
	{Key{3, Minor}, 6, "F# MIN"},
	{Key{2, Minor}, 11, "B MIN"},
	{Key{1, Minor}, 4, "E MIN"},
	{Key{0, Minor}, 9, "A MIN"},
	{Key{-1, Minor}, 2, "D MIN"},
	{Key{-2, Minor}, 7, "G MIN"},
	{Key{-3, Minor}, 0, "C MIN"},
	{Key{-4, Minor}, 5, "F MIN"},
	{Key{-5, Minor}, 10, "Bb MIN"},
	{Key{-6, Minor}, 3, "Eb MIN"},
	{Key{-7, Minor}, 8, "Ab MIN"},
}

func lookupKey(k Key) *keyInfo {
	for i := range keyTable {
		if keyTable[i].key == k {
			return &keyTable[i]
		}
	}
	return nil
}

// ParseKey resolves a table label like "D MAJ" or "f# min" to its key.
func ParseKey(label string) (Key, error) {
	for i := range keyTable {
		if strings.EqualFold(keyTable[i].label, label) {
			return keyTable[i].key, nil
		}
	}
	return Key{}, fmt.Errorf("unknown key %q", label)
}

// keySignature returns the file's first key-signature payload, scanning
// tracks in order and events in order within each track.
func (f *File) keySignature() *KeySignature {
	for _, track := range f.Tracks {
		for _, ev := range track.Events {
			if ks, ok := ev.Msg.(*KeySignature); ok {
				return ks
			}
		}
	}
	return nil
}

// Key returns the file's key, taken from its first key-signature event.
func (f *File) Key() (Key, error) {
	ks := f.keySignature()
	if ks == nil {
		return Key{}, ErrNoKeySignature
	}
	return Key{SharpsFlats: ks.SharpsFlats, Mode: ks.Mode}, nil
}

// Transpose shifts every note in the file from its current key to target,
// overwriting the key-signature event, and returns the semitone delta
// applied. Transposing across modes is rejected: the table's offsets are
// not comparable between major and minor.
func (f *File) Transpose(target Key) (int8, error) {
	ks := f.keySignature()
	if ks == nil {
		return 0, ErrNoKeySignature
	}

	current := lookupKey(Key{SharpsFlats: ks.SharpsFlats, Mode: ks.Mode})
	if current == nil {
		return 0, fmt.Errorf("%w: sf:%d mi:%d not in table", ErrNoKeySignature, ks.SharpsFlats, ks.Mode)
	}
	dest := lookupKey(target)
	if dest == nil {
		return 0, fmt.Errorf("unknown target key sf:%d mi:%d", target.SharpsFlats, target.Mode)
	}

	if dest.key.Mode != current.key.Mode {
		return 0, ErrModeMismatch
	}

	delta := dest.offset - current.offset
	for _, track := range f.Tracks {
		for _, ev := range track.Events {
			switch m := ev.Msg.(type) {
			case *NoteOn:
				m.Key += uint8(delta)
			case *NoteOff:
				m.Key += uint8(delta)
			}
		}
	}

	ks.SharpsFlats = dest.key.SharpsFlats
	ks.Mode = dest.key.Mode
	return delta, nil
}
