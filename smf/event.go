package smf

import (
	"bytes"
	"fmt"
	"io"

	"go-midifile/debug"
)

// Kind identifies an event's wire type code. Meta events use the byte
// following the 0xFF prefix; channel-voice events use the high nibble of
// their status byte; SysEx2 is the raw 0xF0 status.
type Kind byte

const (
	KindSequenceNumber Kind = 0x00
	KindText           Kind = 0x01
	KindCopyright      Kind = 0x02
	KindSequenceName   Kind = 0x03
	KindInstrumentName Kind = 0x04
	KindLyric          Kind = 0x05
	KindMarker         Kind = 0x06
	KindCuePoint       Kind = 0x07
	KindProgramName    Kind = 0x08
	KindChannelPrefix  Kind = 0x20
	KindMidiPort       Kind = 0x21
	KindEndOfTrack     Kind = 0x2F
	KindSetTempo       Kind = 0x51
	KindSMPTEOffset    Kind = 0x54
	KindTimeSignature  Kind = 0x58
	KindKeySignature   Kind = 0x59
	KindSysEx          Kind = 0x7F

	KindNoteOff         Kind = 0x80
	KindNoteOn          Kind = 0x90
	KindPolyKeyPressure Kind = 0xA0
	KindControlChange   Kind = 0xB0
	KindProgramChange   Kind = 0xC0
	KindChannelPressure Kind = 0xD0
	KindPitchWheel      Kind = 0xE0

	KindSysEx2 Kind = 0xF0
)

// meta reports whether the kind is written with the 0xFF prefix.
func (k Kind) meta() bool {
	return k < 0x80
}

// String returns the kind's display name.
func (k Kind) String() string {
	if spec, ok := registry[k]; ok {
		return spec.name
	}
	return fmt.Sprintf("Unknown:%02X", byte(k))
}

// Message is one decoded event payload. The set of implementations is
// closed: every wire code maps to exactly one concrete type via the
// registry at the bottom of this file.
type Message interface {
	Kind() Kind
	Describe() string
}

// decode helpers shared by the per-kind readers

func readPayload(r *bytes.Reader, n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("%w: truncated event body", ErrMalformed)
	}
	return buf, nil
}

// metaLen consumes the declared length byte of a fixed-size meta event and
// checks it against the expected value.
func metaLen(r *bytes.Reader, want int) error {
	got, err := r.ReadByte()
	if err != nil {
		return fmt.Errorf("%w: missing meta length", ErrMalformed)
	}
	if int(got) != want {
		return fmt.Errorf("%w: wrong length for event: expected %d but got %d", ErrMalformed, want, got)
	}
	return nil
}

// Text carries any of the eight text-family meta events (FF 01..FF 08);
// Type selects which one.
type Text struct {
	Type Kind
	Text string
}

func (t *Text) Kind() Kind { return t.Type }

func (t *Text) Describe() string { return "\"" + t.Text + "\"" }

func decodeText(r *bytes.Reader, code byte) (Message, error) {
	length, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("%w: missing text length", ErrMalformed)
	}

	buf, err := readPayload(r, int(length))
	if err != nil {
		return nil, err
	}
	return &Text{Type: Kind(code), Text: string(buf)}, nil
}

func encodeText(buf *bytes.Buffer, msg Message) error {
	t := msg.(*Text)
	if len(t.Text) > 255 {
		return fmt.Errorf("%w: text longer than 255 bytes", ErrMalformed)
	}

	buf.Write([]byte{0xFF, byte(t.Type), byte(len(t.Text))})
	buf.WriteString(t.Text)
	return nil
}

// SequenceNumber is the FF 00 meta event.
type SequenceNumber struct {
	Number uint16
}

func (s *SequenceNumber) Kind() Kind { return KindSequenceNumber }

func (s *SequenceNumber) Describe() string { return fmt.Sprintf("%d", s.Number) }

func decodeSequenceNumber(r *bytes.Reader, code byte) (Message, error) {
	if err := metaLen(r, 2); err != nil {
		return nil, err
	}
	b, err := readPayload(r, 2)
	if err != nil {
		return nil, err
	}
	return &SequenceNumber{Number: uint16(b[0])*256 + uint16(b[1])}, nil
}

func encodeSequenceNumber(buf *bytes.Buffer, msg Message) error {
	s := msg.(*SequenceNumber)
	buf.Write([]byte{0xFF, byte(KindSequenceNumber), 2, byte(s.Number >> 8), byte(s.Number)})
	return nil
}

// ChannelPrefix is the FF 20 meta event. The "applies until the next
// channel message" rule is not enforced; the value is carried as data.
type ChannelPrefix struct {
	Channel uint8
}

func (c *ChannelPrefix) Kind() Kind { return KindChannelPrefix }

func (c *ChannelPrefix) Describe() string { return fmt.Sprintf("%d", c.Channel) }

func decodeChannelPrefix(r *bytes.Reader, code byte) (Message, error) {
	if err := metaLen(r, 1); err != nil {
		return nil, err
	}
	ch, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("%w: truncated event body", ErrMalformed)
	}
	if ch > 15 {
		debug.Log("smf", "channel prefix has invalid channel %d (maximum is 15)", ch)
	}
	return &ChannelPrefix{Channel: ch}, nil
}

func encodeChannelPrefix(buf *bytes.Buffer, msg Message) error {
	c := msg.(*ChannelPrefix)
	buf.Write([]byte{0xFF, byte(KindChannelPrefix), 1, c.Channel})
	return nil
}

// MidiPort is the FF 21 meta event.
type MidiPort struct {
	Port uint8
}

func (m *MidiPort) Kind() Kind { return KindMidiPort }

func (m *MidiPort) Describe() string { return fmt.Sprintf("%d", m.Port) }

func decodeMidiPort(r *bytes.Reader, code byte) (Message, error) {
	if err := metaLen(r, 1); err != nil {
		return nil, err
	}
	p, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("%w: truncated event body", ErrMalformed)
	}
	return &MidiPort{Port: p}, nil
}

func encodeMidiPort(buf *bytes.Buffer, msg Message) error {
	m := msg.(*MidiPort)
	buf.Write([]byte{0xFF, byte(KindMidiPort), 1, m.Port})
	return nil
}

// EndOfTrack is the FF 2F meta event closing a track.
type EndOfTrack struct{}

func (e *EndOfTrack) Kind() Kind { return KindEndOfTrack }

func (e *EndOfTrack) Describe() string { return "End of Track" }

func decodeEndOfTrack(r *bytes.Reader, code byte) (Message, error) {
	if err := metaLen(r, 0); err != nil {
		return nil, err
	}
	return &EndOfTrack{}, nil
}

func encodeEndOfTrack(buf *bytes.Buffer, msg Message) error {
	buf.Write([]byte{0xFF, byte(KindEndOfTrack), 0})
	return nil
}

// SetTempo is the FF 51 meta event; Tempo is microseconds per quarter note.
type SetTempo struct {
	Tempo uint32
}

func (s *SetTempo) Kind() Kind { return KindSetTempo }

func (s *SetTempo) Describe() string { return fmt.Sprintf("%d", s.Tempo) }

func decodeSetTempo(r *bytes.Reader, code byte) (Message, error) {
	if err := metaLen(r, 3); err != nil {
		return nil, err
	}
	b, err := readPayload(r, 3)
	if err != nil {
		return nil, err
	}
	return &SetTempo{Tempo: uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])}, nil
}

func encodeSetTempo(buf *bytes.Buffer, msg Message) error {
	s := msg.(*SetTempo)
	buf.Write([]byte{0xFF, byte(KindSetTempo), 3, byte(s.Tempo >> 16), byte(s.Tempo >> 8), byte(s.Tempo)})
	return nil
}

// SMPTEOffset is the FF 54 meta event. Writing it is not supported.
type SMPTEOffset struct {
	Hours      uint8
	Minutes    uint8
	Seconds    uint8
	Frames     uint8
	Fractional uint8
}

func (s *SMPTEOffset) Kind() Kind { return KindSMPTEOffset }

func (s *SMPTEOffset) Describe() string {
	return fmt.Sprintf("HR:%d  MN:%d  SE:%d  FR:%d  FF:%d", s.Hours, s.Minutes, s.Seconds, s.Frames, s.Fractional)
}

func decodeSMPTEOffset(r *bytes.Reader, code byte) (Message, error) {
	if err := metaLen(r, 5); err != nil {
		return nil, err
	}
	b, err := readPayload(r, 5)
	if err != nil {
		return nil, err
	}
	return &SMPTEOffset{Hours: b[0], Minutes: b[1], Seconds: b[2], Frames: b[3], Fractional: b[4]}, nil
}

func encodeSMPTEOffset(buf *bytes.Buffer, msg Message) error {
	return fmt.Errorf("%w: SMPTE offset", ErrUnsupportedWrite)
}

// TimeSignature is the FF 58 meta event. Denominator is the raw power of
// two from the wire (2 means 1/4).
type TimeSignature struct {
	Numerator      uint8
	Denominator    uint8
	ClocksPerClick uint8
	NotatedQuarter uint8
}

func (t *TimeSignature) Kind() Kind { return KindTimeSignature }

func (t *TimeSignature) Describe() string {
	return fmt.Sprintf("numerator:%d  denominator:%d  cc:%d  bb:%d", t.Numerator, t.Denominator, t.ClocksPerClick, t.NotatedQuarter)
}

func decodeTimeSignature(r *bytes.Reader, code byte) (Message, error) {
	if err := metaLen(r, 4); err != nil {
		return nil, err
	}
	b, err := readPayload(r, 4)
	if err != nil {
		return nil, err
	}
	return &TimeSignature{Numerator: b[0], Denominator: b[1], ClocksPerClick: b[2], NotatedQuarter: b[3]}, nil
}

func encodeTimeSignature(buf *bytes.Buffer, msg Message) error {
	t := msg.(*TimeSignature)
	buf.Write([]byte{0xFF, byte(KindTimeSignature), 4, t.Numerator, t.Denominator, t.ClocksPerClick, t.NotatedQuarter})
	return nil
}

// KeySignature is the FF 59 meta event. SharpsFlats counts sharps
// (positive) or flats (negative); Mode is 0 for major, 1 for minor.
type KeySignature struct {
	SharpsFlats int8
	Mode        uint8
}

func (k *KeySignature) Kind() Kind { return KindKeySignature }

func (k *KeySignature) Describe() string {
	return fmt.Sprintf("sf:%d  mi:%d = %s", k.SharpsFlats, k.Mode, Key{SharpsFlats: k.SharpsFlats, Mode: k.Mode})
}

func decodeKeySignature(r *bytes.Reader, code byte) (Message, error) {
	if err := metaLen(r, 2); err != nil {
		return nil, err
	}
	b, err := readPayload(r, 2)
	if err != nil {
		return nil, err
	}
	if b[1] != 0 && b[1] != 1 {
		debug.Log("smf", "key signature has invalid mi=%d", b[1])
	}
	return &KeySignature{SharpsFlats: int8(b[0]), Mode: b[1]}, nil
}

func encodeKeySignature(buf *bytes.Buffer, msg Message) error {
	k := msg.(*KeySignature)
	buf.Write([]byte{0xFF, byte(KindKeySignature), 2, byte(k.SharpsFlats), k.Mode})
	return nil
}

// SysEx carries opaque system-exclusive data. Type is KindSysEx for the
// FF 7F meta form or KindSysEx2 for the raw F0 form; the payload is passed
// through byte-transparently either way.
type SysEx struct {
	Type Kind
	Data []byte
}

func (s *SysEx) Kind() Kind { return s.Type }

func (s *SysEx) Describe() string { return "\"" + string(s.Data) + "\"" }

func decodeSysEx(r *bytes.Reader, code byte) (Message, error) {
	length, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("%w: missing sysex length", ErrMalformed)
	}
	buf, err := readPayload(r, int(length))
	if err != nil {
		return nil, err
	}

	// code 0x7F arrives via the meta path; any raw Fx status is the F0 form
	kind := KindSysEx2
	if Kind(code) == KindSysEx {
		kind = KindSysEx
	}
	return &SysEx{Type: kind, Data: buf}, nil
}

func encodeSysEx(buf *bytes.Buffer, msg Message) error {
	s := msg.(*SysEx)
	if len(s.Data) > 255 {
		return fmt.Errorf("%w: sysex longer than 255 bytes", ErrMalformed)
	}

	if s.Type == KindSysEx2 {
		buf.Write([]byte{byte(KindSysEx2), byte(len(s.Data))})
	} else {
		buf.Write([]byte{0xFF, byte(KindSysEx), byte(len(s.Data))})
	}
	buf.Write(s.Data)
	return nil
}

// NoteOn is the 9n channel-voice event.
type NoteOn struct {
	Channel  uint8
	Key      uint8
	Velocity uint8
}

func (n *NoteOn) Kind() Kind { return KindNoteOn }

func (n *NoteOn) Describe() string {
	return fmt.Sprintf("ch:%d key:%d %s", n.Channel, n.Key, NoteName(n.Key))
}

func decodeNoteOn(r *bytes.Reader, code byte) (Message, error) {
	b, err := readPayload(r, 2)
	if err != nil {
		return nil, err
	}
	return &NoteOn{Channel: code & 0x0F, Key: b[0], Velocity: b[1]}, nil
}

func encodeNoteOn(buf *bytes.Buffer, msg Message) error {
	n := msg.(*NoteOn)
	buf.Write([]byte{byte(KindNoteOn) | n.Channel, n.Key, n.Velocity})
	return nil
}

// NoteOff is the 8n channel-voice event.
type NoteOff struct {
	Channel  uint8
	Key      uint8
	Velocity uint8
}

func (n *NoteOff) Kind() Kind { return KindNoteOff }

func (n *NoteOff) Describe() string {
	return fmt.Sprintf("ch:%d key:%d %s", n.Channel, n.Key, NoteName(n.Key))
}

func decodeNoteOff(r *bytes.Reader, code byte) (Message, error) {
	b, err := readPayload(r, 2)
	if err != nil {
		return nil, err
	}
	return &NoteOff{Channel: code & 0x0F, Key: b[0], Velocity: b[1]}, nil
}

func encodeNoteOff(buf *bytes.Buffer, msg Message) error {
	n := msg.(*NoteOff)
	buf.Write([]byte{byte(KindNoteOff) | n.Channel, n.Key, n.Velocity})
	return nil
}

// PolyKeyPressure is the An channel-voice event.
type PolyKeyPressure struct {
	Channel  uint8
	Key      uint8
	Pressure uint8
}

func (p *PolyKeyPressure) Kind() Kind { return KindPolyKeyPressure }

func (p *PolyKeyPressure) Describe() string {
	return fmt.Sprintf("ch:%d  key:%d  pressure:%d", p.Channel, p.Key, p.Pressure)
}

func decodePolyKeyPressure(r *bytes.Reader, code byte) (Message, error) {
	b, err := readPayload(r, 2)
	if err != nil {
		return nil, err
	}
	return &PolyKeyPressure{Channel: code & 0x0F, Key: b[0], Pressure: b[1]}, nil
}

func encodePolyKeyPressure(buf *bytes.Buffer, msg Message) error {
	p := msg.(*PolyKeyPressure)
	buf.Write([]byte{byte(KindPolyKeyPressure) | p.Channel, p.Key, p.Pressure})
	return nil
}

// ControlChange is the Bn channel-voice event.
type ControlChange struct {
	Channel uint8
	Control uint8
	Value   uint8
}

func (c *ControlChange) Kind() Kind { return KindControlChange }

func (c *ControlChange) Describe() string {
	return fmt.Sprintf("ch:%d  control:%d  value:%d", c.Channel, c.Control, c.Value)
}

func decodeControlChange(r *bytes.Reader, code byte) (Message, error) {
	b, err := readPayload(r, 2)
	if err != nil {
		return nil, err
	}
	return &ControlChange{Channel: code & 0x0F, Control: b[0], Value: b[1]}, nil
}

func encodeControlChange(buf *bytes.Buffer, msg Message) error {
	c := msg.(*ControlChange)
	buf.Write([]byte{byte(KindControlChange) | c.Channel, c.Control, c.Value})
	return nil
}

// ProgramChange is the Cn channel-voice event.
type ProgramChange struct {
	Channel uint8
	Program uint8
}

func (p *ProgramChange) Kind() Kind { return KindProgramChange }

func (p *ProgramChange) Describe() string {
	return fmt.Sprintf("ch:%d  program:%d %s", p.Channel, p.Program, InstrumentName(p.Program))
}

func decodeProgramChange(r *bytes.Reader, code byte) (Message, error) {
	b, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("%w: truncated event body", ErrMalformed)
	}
	return &ProgramChange{Channel: code & 0x0F, Program: b}, nil
}

func encodeProgramChange(buf *bytes.Buffer, msg Message) error {
	p := msg.(*ProgramChange)
	buf.Write([]byte{byte(KindProgramChange) | p.Channel, p.Program})
	return nil
}

// ChannelPressure is the Dn channel-voice event.
type ChannelPressure struct {
	Channel  uint8
	Pressure uint8
}

func (c *ChannelPressure) Kind() Kind { return KindChannelPressure }

func (c *ChannelPressure) Describe() string {
	return fmt.Sprintf("ch:%d  pressure:%d", c.Channel, c.Pressure)
}

func decodeChannelPressure(r *bytes.Reader, code byte) (Message, error) {
	b, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("%w: truncated event body", ErrMalformed)
	}
	return &ChannelPressure{Channel: code & 0x0F, Pressure: b}, nil
}

func encodeChannelPressure(buf *bytes.Buffer, msg Message) error {
	c := msg.(*ChannelPressure)
	buf.Write([]byte{byte(KindChannelPressure) | c.Channel, c.Pressure})
	return nil
}

// PitchWheel is the En channel-voice event; Value is the 14-bit wheel
// position assembled from the two data bytes (low + 128*high).
type PitchWheel struct {
	Channel uint8
	Value   uint16
}

func (p *PitchWheel) Kind() Kind { return KindPitchWheel }

func (p *PitchWheel) Describe() string {
	return fmt.Sprintf("ch:%d  wheel:%d", p.Channel, p.Value)
}

func decodePitchWheel(r *bytes.Reader, code byte) (Message, error) {
	b, err := readPayload(r, 2)
	if err != nil {
		return nil, err
	}
	return &PitchWheel{Channel: code & 0x0F, Value: uint16(b[0]) + 128*uint16(b[1])}, nil
}

func encodePitchWheel(buf *bytes.Buffer, msg Message) error {
	p := msg.(*PitchWheel)
	buf.Write([]byte{byte(KindPitchWheel) | p.Channel, byte(p.Value % 128), byte(p.Value / 128)})
	return nil
}

// kindSpec is one registry row: display name plus the wire codec pair for
// the kind. decode receives the dispatching code byte (the meta type byte,
// or the full status byte for channel-voice events).
type kindSpec struct {
	name   string
	decode func(r *bytes.Reader, code byte) (Message, error)
	encode func(buf *bytes.Buffer, msg Message) error
}

// registry is the closed dispatch table over event kinds. Built once,
// never mutated.
var registry = map[Kind]kindSpec{
	KindText:           {"Text", decodeText, encodeText},
	KindCopyright:      {"Copyright notice", decodeText, encodeText},
	KindSequenceName:   {"Sequence name", decodeText, encodeText},
	KindInstrumentName: {"Instrument name", decodeText, encodeText},
	KindLyric:          {"Lyric", decodeText, encodeText},
	KindMarker:         {"Marker", decodeText, encodeText},
	KindCuePoint:       {"Cue Point", decodeText, encodeText},
	KindProgramName:    {"Program name", decodeText, encodeText},

	KindSequenceNumber: {"Sequence number", decodeSequenceNumber, encodeSequenceNumber},
	KindChannelPrefix:  {"Channel prefix", decodeChannelPrefix, encodeChannelPrefix},
	KindMidiPort:       {"Midi port", decodeMidiPort, encodeMidiPort},
	KindEndOfTrack:     {"End of Track", decodeEndOfTrack, encodeEndOfTrack},
	KindSetTempo:       {"Set tempo", decodeSetTempo, encodeSetTempo},
	KindSMPTEOffset:    {"SMPTE offset", decodeSMPTEOffset, encodeSMPTEOffset},
	KindTimeSignature:  {"Time signature", decodeTimeSignature, encodeTimeSignature},
	KindKeySignature:   {"KeySignature", decodeKeySignature, encodeKeySignature},
	KindSysEx:          {"SysEx", decodeSysEx, encodeSysEx},
	KindSysEx2:         {"SysEx2", decodeSysEx, encodeSysEx},

	KindNoteOn:          {"Note on", decodeNoteOn, encodeNoteOn},
	KindNoteOff:         {"Note off", decodeNoteOff, encodeNoteOff},
	KindPolyKeyPressure: {"Polyphonic key pressure", decodePolyKeyPressure, encodePolyKeyPressure},
	KindControlChange:   {"Control change", decodeControlChange, encodeControlChange},
	KindProgramChange:   {"Program change", decodeProgramChange, encodeProgramChange},
	KindChannelPressure: {"Channel pressure", decodeChannelPressure, encodeChannelPressure},
	KindPitchWheel:      {"Pitch wheel change", decodePitchWheel, encodePitchWheel},
}
