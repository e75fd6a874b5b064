// Package device delivers note and program messages to playback outputs.
package device

// Output is a playback destination.
type Output interface {
	Open() error
	Close() error

	// Reset silences every channel.
	Reset() error

	SetChannelInstrument(channel, instrument uint8) error
	PlayNote(key, channel, velocity uint8, on bool) error
}

// Null discards everything sent to it.
type Null struct{}

func (Null) Open() error  { return nil }
func (Null) Close() error { return nil }
func (Null) Reset() error { return nil }

func (Null) SetChannelInstrument(channel, instrument uint8) error { return nil }

func (Null) PlayNote(key, channel, velocity uint8, on bool) error { return nil }
