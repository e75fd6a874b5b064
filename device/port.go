package device

import (
	"fmt"
	"strings"

	"go-midifile/debug"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// allNotesOff is the controller number that silences a channel.
const allNotesOff = 123

// Port plays through a system MIDI output.
type Port struct {
	out  drivers.Out
	send func(msg gomidi.Message) error
}

// Ports lists the names of the system's MIDI outputs.
func Ports() []string {
	outs := gomidi.GetOutPorts()
	names := make([]string, 0, len(outs))
	for _, out := range outs {
		names = append(names, out.String())
	}
	return names
}

// FindPort matches a system output by case-insensitive substring. An
// empty name selects the first available output.
func FindPort(name string) (*Port, error) {
	outs := gomidi.GetOutPorts()
	if len(outs) == 0 {
		return nil, fmt.Errorf("no MIDI outputs available")
	}

	if name == "" {
		return &Port{out: outs[0]}, nil
	}

	want := strings.ToLower(name)
	for i, out := range outs {
		if strings.Contains(strings.ToLower(out.String()), want) {
			return &Port{out: outs[i]}, nil
		}
	}
	return nil, fmt.Errorf("no MIDI output matching %q", name)
}

// Name returns the port's display name.
func (p *Port) Name() string {
	return p.out.String()
}

// Open connects the port.
func (p *Port) Open() error {
	send, err := gomidi.SendTo(p.out)
	if err != nil {
		return fmt.Errorf("open output: %w", err)
	}
	p.send = send
	debug.Log("device", "opened output %q", p.out.String())
	return nil
}

// Close silences the port and releases it.
func (p *Port) Close() error {
	if p.send != nil {
		if err := p.Reset(); err != nil {
			debug.Log("device", "reset on close: %v", err)
		}
	}
	p.send = nil
	return p.out.Close()
}

// Reset sends All Notes Off on every channel.
func (p *Port) Reset() error {
	if p.send == nil {
		return nil
	}
	for ch := uint8(0); ch < 16; ch++ {
		if err := p.send(gomidi.ControlChange(ch, allNotesOff, 0)); err != nil {
			return err
		}
	}
	return nil
}

// SetChannelInstrument switches a channel's program.
func (p *Port) SetChannelInstrument(channel, instrument uint8) error {
	if p.send == nil {
		return nil
	}
	return p.send(gomidi.ProgramChange(channel&0x0F, instrument))
}

// PlayNote starts or stops a note.
func (p *Port) PlayNote(key, channel, velocity uint8, on bool) error {
	if p.send == nil {
		return nil
	}
	if on {
		return p.send(gomidi.NoteOn(channel&0x0F, key, velocity))
	}
	return p.send(gomidi.NoteOff(channel&0x0F, key))
}
