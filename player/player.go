// Package player schedules decoded MIDI files onto real time.
package player

import (
	"fmt"
	"math"
	"time"

	"go-midifile/debug"
	"go-midifile/device"
	"go-midifile/smf"
)

// Verdict is a callback's decision about one due event.
type Verdict int

const (
	// Play lets the event take its normal effect.
	Play Verdict = iota
	// IgnoreEvent suppresses the event. Tempo changes still apply.
	IgnoreEvent
	// Abort stops playback immediately.
	Abort
)

// Callback observes every event as it becomes due. Times are absolute
// from the start of playback.
type Callback func(ev *smf.Event, track int, ticks, micros uint32) Verdict

// neverDue marks a track with no events left.
const neverDue = math.MaxUint32

// defaultTempo is applied until the first tempo event, in microseconds
// per quarter note.
const defaultTempo = 500000

// Player steps a file's tracks against a shared tick clock.
type Player struct {
	file  *smf.File
	out   device.Output
	cb    Callback
	start uint32

	sleep func(time.Duration)
}

// Option configures a Player.
type Option func(*Player)

// WithOutput routes note and program events to out.
func WithOutput(out device.Output) Option {
	return func(p *Player) { p.out = out }
}

// WithCallback invokes cb for every due event.
func WithCallback(cb Callback) Option {
	return func(p *Player) { p.cb = cb }
}

// WithStartOffset fast-forwards playback: time before micros passes
// without sleeping and without sounding notes.
func WithStartOffset(micros uint32) Option {
	return func(p *Player) { p.start = micros }
}

// New prepares a player for file.
func New(file *smf.File, opts ...Option) *Player {
	p := &Player{
		file:  file,
		sleep: time.Sleep,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run plays the file to completion. Each track's first event fires
// immediately; deltas pace everything after it. Program changes reach
// the output even before the start offset, so instruments are set up
// by the time notes sound.
func (p *Player) Run() error {
	if p.file == nil {
		return fmt.Errorf("no file to play")
	}
	if p.file.PPQN == 0 {
		return fmt.Errorf("pulses per quarter note is zero")
	}

	tracks := p.file.Tracks
	cursors := make([]int, len(tracks))
	waits := make([]uint32, len(tracks))

	tickDur := uint32(defaultTempo) / uint32(p.file.PPQN)

	finished := 0
	for i, track := range tracks {
		if len(track.Events) == 0 {
			waits[i] = neverDue
			finished++
		}
	}

	debug.Log("player", "playing %d tracks at %d us per tick", len(tracks), tickDur)

	var ticks, micros uint32
	var minWait uint32

	for finished < len(tracks) {
		elapsed := tickDur * minWait
		ticks += minWait
		micros += elapsed

		if micros >= p.start {
			p.sleep(time.Duration(elapsed) * time.Microsecond)
		}

		step := minWait
		minWait = neverDue

		for i, track := range tracks {
			if waits[i] == neverDue {
				continue
			}

			waits[i] -= step
			if waits[i] != 0 {
				if waits[i] < minWait {
					minWait = waits[i]
				}
				continue
			}

			ev := track.Events[cursors[i]]

			verdict := Play
			if p.cb != nil {
				verdict = p.cb(ev, i, ticks, micros)
			}
			if verdict == Abort {
				debug.Log("player", "aborted at tick %d", ticks)
				return nil
			}

			// Tempo events act even when the callback ignores them;
			// skipping one would corrupt the clock for the whole file.
			if verdict != IgnoreEvent || ev.Msg.Kind() == smf.KindSetTempo {
				switch m := ev.Msg.(type) {
				case *smf.NoteOn:
					if micros >= p.start {
						p.playNote(m.Key, m.Channel, m.Velocity, true)
					}
				case *smf.NoteOff:
					if micros >= p.start {
						p.playNote(m.Key, m.Channel, m.Velocity, false)
					}
				case *smf.SetTempo:
					tickDur = m.Tempo / uint32(p.file.PPQN)
				case *smf.ProgramChange:
					p.setInstrument(m.Channel, m.Program)
				}
			}

			cursors[i]++
			if cursors[i] >= len(track.Events) {
				waits[i] = neverDue
				finished++
			} else {
				waits[i] = track.Events[cursors[i]].Delta
			}
			if waits[i] < minWait {
				minWait = waits[i]
			}
		}
	}

	return nil
}

// Output errors are logged and playback continues: a stuck synth should
// not stop the clock.
func (p *Player) playNote(key, channel, velocity uint8, on bool) {
	if p.out == nil {
		return
	}
	debug.LogEvery(100, "player", "note key=%d ch=%d on=%v", key, channel, on)
	if err := p.out.PlayNote(key, channel, velocity, on); err != nil {
		debug.Log("player", "play note key=%d ch=%d: %v", key, channel, err)
	}
}

func (p *Player) setInstrument(channel, instrument uint8) {
	if p.out == nil {
		return
	}
	if err := p.out.SetChannelInstrument(channel, instrument); err != nil {
		debug.Log("player", "set instrument ch=%d: %v", channel, err)
	}
}
