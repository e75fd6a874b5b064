package player

import (
	"errors"
	"math"

	"go-midifile/smf"
)

// OpenEnd marks a span whose note off never arrived.
const OpenEnd uint32 = math.MaxUint32

// ErrMapNotEmpty is returned when building into an already filled map.
var ErrMapNotEmpty = errors.New("time map already populated")

// NoteSpan is one sounded note located on the absolute timeline, in
// microseconds from the start of the file.
type NoteSpan struct {
	Track int
	On    *smf.Event
	Off   *smf.Event
	Start uint32
	End   uint32
}

// TimeMap lists every note in a file with absolute start and end times.
type TimeMap struct {
	Spans []NoteSpan
}

// Build fills the map through a silent playback pass and returns the
// number of spans. Tempo changes are honored; nothing sleeps and
// nothing reaches a device.
func (tm *TimeMap) Build(file *smf.File) (int, error) {
	if len(tm.Spans) != 0 {
		return 0, ErrMapNotEmpty
	}

	record := func(ev *smf.Event, track int, ticks, micros uint32) Verdict {
		switch m := ev.Msg.(type) {
		case *smf.NoteOn:
			if m.Velocity == 0 {
				tm.close(track, m.Channel, m.Key, ev, micros)
			} else {
				tm.Spans = append(tm.Spans, NoteSpan{
					Track: track,
					On:    ev,
					Start: micros,
					End:   OpenEnd,
				})
			}
		case *smf.NoteOff:
			tm.close(track, m.Channel, m.Key, ev, micros)
		}
		return IgnoreEvent
	}

	p := New(file, WithCallback(record), WithStartOffset(math.MaxUint32))
	if err := p.Run(); err != nil {
		return 0, err
	}
	return len(tm.Spans), nil
}

// close pairs an off event with the most recently opened span on the
// same track, channel and key. Scanning backwards keeps overlapping
// repeats of one key nested.
func (tm *TimeMap) close(track int, channel, key uint8, off *smf.Event, micros uint32) {
	for i := len(tm.Spans) - 1; i >= 0; i-- {
		span := &tm.Spans[i]
		if span.Off != nil {
			continue
		}
		on, ok := span.On.Msg.(*smf.NoteOn)
		if !ok {
			continue
		}
		if span.Track == track && on.Channel == channel && on.Key == key {
			span.Off = off
			span.End = micros
			return
		}
	}
}

// Duration returns the latest time the map knows about: the largest
// span end, or span start for spans that never closed.
func (tm *TimeMap) Duration() uint32 {
	var max uint32
	for _, span := range tm.Spans {
		if span.Start > max {
			max = span.Start
		}
		if span.End != OpenEnd && span.End > max {
			max = span.End
		}
	}
	return max
}
