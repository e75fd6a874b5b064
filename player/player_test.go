package player

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-midifile/smf"
)

type outputCall struct {
	what     string
	key      uint8
	channel  uint8
	velocity uint8
	on       bool
}

// fakeOutput records everything sent to it.
type fakeOutput struct {
	calls []outputCall
}

func (f *fakeOutput) Open() error  { return nil }
func (f *fakeOutput) Close() error { return nil }
func (f *fakeOutput) Reset() error { return nil }

func (f *fakeOutput) SetChannelInstrument(channel, instrument uint8) error {
	f.calls = append(f.calls, outputCall{what: "program", channel: channel, key: instrument})
	return nil
}

func (f *fakeOutput) PlayNote(key, channel, velocity uint8, on bool) error {
	f.calls = append(f.calls, outputCall{what: "note", key: key, channel: channel, velocity: velocity, on: on})
	return nil
}

func singleTrack(ppqn uint16, events ...*smf.Event) *smf.File {
	return &smf.File{
		Format: smf.FormatSingleTrack,
		PPQN:   ppqn,
		Tracks: []*smf.Track{{Events: events}},
	}
}

// silence replaces the player's sleep so tests run instantly.
func silence(p *Player) *time.Duration {
	var total time.Duration
	p.sleep = func(d time.Duration) { total += d }
	return &total
}

func TestRunDeliversNotes(t *testing.T) {
	f := singleTrack(480,
		&smf.Event{Delta: 0, Msg: &smf.ProgramChange{Channel: 0, Program: 41}},
		&smf.Event{Delta: 0, Msg: &smf.NoteOn{Channel: 0, Key: 60, Velocity: 100}},
		&smf.Event{Delta: 480, Msg: &smf.NoteOff{Channel: 0, Key: 60, Velocity: 0}},
		&smf.Event{Delta: 0, Msg: &smf.EndOfTrack{}},
	)

	out := &fakeOutput{}
	p := New(f, WithOutput(out))
	silence(p)

	require.NoError(t, p.Run())
	assert.Equal(t, []outputCall{
		{what: "program", channel: 0, key: 41},
		{what: "note", key: 60, channel: 0, velocity: 100, on: true},
		{what: "note", key: 60, channel: 0, velocity: 0, on: false},
	}, out.calls)
}

func TestRunTiming(t *testing.T) {
	f := singleTrack(480,
		&smf.Event{Delta: 0, Msg: &smf.NoteOn{Channel: 0, Key: 60, Velocity: 100}},
		&smf.Event{Delta: 100, Msg: &smf.NoteOff{Channel: 0, Key: 60, Velocity: 0}},
		&smf.Event{Delta: 0, Msg: &smf.EndOfTrack{}},
	)

	var ticks, micros []uint32
	p := New(f, WithCallback(func(ev *smf.Event, track int, tk, us uint32) Verdict {
		ticks = append(ticks, tk)
		micros = append(micros, us)
		return Play
	}))
	slept := silence(p)

	require.NoError(t, p.Run())
	assert.Equal(t, []uint32{0, 100, 100}, ticks)
	// 500000/480 truncates to 1041 us per tick.
	assert.Equal(t, []uint32{0, 104100, 104100}, micros)
	assert.Equal(t, 104100*time.Microsecond, *slept)
}

func TestRunFirstEventImmediate(t *testing.T) {
	f := singleTrack(480,
		&smf.Event{Delta: 960, Msg: &smf.NoteOn{Channel: 0, Key: 60, Velocity: 100}},
		&smf.Event{Delta: 480, Msg: &smf.NoteOff{Channel: 0, Key: 60, Velocity: 0}},
		&smf.Event{Delta: 0, Msg: &smf.EndOfTrack{}},
	)

	var ticks []uint32
	p := New(f, WithCallback(func(ev *smf.Event, track int, tk, us uint32) Verdict {
		ticks = append(ticks, tk)
		return Play
	}))
	silence(p)

	require.NoError(t, p.Run())
	// The first event's delta is never waited on.
	assert.Equal(t, []uint32{0, 480, 480}, ticks)
}

func TestRunTempoChange(t *testing.T) {
	f := singleTrack(100,
		&smf.Event{Delta: 0, Msg: &smf.SetTempo{Tempo: 250000}},
		&smf.Event{Delta: 100, Msg: &smf.NoteOn{Channel: 0, Key: 60, Velocity: 100}},
		&smf.Event{Delta: 0, Msg: &smf.EndOfTrack{}},
	)

	var micros []uint32
	p := New(f, WithCallback(func(ev *smf.Event, track int, tk, us uint32) Verdict {
		micros = append(micros, us)
		return Play
	}))
	silence(p)

	require.NoError(t, p.Run())
	assert.Equal(t, []uint32{0, 250000, 250000}, micros)
}

func TestRunIgnoreKeepsTempo(t *testing.T) {
	f := singleTrack(100,
		&smf.Event{Delta: 0, Msg: &smf.SetTempo{Tempo: 250000}},
		&smf.Event{Delta: 100, Msg: &smf.NoteOn{Channel: 0, Key: 60, Velocity: 100}},
		&smf.Event{Delta: 0, Msg: &smf.EndOfTrack{}},
	)

	out := &fakeOutput{}
	var micros []uint32
	p := New(f, WithOutput(out), WithCallback(func(ev *smf.Event, track int, tk, us uint32) Verdict {
		micros = append(micros, us)
		return IgnoreEvent
	}))
	silence(p)

	require.NoError(t, p.Run())
	assert.Empty(t, out.calls)
	// The ignored tempo event still retimed the clock.
	assert.Equal(t, []uint32{0, 250000, 250000}, micros)
}

func TestRunAbort(t *testing.T) {
	f := singleTrack(480,
		&smf.Event{Delta: 0, Msg: &smf.NoteOn{Channel: 0, Key: 60, Velocity: 100}},
		&smf.Event{Delta: 0, Msg: &smf.NoteOn{Channel: 0, Key: 64, Velocity: 100}},
		&smf.Event{Delta: 0, Msg: &smf.NoteOn{Channel: 0, Key: 67, Velocity: 100}},
		&smf.Event{Delta: 0, Msg: &smf.EndOfTrack{}},
	)

	out := &fakeOutput{}
	seen := 0
	p := New(f, WithOutput(out), WithCallback(func(ev *smf.Event, track int, tk, us uint32) Verdict {
		seen++
		if seen == 2 {
			return Abort
		}
		return Play
	}))
	silence(p)

	require.NoError(t, p.Run())
	assert.Equal(t, 2, seen)
	require.Len(t, out.calls, 1)
	assert.Equal(t, uint8(60), out.calls[0].key)
}

func TestRunStartOffset(t *testing.T) {
	f := singleTrack(100,
		&smf.Event{Delta: 0, Msg: &smf.ProgramChange{Channel: 0, Program: 5}},
		&smf.Event{Delta: 10, Msg: &smf.NoteOn{Channel: 0, Key: 60, Velocity: 100}},
		&smf.Event{Delta: 40, Msg: &smf.NoteOff{Channel: 0, Key: 60, Velocity: 0}},
		&smf.Event{Delta: 0, Msg: &smf.EndOfTrack{}},
	)

	out := &fakeOutput{}
	p := New(f, WithOutput(out), WithStartOffset(200000))
	slept := silence(p)

	require.NoError(t, p.Run())
	// The note on at 50000us is skipped; the program change is not.
	assert.Equal(t, []outputCall{
		{what: "program", channel: 0, key: 5},
		{what: "note", key: 60, channel: 0, velocity: 0, on: false},
	}, out.calls)
	assert.Equal(t, 200*time.Millisecond, *slept)
}

func TestRunTrackOrder(t *testing.T) {
	f := &smf.File{
		Format: smf.FormatSimultaneous,
		PPQN:   480,
		Tracks: []*smf.Track{
			{Events: []*smf.Event{
				{Delta: 0, Msg: &smf.NoteOn{Channel: 0, Key: 60, Velocity: 100}},
				{Delta: 0, Msg: &smf.EndOfTrack{}},
			}},
			{Events: []*smf.Event{
				{Delta: 0, Msg: &smf.NoteOn{Channel: 1, Key: 64, Velocity: 100}},
				{Delta: 0, Msg: &smf.EndOfTrack{}},
			}},
		},
	}

	var order []int
	p := New(f, WithCallback(func(ev *smf.Event, track int, tk, us uint32) Verdict {
		order = append(order, track)
		return Play
	}))
	silence(p)

	require.NoError(t, p.Run())
	assert.Equal(t, []int{0, 1, 0, 1}, order)
}

func TestRunEmptyTracks(t *testing.T) {
	f := &smf.File{
		Format: smf.FormatSimultaneous,
		PPQN:   480,
		Tracks: []*smf.Track{
			{},
			{Events: []*smf.Event{
				{Delta: 0, Msg: &smf.NoteOn{Channel: 0, Key: 60, Velocity: 100}},
				{Delta: 0, Msg: &smf.EndOfTrack{}},
			}},
		},
	}

	var tracks []int
	p := New(f, WithCallback(func(ev *smf.Event, track int, tk, us uint32) Verdict {
		tracks = append(tracks, track)
		return Play
	}))
	silence(p)

	require.NoError(t, p.Run())
	assert.Equal(t, []int{1, 1}, tracks)

	require.NoError(t, New(&smf.File{Format: smf.FormatSingleTrack, PPQN: 96, Tracks: []*smf.Track{{}}}).Run())
}

func TestRunBadFile(t *testing.T) {
	assert.Error(t, New(nil).Run())

	f := singleTrack(0, &smf.Event{Delta: 0, Msg: &smf.EndOfTrack{}})
	assert.Error(t, New(f).Run())
}
