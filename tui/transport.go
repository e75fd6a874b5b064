package tui

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go-midifile/debug"
	"go-midifile/device"
	"go-midifile/player"
	"go-midifile/smf"
)

// recentEvents is how many meta events the transport remembers.
const recentEvents = 6

// notifyInterval throttles view updates while events stream through.
const notifyInterval = 50 * time.Millisecond

// activityDecay is how long a channel cell stays lit after a note on.
const activityDecay = 400 * time.Millisecond

// Transport drives a player in the background and mirrors its progress
// for the view.
type Transport struct {
	file  *smf.File
	out   device.Output
	start uint32

	// Updates pulses whenever the mirrored state changes.
	Updates chan struct{}

	stop atomic.Bool

	mu         sync.Mutex
	playing    bool
	restart    bool
	ticks      uint32
	micros     uint32
	tempo      uint32
	activity   [16]time.Time
	recent     []string
	err        error
	lastNotify time.Time
}

func NewTransport(file *smf.File, out device.Output, start uint32) *Transport {
	return &Transport{
		file:    file,
		out:     out,
		start:   start,
		Updates: make(chan struct{}, 1),
		tempo:   500000,
	}
}

// Play starts playback from the beginning. While a previous run is
// still winding down the start is deferred until it exits.
func (t *Transport) Play() {
	t.mu.Lock()
	if t.playing {
		t.restart = true
		t.mu.Unlock()
		return
	}
	t.playing = true
	t.ticks, t.micros = 0, 0
	t.tempo = 500000
	t.err = nil
	t.mu.Unlock()

	t.stop.Store(false)
	go t.run()
}

// Stop aborts the current run at the next due event and cancels any
// deferred start.
func (t *Transport) Stop() {
	t.mu.Lock()
	t.restart = false
	t.mu.Unlock()
	t.stop.Store(true)
}

func (t *Transport) run() {
	p := player.New(t.file,
		player.WithOutput(t.out),
		player.WithStartOffset(t.start),
		player.WithCallback(t.observe),
	)
	err := p.Run()

	// Abort can leave notes sounding.
	if rerr := t.out.Reset(); rerr != nil {
		debug.Log("tui", "reset after run: %v", rerr)
	}

	t.mu.Lock()
	t.playing = false
	t.err = err
	again := t.restart
	t.restart = false
	t.mu.Unlock()
	t.notify(true)

	if again {
		t.Play()
	}
}

func (t *Transport) observe(ev *smf.Event, track int, ticks, micros uint32) player.Verdict {
	if t.stop.Load() {
		return player.Abort
	}

	t.mu.Lock()
	t.ticks, t.micros = ticks, micros
	switch m := ev.Msg.(type) {
	case *smf.NoteOn:
		if m.Velocity > 0 {
			t.activity[m.Channel&0x0F] = time.Now()
		}
	case *smf.SetTempo:
		t.tempo = m.Tempo
	}
	switch k := ev.Msg.Kind(); {
	case k == smf.KindEndOfTrack, k == smf.KindSysEx, k == smf.KindSysEx2:
	case k < smf.KindNoteOff, k == smf.KindProgramChange:
		t.remember(ev)
	}
	t.mu.Unlock()

	t.notify(false)
	return player.Play
}

// remember keeps the last few meta events for the ticker. Callers hold mu.
func (t *Transport) remember(ev *smf.Event) {
	line := fmt.Sprintf("%-24s %s", ev.Msg.Kind(), ev.Msg.Describe())
	t.recent = append(t.recent, line)
	if len(t.recent) > recentEvents {
		t.recent = t.recent[len(t.recent)-recentEvents:]
	}
}

func (t *Transport) notify(force bool) {
	t.mu.Lock()
	if !force && time.Since(t.lastNotify) < notifyInterval {
		t.mu.Unlock()
		return
	}
	t.lastNotify = time.Now()
	t.mu.Unlock()

	select {
	case t.Updates <- struct{}{}:
	default:
	}
}

func (t *Transport) Playing() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.playing
}

// Progress returns the clock of the most recent event.
func (t *Transport) Progress() (ticks, micros uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ticks, t.micros
}

// Tempo returns the current tempo in microseconds per quarter note.
func (t *Transport) Tempo() uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tempo
}

// Err reports how the last run ended.
func (t *Transport) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Recent returns the remembered meta events, oldest first.
func (t *Transport) Recent() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.recent))
	copy(out, t.recent)
	return out
}

// Activity returns per-channel levels fading from 1 to 0 as note ons age.
func (t *Transport) Activity() [16]float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	var levels [16]float64
	now := time.Now()
	for ch, hit := range t.activity {
		if hit.IsZero() {
			continue
		}
		age := now.Sub(hit)
		if age >= activityDecay {
			continue
		}
		levels[ch] = 1 - float64(age)/float64(activityDecay)
	}
	return levels
}
