// Package synth renders MIDI files offline through a SoundFont.
package synth

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sort"

	meltysynth "github.com/sinshu/go-meltysynth/meltysynth"

	"go-midifile/debug"
	"go-midifile/player"
	"go-midifile/smf"
)

const (
	sampleRate = 44100
	// Fixed render block, aligned with the synthesizer's internal
	// effect processing size.
	block = 1024
	// tailSamples extends the render past the last note so releases
	// and reverb can decay.
	tailSamples = sampleRate
)

const (
	evNoteOff = iota
	evProgram
	evNoteOn
)

// synthesizer abstracts the subset of meltysynth.Synthesizer used here.
type synthesizer interface {
	ProcessMidiMessage(channel int32, command int32, data1, data2 int32)
	NoteOn(channel, key, vel int32)
	NoteOff(channel, key int32)
	Render(left, right []float32)
}

// newSynthesizer constructs the real synthesizer. Tests may override it.
var newSynthesizer = func(font *meltysynth.SoundFont, settings *meltysynth.SynthesizerSettings) (synthesizer, error) {
	return meltysynth.NewSynthesizer(font, settings)
}

// synthEvent is one synthesizer action at an absolute sample position.
type synthEvent struct {
	sample   int
	kind     int
	channel  uint8
	key      uint8
	velocity uint8
	program  uint8
}

// Render synthesizes file through the SoundFont read from sf and writes
// a 16-bit stereo WAV to w.
func Render(file *smf.File, sf io.ReadSeeker, w io.Writer) error {
	font, err := meltysynth.NewSoundFont(sf)
	if err != nil {
		return fmt.Errorf("load soundfont: %w", err)
	}
	return renderFont(file, font, w)
}

func renderFont(file *smf.File, font *meltysynth.SoundFont, w io.Writer) error {
	settings := meltysynth.NewSynthesizerSettings(sampleRate)
	settings.BlockSize = block
	syn, err := newSynthesizer(font, settings)
	if err != nil {
		return fmt.Errorf("create synthesizer: %w", err)
	}

	events, total, err := schedule(file)
	if err != nil {
		return err
	}
	debug.Log("synth", "rendering %d events over %d samples", len(events), total)

	leftAll := make([]float32, 0, total)
	rightAll := make([]float32, 0, total)

	cursor := 0
	for pos := 0; pos < total; pos += block {
		n := block
		if pos+n > total {
			n = total - pos
		}

		for cursor < len(events) && events[cursor].sample < pos+n {
			ev := events[cursor]
			switch ev.kind {
			case evNoteOff:
				syn.NoteOff(int32(ev.channel), int32(ev.key))
			case evProgram:
				syn.ProcessMidiMessage(int32(ev.channel), 0xC0, int32(ev.program), 0)
			case evNoteOn:
				syn.NoteOn(int32(ev.channel), int32(ev.key), int32(ev.velocity))
			}
			cursor++
		}

		left := make([]float32, block)
		right := make([]float32, block)
		syn.Render(left, right)
		leftAll = append(leftAll, left[:n]...)
		rightAll = append(rightAll, right[:n]...)
	}

	return writeWAV(w, mixPCM(leftAll, rightAll))
}

// schedule flattens a file into sample-positioned synthesizer events and
// returns them with the total sample count to render. Note times come
// from a time map pass, program changes from a second silent pass.
func schedule(file *smf.File) ([]synthEvent, int, error) {
	var tm player.TimeMap
	if _, err := tm.Build(file); err != nil {
		return nil, 0, err
	}

	var events []synthEvent
	for _, span := range tm.Spans {
		on, ok := span.On.Msg.(*smf.NoteOn)
		if !ok {
			continue
		}
		events = append(events, synthEvent{
			sample:   usToSamples(span.Start),
			kind:     evNoteOn,
			channel:  on.Channel,
			key:      on.Key,
			velocity: on.Velocity,
		})
		if span.End != player.OpenEnd {
			events = append(events, synthEvent{
				sample:  usToSamples(span.End),
				kind:    evNoteOff,
				channel: on.Channel,
				key:     on.Key,
			})
		}
	}

	programs := player.New(file,
		player.WithCallback(func(ev *smf.Event, track int, ticks, micros uint32) player.Verdict {
			if m, ok := ev.Msg.(*smf.ProgramChange); ok {
				events = append(events, synthEvent{
					sample:  usToSamples(micros),
					kind:    evProgram,
					channel: m.Channel,
					program: m.Program,
				})
			}
			return player.IgnoreEvent
		}),
		player.WithStartOffset(math.MaxUint32),
	)
	if err := programs.Run(); err != nil {
		return nil, 0, err
	}

	// Offs sort before program changes and note ons at the same instant
	// so retriggered keys restart cleanly.
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].sample != events[j].sample {
			return events[i].sample < events[j].sample
		}
		return events[i].kind < events[j].kind
	})

	return events, usToSamples(tm.Duration()) + tailSamples, nil
}

func usToSamples(micros uint32) int {
	return int(int64(micros) * sampleRate / 1e6)
}

// mixPCM normalizes the samples and interleaves them as 16-bit PCM.
func mixPCM(leftAll, rightAll []float32) []byte {
	var peak float32
	for i := range leftAll {
		if v := float32(math.Abs(float64(leftAll[i]))); v > peak {
			peak = v
		}
		if v := float32(math.Abs(float64(rightAll[i]))); v > peak {
			peak = v
		}
	}
	if peak > 0 {
		g := float32(0.99) / peak
		if g != 1 {
			for i := range leftAll {
				leftAll[i] *= g
				rightAll[i] *= g
			}
		}
	}

	pcm := make([]byte, len(leftAll)*4)
	for i := range leftAll {
		l := int16(leftAll[i] * 32767)
		r := int16(rightAll[i] * 32767)
		binary.LittleEndian.PutUint16(pcm[4*i:], uint16(l))
		binary.LittleEndian.PutUint16(pcm[4*i+2:], uint16(r))
	}
	return pcm
}

// writeWAV frames pcm with a 44-byte RIFF header for 16-bit stereo.
func writeWAV(w io.Writer, pcm []byte) error {
	dataLen := uint32(len(pcm))
	var header [44]byte
	copy(header[0:], []byte("RIFF"))
	binary.LittleEndian.PutUint32(header[4:], 36+dataLen)
	copy(header[8:], []byte("WAVE"))
	copy(header[12:], []byte("fmt "))
	binary.LittleEndian.PutUint32(header[16:], 16)
	binary.LittleEndian.PutUint16(header[20:], 1)
	binary.LittleEndian.PutUint16(header[22:], 2)
	binary.LittleEndian.PutUint32(header[24:], uint32(sampleRate))
	binary.LittleEndian.PutUint32(header[28:], uint32(sampleRate*4))
	binary.LittleEndian.PutUint16(header[32:], 4)
	binary.LittleEndian.PutUint16(header[34:], 16)
	copy(header[36:], []byte("data"))
	binary.LittleEndian.PutUint32(header[40:], dataLen)

	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("write wav header: %w", err)
	}
	if _, err := w.Write(pcm); err != nil {
		return fmt.Errorf("write wav data: %w", err)
	}
	return nil
}
