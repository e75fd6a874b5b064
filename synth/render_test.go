package synth

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	meltysynth "github.com/sinshu/go-meltysynth/meltysynth"

	"go-midifile/smf"
)

type synthAction struct {
	what    string
	channel int32
	key     int32
	value   int32
	sample  int
}

// mockSynth records actions with the sample position they land on.
type mockSynth struct {
	cur     int
	actions []synthAction
}

func (m *mockSynth) ProcessMidiMessage(channel int32, command int32, data1, data2 int32) {
	if command == 0xC0 {
		m.actions = append(m.actions, synthAction{what: "program", channel: channel, value: data1, sample: m.cur})
	}
}

func (m *mockSynth) NoteOn(channel, key, vel int32) {
	m.actions = append(m.actions, synthAction{what: "on", channel: channel, key: key, value: vel, sample: m.cur})
}

func (m *mockSynth) NoteOff(channel, key int32) {
	m.actions = append(m.actions, synthAction{what: "off", channel: channel, key: key, sample: m.cur})
}

func (m *mockSynth) Render(left, right []float32) {
	m.cur += len(left)
}

func withMockSynth(t *testing.T) *mockSynth {
	t.Helper()
	ms := &mockSynth{}
	orig := newSynthesizer
	newSynthesizer = func(*meltysynth.SoundFont, *meltysynth.SynthesizerSettings) (synthesizer, error) {
		return ms, nil
	}
	t.Cleanup(func() { newSynthesizer = orig })
	return ms
}

// 100 PPQN with the default tempo makes one tick 5000us.
func renderFile() *smf.File {
	return &smf.File{
		Format: smf.FormatSingleTrack,
		PPQN:   100,
		Tracks: []*smf.Track{{Events: []*smf.Event{
			{Delta: 0, Msg: &smf.ProgramChange{Channel: 0, Program: 41}},
			{Delta: 0, Msg: &smf.NoteOn{Channel: 0, Key: 60, Velocity: 100}},
			{Delta: 100, Msg: &smf.NoteOff{Channel: 0, Key: 60, Velocity: 0}},
			{Delta: 0, Msg: &smf.EndOfTrack{}},
		}}},
	}
}

func TestScheduleOrdersEvents(t *testing.T) {
	events, total, err := schedule(renderFile())
	require.NoError(t, err)

	// 500000us at 44100Hz.
	noteEnd := 22050
	require.Len(t, events, 3)
	assert.Equal(t, evProgram, events[0].kind)
	assert.Equal(t, uint8(41), events[0].program)
	assert.Equal(t, evNoteOn, events[1].kind)
	assert.Equal(t, 0, events[1].sample)
	assert.Equal(t, evNoteOff, events[2].kind)
	assert.Equal(t, noteEnd, events[2].sample)
	assert.Equal(t, noteEnd+tailSamples, total)
}

func TestScheduleOffBeforeRetrigger(t *testing.T) {
	f := &smf.File{
		Format: smf.FormatSingleTrack,
		PPQN:   100,
		Tracks: []*smf.Track{{Events: []*smf.Event{
			{Delta: 0, Msg: &smf.NoteOn{Channel: 0, Key: 60, Velocity: 100}},
			{Delta: 100, Msg: &smf.NoteOff{Channel: 0, Key: 60, Velocity: 0}},
			{Delta: 0, Msg: &smf.NoteOn{Channel: 0, Key: 60, Velocity: 90}},
			{Delta: 0, Msg: &smf.EndOfTrack{}},
		}}},
	}

	events, _, err := schedule(f)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, evNoteOn, events[0].kind)
	assert.Equal(t, evNoteOff, events[1].kind, "the off must sort before the retrigger")
	assert.Equal(t, evNoteOn, events[2].kind)
	assert.Equal(t, events[1].sample, events[2].sample)
}

func TestRenderFontProducesWAV(t *testing.T) {
	ms := withMockSynth(t)

	var buf bytes.Buffer
	require.NoError(t, renderFont(renderFile(), &meltysynth.SoundFont{}, &buf))

	require.Len(t, ms.actions, 3)
	assert.Equal(t, "program", ms.actions[0].what)
	assert.Equal(t, "on", ms.actions[1].what)
	assert.Equal(t, int32(60), ms.actions[1].key)
	assert.Equal(t, "off", ms.actions[2].what)
	// Events are applied at the start of the block that contains them.
	assert.Equal(t, 22050/block*block, ms.actions[2].sample)

	total := 22050 + tailSamples
	require.Equal(t, 44+total*4, buf.Len())

	header := buf.Bytes()[:44]
	assert.Equal(t, []byte("RIFF"), header[0:4])
	assert.Equal(t, []byte("WAVE"), header[8:12])
	assert.Equal(t, uint16(2), binary.LittleEndian.Uint16(header[22:24]))
	assert.Equal(t, uint32(sampleRate), binary.LittleEndian.Uint32(header[24:28]))
	assert.Equal(t, uint32(total*4), binary.LittleEndian.Uint32(header[40:44]))
}

func TestMixPCM(t *testing.T) {
	pcm := mixPCM([]float32{0.99, 0}, []float32{-0.99, 0})
	require.Len(t, pcm, 8)

	left := int16(binary.LittleEndian.Uint16(pcm[0:2]))
	right := int16(binary.LittleEndian.Uint16(pcm[2:4]))
	assert.Equal(t, int16(32439), left)
	assert.Equal(t, int16(-32439), right)
	assert.Equal(t, []byte{0, 0, 0, 0}, pcm[4:8])
}

func TestMixPCMNormalizes(t *testing.T) {
	pcm := mixPCM([]float32{2.0}, []float32{1.0})
	left := int16(binary.LittleEndian.Uint16(pcm[0:2]))
	right := int16(binary.LittleEndian.Uint16(pcm[2:4]))
	assert.Equal(t, int16(32439), left)
	assert.InDelta(t, 16219, int(right), 2)
}

func TestUsToSamples(t *testing.T) {
	assert.Equal(t, 0, usToSamples(0))
	assert.Equal(t, 44100, usToSamples(1000000))
	assert.Equal(t, 22050, usToSamples(500000))
}
