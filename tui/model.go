package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"go-midifile/player"
	"go-midifile/smf"
	"go-midifile/theme"
	"go-midifile/widgets"
)

const progressWidth = 32

// maxTrackLines caps the track summary so huge files fit the screen.
const maxTrackLines = 8

type Model struct {
	Transport *Transport
	Theme     *theme.Theme

	name       string
	format     smf.Format
	ppqn       uint16
	trackLines []string
	key        string
	notes      int
	duration   uint32 // microseconds
	quitting   bool
}

type UpdateMsg struct{}

func NewModel(tr *Transport, th *theme.Theme, file *smf.File, name string) Model {
	var tm player.TimeMap
	notes, err := tm.Build(file)
	var duration uint32
	if err == nil {
		duration = tm.Duration()
	}

	key := "-"
	if k, kerr := file.Key(); kerr == nil {
		key = k.String()
	}

	return Model{
		Transport:  tr,
		Theme:      th,
		name:       name,
		format:     file.Format,
		ppqn:       file.PPQN,
		trackLines: summarizeTracks(file),
		key:        key,
		notes:      notes,
		duration:   duration,
	}
}

// summarizeTracks builds one line per track: event count plus the first
// name meta and first program change found in it.
func summarizeTracks(file *smf.File) []string {
	lines := make([]string, len(file.Tracks))
	for i, track := range file.Tracks {
		var name, instrument string
		for _, ev := range track.Events {
			switch m := ev.Msg.(type) {
			case *smf.Text:
				if name == "" && (m.Type == smf.KindSequenceName || m.Type == smf.KindInstrumentName) {
					name = m.Text
				}
			case *smf.ProgramChange:
				if instrument == "" {
					instrument = smf.InstrumentName(m.Program)
				}
			}
		}

		line := fmt.Sprintf("track %d  %4d events", i, len(track.Events))
		if name != "" {
			line += "  " + name
		}
		if instrument != "" {
			line += "  [" + instrument + "]"
		}
		lines[i] = line
	}
	return lines
}

func ListenForUpdates(tr *Transport) tea.Cmd {
	return func() tea.Msg {
		<-tr.Updates
		return UpdateMsg{}
	}
}

func (m Model) Init() tea.Cmd {
	return ListenForUpdates(m.Transport)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			m.Transport.Stop()
			return m, tea.Quit

		case " ", "p":
			if m.Transport.Playing() {
				m.Transport.Stop()
			} else {
				m.Transport.Play()
			}

		case "r":
			m.Transport.Stop()
			m.Transport.Play()
		}

	case UpdateMsg:
		return m, ListenForUpdates(m.Transport)
	}

	return m, nil
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	headerStyle := lipgloss.NewStyle().Foreground(m.Theme.Accent())
	labelStyle := lipgloss.NewStyle().Foreground(m.Theme.FG())
	dimStyle := lipgloss.NewStyle().Foreground(m.Theme.Muted())

	playState := dimStyle.Render("STOP")
	if m.Transport.Playing() {
		playStyle := lipgloss.NewStyle().Foreground(m.Theme.Success())
		playState = playStyle.Render(string(m.Theme.Symbols.Playhead) + " PLAY")
	}

	header := headerStyle.Render(fmt.Sprintf("go-midifile  %s", m.name)) + "  " + playState

	info := dimStyle.Render(fmt.Sprintf("format:%d  ppqn:%d  tracks:%d  key:%s  notes:%d",
		m.format, m.ppqn, len(m.trackLines), m.key, m.notes))

	_, micros := m.Transport.Progress()
	tempo := m.Transport.Tempo()
	bpm := uint32(0)
	if tempo > 0 {
		bpm = 60000000 / tempo
	}

	filled := 0
	if m.duration > 0 {
		filled = int(uint64(micros) * progressWidth / uint64(m.duration))
	}
	bar := widgets.RenderBar(filled, progressWidth, m.Theme.Symbols.BarFill, m.Theme.Symbols.BarEmpty)
	transport := labelStyle.Render(fmt.Sprintf("%3dbpm  %s  %s / %s",
		bpm, bar, mmss(micros), mmss(m.duration)))

	channels := dimStyle.Render("ch ") + m.channelRow()

	help := dimStyle.Render("space:play/stop  r:restart  q:quit")

	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(header)
	out.WriteString("\n\n")
	out.WriteString(info)
	out.WriteString("\n")
	out.WriteString(transport)
	out.WriteString("\n\n")
	shown := m.trackLines
	if len(shown) > maxTrackLines {
		shown = shown[:maxTrackLines]
	}
	for _, line := range shown {
		out.WriteString(labelStyle.Render(line))
		out.WriteString("\n")
	}
	if hidden := len(m.trackLines) - len(shown); hidden > 0 {
		out.WriteString(dimStyle.Render(fmt.Sprintf("+%d more tracks", hidden)))
		out.WriteString("\n")
	}
	out.WriteString("\n")
	out.WriteString(channels)
	out.WriteString("\n\n")
	for _, line := range m.Transport.Recent() {
		out.WriteString(dimStyle.Render(line))
		out.WriteString("\n")
	}
	out.WriteString("\n")
	out.WriteString(help)

	if err := m.Transport.Err(); err != nil {
		out.WriteString("\n")
		out.WriteString(lipgloss.NewStyle().Foreground(m.Theme.Warning()).Render(err.Error()))
	}

	return out.String()
}

// channelRow renders the 16 channel cells, lit and colored by how
// recently each channel sounded.
func (m Model) channelRow() string {
	levels := m.Transport.Activity()
	glyphs := make([]rune, len(levels))
	colors := make([][3]uint8, len(levels))
	for ch, level := range levels {
		if level > 0 {
			glyphs[ch] = m.Theme.Symbols.Solid
			colors[ch] = m.Theme.RGB(theme.RoleAccent + (1-theme.RoleAccent)*level)
		} else {
			glyphs[ch] = m.Theme.Symbols.Empty
			colors[ch] = m.Theme.RGB(theme.RoleMuted)
		}
	}
	return widgets.RenderPadRow(glyphs, colors)
}

func mmss(micros uint32) string {
	secs := micros / 1e6
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}
