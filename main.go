package main

import (
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"

	"go-midifile/config"
	"go-midifile/debug"
	"go-midifile/device"
	"go-midifile/smf"
	"go-midifile/theme"
	"go-midifile/tui"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: go-midifile <file.mid>")
		os.Exit(1)
	}
	path := os.Args[1]

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	if len(cfg.Debug) > 0 {
		if err := debug.Enable(cfg.Debug...); err != nil {
			fmt.Printf("Error opening debug log: %v\n", err)
			os.Exit(1)
		}
		defer debug.Disable()
	}

	file, err := smf.Open(path)
	if err != nil {
		fmt.Printf("Error reading %s: %v\n", path, err)
		os.Exit(1)
	}

	// Load theme
	palette := theme.Default()
	if cfg.Theme != "" {
		p, err := theme.LoadGPL(cfg.Theme)
		if err != nil {
			debug.Log("main", "palette %s: %v", cfg.Theme, err)
		} else {
			palette = p
		}
	}
	th := theme.New(palette)

	// Pick a MIDI output, falling back to silent playback
	var out device.Output = device.Null{}
	port, err := device.FindPort(cfg.Output.PortName)
	if err != nil {
		fmt.Printf("%v - playing silently\n", err)
	} else if err := port.Open(); err != nil {
		fmt.Printf("Error opening %s: %v - playing silently\n", port.Name(), err)
	} else {
		out = port
		defer port.Close()
	}

	cfg.AddRecentFile(path)
	if err := cfg.Save(); err != nil {
		debug.Log("main", "save config: %v", err)
	}

	// Create and run TUI
	tr := tui.NewTransport(file, out, cfg.StartOffsetMicros())
	m := tui.NewModel(tr, th, file, filepath.Base(path))
	p := tea.NewProgram(m, tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}
