package main

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"go-midifile/config"
	"go-midifile/device"
	"go-midifile/player"
	"go-midifile/smf"
	"go-midifile/synth"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}

	switch os.Args[1] {
	case "dump":
		dump(os.Args[2:])
	case "key":
		printKey(os.Args[2:])
	case "timemap":
		timemap(os.Args[2:])
	case "transpose":
		transpose(os.Args[2:])
	case "copy":
		copyFile(os.Args[2:])
	case "ports":
		listPorts()
	case "play":
		play(os.Args[2:])
	case "render":
		render(os.Args[2:])
	default:
		usage()
	}
}

func usage() {
	fmt.Println("smftool - Standard MIDI File utilities")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  dump <file.mid>                      - Print every event")
	fmt.Println("  key <file.mid>                       - Print the key signature")
	fmt.Println("  timemap <file.mid>                   - Print note on/off times")
	fmt.Println("  transpose <file.mid> <key> <out.mid> - Transpose to a new key")
	fmt.Println("  copy <file.mid> <out.mid>            - Decode and re-encode")
	fmt.Println("  ports                                - List MIDI output ports")
	fmt.Println("  play <file.mid> [port]               - Play through a MIDI port")
	fmt.Println("  render <file.mid> <out.wav> [sf2]    - Render through a SoundFont")
}

func open(path string) *smf.File {
	file, err := smf.Open(path)
	if err != nil {
		fmt.Printf("Error reading %s: %v\n", path, err)
		return nil
	}
	return file
}

func dump(args []string) {
	if len(args) < 1 {
		usage()
		return
	}
	file := open(args[0])
	if file == nil {
		return
	}

	fmt.Printf("format:%d  ppqn:%d  tracks:%d\n", file.Format, file.PPQN, len(file.Tracks))

	for i, track := range file.Tracks {
		fmt.Printf("\n=== Track %d (%d events) ===\n", i, len(track.Events))
		var ticks uint32
		for _, ev := range track.Events {
			ticks += ev.Delta
			fmt.Printf("%8d  %-24s %s\n", ticks, ev.Msg.Kind(), ev.Msg.Describe())
		}
	}
}

func printKey(args []string) {
	if len(args) < 1 {
		usage()
		return
	}
	file := open(args[0])
	if file == nil {
		return
	}

	key, err := file.Key()
	if err != nil {
		fmt.Println("No key signature found")
		return
	}
	fmt.Printf("The music key is %s\n", key)
}

func timemap(args []string) {
	if len(args) < 1 {
		usage()
		return
	}
	file := open(args[0])
	if file == nil {
		return
	}

	var tm player.TimeMap
	count, err := tm.Build(file)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	fmt.Printf("%d notes, %.3fs total\n", count, float64(tm.Duration())/1e6)
	for _, span := range tm.Spans {
		on, ok := span.On.Msg.(*smf.NoteOn)
		if !ok {
			continue
		}
		end := "open"
		if span.End != player.OpenEnd {
			end = fmt.Sprintf("%.3f", float64(span.End)/1e6)
		}
		fmt.Printf("note %3d %-2s  ch %2d  track %d  start %.3f  end %s\n",
			on.Key, smf.NoteName(on.Key), on.Channel, span.Track,
			float64(span.Start)/1e6, end)
	}
}

func transpose(args []string) {
	if len(args) < 3 {
		usage()
		return
	}
	target, err := smf.ParseKey(args[1])
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	file := open(args[0])
	if file == nil {
		return
	}

	delta, err := file.Transpose(target)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Printf("Transposition shifted notes by %d semitones\n", delta)

	if err := file.Save(args[2]); err != nil {
		fmt.Printf("Error writing %s: %v\n", args[2], err)
		return
	}
	fmt.Printf("Wrote %s\n", args[2])
}

func copyFile(args []string) {
	if len(args) < 2 {
		usage()
		return
	}
	file := open(args[0])
	if file == nil {
		return
	}

	if err := file.Save(args[1]); err != nil {
		fmt.Printf("Error writing %s: %v\n", args[1], err)
		return
	}
	fmt.Printf("Wrote %s (%d tracks)\n", args[1], len(file.Tracks))
}

func listPorts() {
	// Enumeration goes through the OS MIDI service, which can hang
	ch := make(chan []string, 1)
	go func() { ch <- device.Ports() }()

	select {
	case names := <-ch:
		if len(names) == 0 {
			fmt.Println("No MIDI output ports")
			return
		}
		fmt.Println("=== MIDI Output Ports ===")
		for i, name := range names {
			fmt.Printf("  %d: %s\n", i, name)
		}
	case <-time.After(3 * time.Second):
		fmt.Println("Timed out listing ports - is the MIDI service hung?")
	}
}

func play(args []string) {
	if len(args) < 1 {
		usage()
		return
	}
	file := open(args[0])
	if file == nil {
		return
	}

	portName := ""
	if len(args) > 1 {
		portName = args[1]
	}
	port, err := device.FindPort(portName)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	if err := port.Open(); err != nil {
		fmt.Printf("Error opening %s: %v\n", port.Name(), err)
		return
	}
	defer port.Close()

	fmt.Printf("Playing on %s - press Enter to stop\n", port.Name())

	var stopped atomic.Bool
	go func() {
		buf := make([]byte, 1)
		os.Stdin.Read(buf)
		stopped.Store(true)
	}()

	stopOnKey := func(ev *smf.Event, track int, ticks, micros uint32) player.Verdict {
		if stopped.Load() {
			return player.Abort
		}
		return player.Play
	}

	p := player.New(file, player.WithOutput(port), player.WithCallback(stopOnKey))
	if err := p.Run(); err != nil {
		fmt.Printf("Error: %v\n", err)
	}
}

func render(args []string) {
	if len(args) < 2 {
		usage()
		return
	}
	file := open(args[0])
	if file == nil {
		return
	}

	sfPath := ""
	if len(args) > 2 {
		sfPath = args[2]
	} else {
		cfg, err := config.Load()
		if err != nil {
			fmt.Printf("Error loading config: %v\n", err)
			return
		}
		sfPath = cfg.Synth.SoundFont
	}

	sf, err := os.Open(sfPath)
	if err != nil {
		fmt.Printf("Error reading SoundFont %s: %v\n", sfPath, err)
		return
	}
	defer sf.Close()

	out, err := os.Create(args[1])
	if err != nil {
		fmt.Printf("Error creating %s: %v\n", args[1], err)
		return
	}

	if err := synth.Render(file, sf, out); err != nil {
		out.Close()
		fmt.Printf("Error: %v\n", err)
		return
	}
	if err := out.Close(); err != nil {
		fmt.Printf("Error writing %s: %v\n", args[1], err)
		return
	}
	fmt.Printf("Wrote %s\n", args[1])
}
