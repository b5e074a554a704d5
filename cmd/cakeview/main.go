// Command cakeview is a demo consumer of pkg/cake: it opens a MIDI file,
// parses it into a packed IntVector4 buffer, and draws a scrolling piano
// roll driven entirely by cake.Lookup calls against that buffer. It exists
// to exercise the packed format end-to-end, not as a production player.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"image"
	"image/color"
	"os"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/audio"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"github.com/sinshu/go-meltysynth/meltysynth"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/cakegen/cake/pkg/cake"
	"github.com/cakegen/cake/pkg/logger"
)

const (
	screenWidth  = 1024
	screenHeight = 600
	lowestKey    = 21  // A0
	highestKey   = 108 // C8
	rulerHeight  = 16  // top strip reserved for the tick ruler
	rollHeight   = screenHeight - rulerHeight
	pixelsPerKey = float64(rollHeight) / float64(highestKey-lowestKey+1)
)

func main() {
	path := flag.String("path", "", "MIDI file to view")
	tps := flag.Uint("tps", 480, "output ticks per second for the cake buffer")
	ram := flag.Bool("ram", false, "load the whole MIDI file into RAM before parsing")
	soundFont := flag.String("soundfont", "", "optional SoundFont (.sf2) path to enable audio playback")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	if err := logger.InitLogger(*logLevel); err != nil {
		fmt.Fprintln(os.Stderr, "failed to initialize logger:", err)
		os.Exit(1)
	}
	log := logger.GetLogger()

	if *path == "" {
		fmt.Fprintln(os.Stderr, "usage: cakeview --path song.mid [--tps 480] [--ram] [--soundfont font.sf2]")
		os.Exit(2)
	}

	m, err := cake.Open(*path, *ram, func(count int) {
		log.Debug("track discovered", "count", count)
	})
	if err != nil {
		log.Error("failed to open MIDI file", "path", *path, "error", err)
		os.Exit(1)
	}

	buf, err := m.ParseAllTracks(uint32(*tps))
	if err != nil {
		log.Error("failed to parse MIDI file", "path", *path, "error", err)
		os.Exit(1)
	}
	log.Info("parsed MIDI file", "ppq", m.PPQ(), "tracks", m.TrackCount(), "cells", len(buf))

	game := newPianoRollGame(buf, uint32(*tps))

	if *soundFont != "" {
		player, err := newSoundFontPlayer(*soundFont, *path)
		if err != nil {
			log.Error("failed to start SoundFont playback", "error", err)
			os.Exit(1)
		}
		defer player.Close()
		player.Play()
		game.player = player
	}

	ebiten.SetWindowSize(screenWidth, screenHeight)
	ebiten.SetWindowTitle("cakeview: " + *path)
	if err := ebiten.RunGame(game); err != nil {
		log.Error("ebiten run loop exited with an error", "error", err)
		os.Exit(1)
	}
}

// pianoRollGame draws the sounding note at every pitch for the current tick,
// reading exclusively through cake.Lookup against the packed buffer. A
// ruler strip along the top shows the playhead's position against the
// buffer's total span, and every C key is labeled on the left margin.
type pianoRollGame struct {
	buf        []cake.IntVector4
	tps        uint32
	tick       int32
	player     *soundFontPlayer
	totalTicks int32

	keyLabels   map[int]*ebiten.Image
	rulerLabels []rulerMark
}

// rulerMark is one pre-rendered tick-ruler label pinned at a fraction of
// the buffer's total span.
type rulerMark struct {
	frac  float64
	image *ebiten.Image
}

func newPianoRollGame(buf []cake.IntVector4, tps uint32) *pianoRollGame {
	g := &pianoRollGame{buf: buf, tps: tps, totalTicks: maxNoteEnd(buf)}

	g.keyLabels = make(map[int]*ebiten.Image)
	for key := lowestKey; key <= highestKey; key++ {
		if key%12 == 0 {
			g.keyLabels[key] = renderLabel(fmt.Sprintf("C%d", key/12-1))
		}
	}

	for _, frac := range []float64{0, 0.25, 0.5, 0.75, 1} {
		tick := int32(frac * float64(g.totalTicks))
		g.rulerLabels = append(g.rulerLabels, rulerMark{frac: frac, image: renderLabel(fmt.Sprintf("%d", tick))})
	}

	return g
}

func (g *pianoRollGame) Update() error {
	if g.player != nil {
		g.tick = g.player.currentTick(g.tps)
	} else {
		g.tick++
	}
	return nil
}

func (g *pianoRollGame) Draw(screen *ebiten.Image) {
	screen.Fill(color.RGBA{R: 18, G: 18, B: 24, A: 255})

	for key := lowestKey; key <= highestKey; key++ {
		cell := cake.Lookup(g.buf, key, g.tick)
		if cell.Val3 < 0 {
			continue // silence leaf
		}
		y := float32(float64(rulerHeight) + float64(highestKey-key)*pixelsPerKey)
		vector.DrawFilledRect(screen, 0, y, screenWidth, float32(pixelsPerKey)-1, noteColor(cell.Val3), false)
	}

	for key, label := range g.keyLabels {
		y := float64(rulerHeight) + float64(highestKey-key)*pixelsPerKey
		opts := &ebiten.DrawImageOptions{}
		opts.GeoM.Translate(2, y+1)
		screen.DrawImage(label, opts)
	}

	g.drawRuler(screen)

	ebitenutil.DebugPrint(screen, fmt.Sprintf("tick %d", g.tick))
}

// drawRuler paints a thin strip across the top of the window: a playhead
// marker at the tick's fraction of the buffer's total span, plus the
// pre-rendered tick labels at 0/25/50/75/100%.
func (g *pianoRollGame) drawRuler(screen *ebiten.Image) {
	vector.DrawFilledRect(screen, 0, 0, screenWidth, rulerHeight, color.RGBA{R: 40, G: 40, B: 48, A: 255}, false)

	for _, mark := range g.rulerLabels {
		x := float64(mark.frac * screenWidth)
		opts := &ebiten.DrawImageOptions{}
		opts.GeoM.Translate(x, 1)
		screen.DrawImage(mark.image, opts)
	}

	if g.totalTicks > 0 {
		playheadX := float32(float64(g.tick) / float64(g.totalTicks) * screenWidth)
		vector.DrawFilledRect(screen, playheadX, 0, 2, rulerHeight, color.RGBA{R: 255, G: 200, B: 80, A: 255}, false)
	}
}

func (g *pianoRollGame) Layout(outsideWidth, outsideHeight int) (int, int) {
	return screenWidth, screenHeight
}

// noteColor derives a stable color from a note's packed Color field
// (track_index*16 + channel) so each track/channel combination reads as a
// distinct hue on the roll.
func noteColor(packedColor int32) color.Color {
	hue := byte((packedColor * 37) % 255)
	return color.RGBA{R: hue, G: 200 - hue/2, B: 255 - hue, A: 220}
}

// maxNoteEnd walks every one of the 256 packed trees and returns the
// largest End tick among their real note leaves, giving the ruler a span
// to scale against. Recursion goes through an explicit stack, the same way
// the core serializer avoids the native call stack for unbounded depth.
func maxNoteEnd(buf []cake.IntVector4) int32 {
	var max int32
	for pitch := 0; pitch < 256; pitch++ {
		stack := []int32{buf[1+pitch].Val2}
		for len(stack) > 0 {
			idx := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if idx < 0 {
				cell := buf[-idx]
				if cell.Val3 >= 0 && cell.Val2 > max {
					max = cell.Val2
				}
				continue
			}
			cell := buf[idx]
			stack = append(stack, cell.Val2, cell.Val3)
		}
	}
	return max
}

// renderLabel rasterizes text with the same font.Drawer + basicfont
// pattern the teacher's pkg/graphics/text.go and pkg/engine/text.go use,
// then hands the rendered glyphs to ebiten as a texture.
func renderLabel(text string) *ebiten.Image {
	face := basicfont.Face7x13
	width := font.MeasureString(face, text).Ceil() + 2
	rgba := image.NewRGBA(image.Rect(0, 0, width, 13))

	drawer := &font.Drawer{
		Dst:  rgba,
		Src:  image.NewUniform(color.White),
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.I(1), Y: fixed.I(10)},
	}
	drawer.DrawString(text)

	return ebiten.NewImageFromImage(rgba)
}

// soundFontPlayer renders audio for the same MIDI file via go-meltysynth's
// own sequencer, independent of the cake buffer: the packed tree format
// intentionally discards the fine-grained event stream synthesis needs, so
// playback re-reads the file through meltysynth's own MidiFile type.
type soundFontPlayer struct {
	synth     *meltysynth.Synthesizer
	sequencer *meltysynth.MidiFileSequencer
	stream    *soundFontStream
	audioCtx  *audio.Context
	player    *audio.Player
	ppq       int
}

const sampleRate = 44100

func newSoundFontPlayer(soundFontPath, midiPath string) (*soundFontPlayer, error) {
	sf2Data, err := os.ReadFile(soundFontPath)
	if err != nil {
		return nil, fmt.Errorf("reading SoundFont: %w", err)
	}
	soundFont, err := meltysynth.NewSoundFont(bytes.NewReader(sf2Data))
	if err != nil {
		return nil, fmt.Errorf("parsing SoundFont: %w", err)
	}

	midiData, err := os.ReadFile(midiPath)
	if err != nil {
		return nil, fmt.Errorf("reading MIDI file: %w", err)
	}
	midi, err := meltysynth.NewMidiFile(bytes.NewReader(midiData))
	if err != nil {
		return nil, fmt.Errorf("parsing MIDI file for playback: %w", err)
	}

	settings := meltysynth.NewSynthesizerSettings(sampleRate)
	synth, err := meltysynth.NewSynthesizer(soundFont, settings)
	if err != nil {
		return nil, fmt.Errorf("creating synthesizer: %w", err)
	}

	sequencer := meltysynth.NewMidiFileSequencer(synth)
	sequencer.Play(midi, false)

	ctx := audio.NewContext(sampleRate)
	stream := &soundFontStream{sequencer: sequencer}
	player, err := ctx.NewPlayer(stream)
	if err != nil {
		return nil, fmt.Errorf("creating audio player: %w", err)
	}

	return &soundFontPlayer{
		synth:     synth,
		sequencer: sequencer,
		stream:    stream,
		audioCtx:  ctx,
		player:    player,
	}, nil
}

func (p *soundFontPlayer) Play()  { p.player.Play() }
func (p *soundFontPlayer) Close() { p.player.Close() }

// currentTick converts the stream's rendered sample count into seconds of
// audio and then into the same output-tick clock (seconds × tps)
// ParseAllTracks used. It counts samples handed to the audio player, not
// samples already heard, so it can run slightly ahead of audible playback.
func (p *soundFontPlayer) currentTick(tps uint32) int32 {
	samples := p.stream.sampleCount()
	seconds := float64(samples) / float64(sampleRate)
	return int32(seconds * float64(tps))
}

// soundFontStream adapts meltysynth's sequencer to io.Reader for
// ebiten/audio, mirroring the teacher's MIDIStream but without any coupling
// to the FILLY script VM's event queue.
type soundFontStream struct {
	sequencer *meltysynth.MidiFileSequencer
	count     int64
	mu        sync.Mutex
}

func (s *soundFontStream) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	samples := len(p) / 4
	if samples == 0 {
		return 0, nil
	}

	left := make([]float32, samples)
	right := make([]float32, samples)
	s.sequencer.Render(left, right)
	s.count += int64(samples)

	for i := range samples {
		l := int16(clampUnit(left[i]) * 32767)
		r := int16(clampUnit(right[i]) * 32767)
		p[i*4] = byte(l)
		p[i*4+1] = byte(l >> 8)
		p[i*4+2] = byte(r)
		p[i*4+3] = byte(r >> 8)
	}
	return len(p), nil
}

func (s *soundFontStream) sampleCount() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

func clampUnit(v float32) float32 {
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}
