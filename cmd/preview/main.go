// Package main opens a real-time preview window for one player of a
// timeline document. The ebiten game loop drives Player.Tick.
//
// Usage:
//
//	go run ./cmd/preview -f configs/timeline.yaml [--player main] [--scale 1]
//
// Controls:
//
//	Space        - Play / pause / resume
//	R            - Replay from 0
//	Left/Right   - Seek -/+ 5%
//	L            - Toggle loop
//	Q/Escape     - Quit
package main

import (
	"flag"
	"fmt"
	"image"
	"image/color"
	"os"
	"strings"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ChuLiYu/workclip/internal/config"
	"github.com/ChuLiYu/workclip/internal/effects"
	"github.com/ChuLiYu/workclip/internal/timeline"
)

const (
	screenWidth  = 960
	screenHeight = 540
	margin       = 20
	rowHeight    = 22
	trackTop     = 90
)

var (
	fileFlag   = flag.String("f", "configs/timeline.yaml", "timeline document")
	playerFlag = flag.String("player", "", "player id (default: the first player)")
	scaleFlag  = flag.Float64("scale", 1, "time scale applied to every tick")
)

var (
	colorBackground = color.RGBA{0x1e, 0x1e, 0x24, 0xff}
	colorClip       = color.RGBA{0x44, 0x55, 0x77, 0xff}
	colorActive     = color.RGBA{0x4f, 0xc3, 0xf7, 0xff}
	colorPlayhead   = color.RGBA{0xff, 0x52, 0x52, 0xff}
	colorTween      = color.RGBA{0x81, 0xc7, 0x84, 0xff}
)

// track is one clip row, flattened from the container tree.
type track struct {
	label      string
	begin, end float64 // percent of the player's content
	state      timeline.PlayableState
}

// flatten lists every clip of c depth-first, mapping nested footprints
// into the outer percent space [lo,hi].
func flatten(c *timeline.WorkClipContainer, lo, hi float64, depth int) []track {
	var out []track
	span := hi - lo
	for _, clip := range c.Clips() {
		r := clip.Range().Percent
		b, e := lo+r.Begin*span, lo+r.End*span
		name := timeline.NameOf(clip.State())
		if loops := clip.LoopCount(); loops > 1 {
			name += fmt.Sprintf(" x%g", loops)
		}
		out = append(out, track{label: strings.Repeat("  ", depth) + name, begin: b, end: e, state: clip.State()})
		if nested, ok := clip.State().(*timeline.WorkClipContainer); ok && clip.LoopCount() <= 1 {
			out = append(out, flatten(nested, b, e, depth+1)...)
		}
	}
	return out
}

// Preview implements ebiten.Game.
type Preview struct {
	built  *config.Built
	tracks []track
	fired  []string
}

func (g *Preview) player() *timeline.Player { return g.built.Player }

func (g *Preview) Update() error {
	p := g.player()
	switch {
	case inpututil.IsKeyJustPressed(ebiten.KeyQ), inpututil.IsKeyJustPressed(ebiten.KeyEscape):
		return ebiten.Termination
	case inpututil.IsKeyJustPressed(ebiten.KeySpace):
		switch p.State() {
		case timeline.StatePlaying:
			p.Pause()
		case timeline.StatePause:
			p.Resume()
		default:
			p.Play()
		}
	case inpututil.IsKeyJustPressed(ebiten.KeyR):
		p.Replay()
	case inpututil.IsKeyJustPressed(ebiten.KeyL):
		p.SetLoop(!p.Loop())
	case inpututil.IsKeyJustPressed(ebiten.KeyArrowLeft):
		p.Seek(p.Percent() - 0.05)
	case inpututil.IsKeyJustPressed(ebiten.KeyArrowRight):
		p.Seek(p.Percent() + 0.05)
	}

	p.Tick(*scaleFlag / float64(ebiten.TPS()))
	return nil
}

func fillRect(dst *ebiten.Image, x0, y0, x1, y1 int, clr color.Color) {
	if x1 <= x0 {
		x1 = x0 + 1
	}
	dst.SubImage(image.Rect(x0, y0, x1, y1)).(*ebiten.Image).Fill(clr)
}

func xOf(percent float64) int {
	return margin + int(percent*float64(screenWidth-2*margin))
}

func (g *Preview) Draw(screen *ebiten.Image) {
	screen.Fill(colorBackground)
	st := g.player().Status()

	ebitenutil.DebugPrintAt(screen, fmt.Sprintf("%s  %s  %.2fs / %.2fs  %.1f%%  loop=%t",
		st.Name, st.State, st.Elapsed, st.Duration, st.Percent*100, st.Loop), margin, 10)
	ebitenutil.DebugPrintAt(screen, "active: "+strings.Join(st.Active, ", "), margin, 30)
	ebitenutil.DebugPrintAt(screen, "Space play/pause  R replay  Left/Right seek  L loop  Q quit", margin, 50)

	active := make(map[string]bool, len(st.Active))
	for _, name := range st.Active {
		active[name] = true
	}
	for i, t := range g.tracks {
		y := trackTop + i*rowHeight
		clr := colorClip
		if active[timeline.NameOf(t.state)] {
			clr = colorActive
		}
		fillRect(screen, xOf(t.begin), y, xOf(t.end), y+rowHeight-4, clr)
		ebitenutil.DebugPrintAt(screen, t.label, xOf(t.begin)+4, y+2)
	}

	bottom := trackTop + len(g.tracks)*rowHeight
	x := xOf(st.Percent)
	fillRect(screen, x-1, trackTop-6, x+1, bottom, colorPlayhead)

	y := bottom + 20
	for _, tw := range g.built.Tweens {
		w := int(tw.Value() * 200)
		if w < 0 {
			w = 0
		}
		fillRect(screen, margin+140, y+2, margin+140+w, y+12, colorTween)
		ebitenutil.DebugPrintAt(screen, fmt.Sprintf("%-12s %.3f", tw.Name(), tw.Value()), margin, y)
		y += 18
	}
	for _, msg := range g.fired {
		ebitenutil.DebugPrintAt(screen, msg, margin, y)
		y += 18
	}
}

func (g *Preview) Layout(outsideWidth, outsideHeight int) (int, int) {
	return screenWidth, screenHeight
}

func main() {
	flag.Parse()
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	doc, err := config.LoadTimeline(*fileFlag)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load timeline")
	}
	if len(doc.Players) == 0 {
		log.Fatal().Msg("timeline has no players")
	}
	spec := doc.Players[0]
	if *playerFlag != "" {
		var ok bool
		if spec, ok = doc.Player(*playerFlag); !ok {
			log.Fatal().Str("player", *playerFlag).Msg("unknown player")
		}
	}

	g := &Preview{}
	cbs := timeline.NewCallbacks()
	for _, name := range doc.CallbackNames() {
		cbs.Register(name, func() {
			g.fired = append(g.fired, "callback: "+name)
			if len(g.fired) > 5 {
				g.fired = g.fired[1:]
			}
			log.Info().Str("callback", name).Msg("callback fired")
		})
	}
	built, err := doc.Build(spec, config.Env{Callbacks: cbs})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build player")
	}
	for _, tr := range built.Triggers {
		tr.OnFire(func(t *effects.Trigger, percent float64) {
			log.Debug().Str("trigger", t.Name()).Float64("percent", percent).Msg("trigger fired")
		})
	}
	g.built = built
	g.tracks = flatten(built.Content, 0, 1, 0)
	built.Player.Enter()

	ebiten.SetWindowSize(screenWidth, screenHeight)
	ebiten.SetWindowTitle("workclip preview - " + spec.ID)
	if err := ebiten.RunGame(g); err != nil {
		log.Fatal().Err(err).Msg("preview failed")
	}
}
