package main

import (
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/cbegin/polyvoice-go"
	"github.com/cbegin/polyvoice-go/internal/event"
	"github.com/cbegin/polyvoice-go/internal/params"
)

const (
	windowW      = 960
	windowH      = 600
	uiSampleRate = 48000
	uiBlockSize  = 256

	textScale = 2
	charW     = 7 * textScale
	lineH     = 14 * textScale

	ringLen  = 16384
	scopeLen = 2048

	// Piano range drawn at the bottom: C2..B6.
	pianoLow  = 36
	pianoHigh = 95
)

var (
	bgColor         = color.RGBA{192, 192, 192, 255}
	panelColor      = color.RGBA{192, 192, 192, 255}
	borderColor     = color.RGBA{128, 128, 128, 255}
	bevelLight      = color.RGBA{255, 255, 255, 255}
	bevelDarker     = color.RGBA{64, 64, 64, 255}
	sunkenBgColor   = color.RGBA{24, 24, 32, 255}
	sliderFillColor = color.RGBA{0, 0, 128, 255}
	waveColor       = color.RGBA{80, 200, 255, 220}
	heldKeyColor    = color.RGBA{0, 0, 128, 255}
)

// keyNotes maps two rows of the computer keyboard onto semitones above the
// current octave's C.
var keyNotes = map[ebiten.Key]int{
	ebiten.KeyZ: 0, ebiten.KeyS: 1, ebiten.KeyX: 2, ebiten.KeyD: 3, ebiten.KeyC: 4,
	ebiten.KeyV: 5, ebiten.KeyG: 6, ebiten.KeyB: 7, ebiten.KeyH: 8, ebiten.KeyN: 9,
	ebiten.KeyJ: 10, ebiten.KeyM: 11, ebiten.KeyComma: 12,
	ebiten.KeyQ: 12, ebiten.KeyDigit2: 13, ebiten.KeyW: 14, ebiten.KeyDigit3: 15, ebiten.KeyE: 16,
	ebiten.KeyR: 17, ebiten.KeyDigit5: 18, ebiten.KeyT: 19, ebiten.KeyDigit6: 20, ebiten.KeyY: 21,
	ebiten.KeyDigit7: 22, ebiten.KeyU: 23, ebiten.KeyI: 24,
}

// scope keeps the most recent mono output for drawing.
type scope struct {
	mu   sync.Mutex
	ring [ringLen]float32
	pos  int
}

// Tap runs on the audio thread.
func (s *scope) Tap(left, right []float32) {
	s.mu.Lock()
	for _, v := range left {
		s.ring[s.pos] = v
		s.pos = (s.pos + 1) % ringLen
	}
	s.mu.Unlock()
}

func (s *scope) Snapshot(dst []float32) {
	s.mu.Lock()
	start := (s.pos - len(dst) + ringLen) % ringLen
	for i := range dst {
		dst[i] = s.ring[(start+i)%ringLen]
	}
	s.mu.Unlock()
}

type game struct {
	player *polyvoice.Player
	scope  *scope
	wave   []float32
	peak   float64

	octave   int
	held     map[ebiten.Key]int
	sounding map[int]int
	button   bool
	dragging params.ID

	song     *event.Timeline
	songName string

	status    string
	textCache map[string]*ebiten.Image
}

func newGame(song *event.Timeline, songName string) (*game, error) {
	sc := &scope{}
	pl, err := polyvoice.NewPlayer(uiSampleRate,
		polyvoice.WithBlockSize(uiBlockSize),
		polyvoice.WithSampleTap(sc.Tap),
		polyvoice.WithLogger(slog.Default()),
	)
	if err != nil {
		return nil, err
	}
	if err := pl.Start(); err != nil {
		return nil, err
	}
	return &game{
		player:    pl,
		scope:     sc,
		wave:      make([]float32, scopeLen),
		octave:    4,
		held:      make(map[ebiten.Key]int),
		sounding:  make(map[int]int),
		dragging:  -1,
		song:      song,
		songName:  songName,
		status:    "Ready",
		textCache: make(map[string]*ebiten.Image, 256),
	}, nil
}

func (g *game) Update() error {
	g.handleKeys()
	g.handleMouse()
	return nil
}

func (g *game) noteOn(note int) {
	g.sounding[note]++
	g.player.NoteOn(note, 100)
}

func (g *game) noteOff(note int) {
	if g.sounding[note]--; g.sounding[note] <= 0 {
		delete(g.sounding, note)
		g.player.NoteOff(note)
	}
}

func (g *game) handleKeys() {
	for key, semi := range keyNotes {
		if inpututil.IsKeyJustPressed(key) {
			note := (g.octave+1)*12 + semi
			g.held[key] = note
			g.noteOn(note)
		}
		if inpututil.IsKeyJustReleased(key) {
			if note, ok := g.held[key]; ok {
				delete(g.held, key)
				g.noteOff(note)
			}
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeySpace) {
		g.button = true
		g.player.AllNotesOn()
	}
	if inpututil.IsKeyJustReleased(ebiten.KeySpace) {
		g.button = false
		g.player.AllNotesOff()
		clear(g.held)
		clear(g.sounding)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyArrowLeft) && g.octave > 1 {
		g.octave--
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyArrowRight) && g.octave < 7 {
		g.octave++
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEnter) && g.song != nil {
		if err := g.player.PlayTimeline(g.song, time.Second); err != nil {
			g.status = "ERROR - " + err.Error()
		} else {
			g.status = "Playing " + g.songName
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		g.player.AllNotesOff()
		clear(g.held)
		clear(g.sounding)
		g.status = "All notes off"
	}
}

func (g *game) handleMouse() {
	mx, my := ebiten.CursorPosition()
	if inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) {
		for id := params.ID(0); id < params.Count; id++ {
			if pointInRect(mx, my, sliderRect(id)) {
				g.dragging = id
			}
		}
	}
	if !ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft) {
		g.dragging = -1
		return
	}
	if g.dragging >= 0 {
		r := sliderTrack(sliderRect(g.dragging))
		v := float64(mx-r.Min.X) / float64(r.Dx())
		g.player.SetParameter(g.dragging, float32(clamp(v, 0, 1)))
	}
}

func sliderRect(id params.ID) image.Rectangle {
	y := 16 + int(id)*48
	return image.Rect(16, y, 16+440, y+40)
}

func sliderTrack(rect image.Rectangle) image.Rectangle {
	return image.Rect(rect.Min.X+160, rect.Min.Y+rect.Dy()/2-4, rect.Max.X-16, rect.Min.Y+rect.Dy()/2+4)
}

func (g *game) Draw(screen *ebiten.Image) {
	screen.Fill(bgColor)
	for id := params.ID(0); id < params.Count; id++ {
		g.drawSlider(screen, id)
	}

	info := image.Rect(472, 16, windowW-16, 200)
	g.drawSunkenPanel(screen, info)
	g.drawText(screen, fmt.Sprintf("Octave %d  (<- ->)", g.octave), info.Min.X+8, info.Min.Y+8)
	g.drawText(screen, fmt.Sprintf("Voices %d", g.player.ActiveVoices()), info.Min.X+8, info.Min.Y+8+lineH)
	btn := "Button: up (space)"
	if g.button {
		btn = "Button: DOWN"
	}
	g.drawText(screen, btn, info.Min.X+8, info.Min.Y+8+2*lineH)
	if g.song != nil {
		g.drawText(screen, shortenEnd("Enter: "+g.songName, (info.Dx()-16)/charW), info.Min.X+8, info.Min.Y+8+3*lineH)
	}
	g.drawText(screen, shortenEnd(g.status, (info.Dx()-16)/charW), info.Min.X+8, info.Min.Y+8+4*lineH)

	scopeRect := image.Rect(16, 216, windowW-16, 440)
	g.drawDarkPanel(screen, scopeRect)
	g.scope.Snapshot(g.wave)
	g.drawWaveform(screen, scopeRect.Inset(4))

	g.drawPiano(screen, image.Rect(16, 456, windowW-16, windowH-16))
}

func (g *game) drawSlider(screen *ebiten.Image, id params.ID) {
	rect := sliderRect(id)
	g.drawPanel(screen, rect)
	v := float64(g.player.Parameter(id))
	g.drawText(screen, fmt.Sprintf("%-5.5s %3d", id.String(), int(v*100+0.5)), rect.Min.X+8, rect.Min.Y+6)

	track := sliderTrack(rect)
	ebitenutil.DrawRect(screen, float64(track.Min.X), float64(track.Min.Y), float64(track.Dx()), 8, bevelDarker)
	ebitenutil.DrawRect(screen, float64(track.Min.X), float64(track.Min.Y), float64(track.Dx()-1), 1, borderColor)
	fillW := int(float64(track.Dx()) * v)
	if fillW > 2 {
		ebitenutil.DrawRect(screen, float64(track.Min.X+1), float64(track.Min.Y+1), float64(fillW-1), 6, sliderFillColor)
	}
	knobX := min(max(track.Min.X+fillW-5, track.Min.X-5), track.Max.X-5)
	knob := image.Rect(knobX, track.Min.Y-4, knobX+10, track.Min.Y+12)
	ebitenutil.DrawRect(screen, float64(knob.Min.X), float64(knob.Min.Y), float64(knob.Dx()), float64(knob.Dy()), panelColor)
	drawBorder(screen, knob)
}

func (g *game) drawWaveform(screen *ebiten.Image, rect image.Rectangle) {
	samples := g.wave
	width, height := rect.Dx(), rect.Dy()
	midY := rect.Min.Y + height/2
	ebitenutil.DrawRect(screen, float64(rect.Min.X), float64(midY), float64(width), 1, color.RGBA{40, 44, 58, 100})

	// Auto-gain: fast attack, slow release.
	target := 0.01
	for _, s := range samples {
		target = max(target, float64(max(s, -s)))
	}
	if target > g.peak {
		g.peak = g.peak*0.3 + target*0.7
	} else {
		g.peak = g.peak*0.995 + target*0.005
	}
	gain := float64(height/2-2) / max(g.peak, 0.01)

	trigger := findZeroCrossing(samples, len(samples)/4)
	visible := max(len(samples)-trigger, 2)
	prevY := midY - int(float64(samples[trigger])*gain)
	for px := 1; px < width; px++ {
		si := min(trigger+px*visible/width, len(samples)-1)
		y := midY - int(float64(samples[si])*gain)
		ebitenutil.DrawLine(screen, float64(rect.Min.X+px-1), float64(prevY), float64(rect.Min.X+px), float64(y), waveColor)
		prevY = y
	}
}

func findZeroCrossing(samples []float32, searchLen int) int {
	for i := 1; i < searchLen && i < len(samples); i++ {
		if samples[i-1] <= 0 && samples[i] > 0 {
			return i
		}
	}
	return 0
}

func isBlackKey(note int) bool {
	switch note % 12 {
	case 1, 3, 6, 8, 10:
		return true
	}
	return false
}

func (g *game) drawPiano(screen *ebiten.Image, rect image.Rectangle) {
	whites := 0
	for n := pianoLow; n <= pianoHigh; n++ {
		if !isBlackKey(n) {
			whites++
		}
	}
	keyW := float64(rect.Dx()) / float64(whites)
	h := float64(rect.Dy())
	x := float64(rect.Min.X)
	y := float64(rect.Min.Y)
	var blackX []float64
	var blackNotes []int
	for n := pianoLow; n <= pianoHigh; n++ {
		if isBlackKey(n) {
			blackX = append(blackX, x-keyW*0.3)
			blackNotes = append(blackNotes, n)
			continue
		}
		fill := color.Color(color.White)
		if g.sounding[n] > 0 || g.button {
			fill = heldKeyColor
		}
		ebitenutil.DrawRect(screen, x, y, keyW-1, h, fill)
		x += keyW
	}
	for i, bx := range blackX {
		fill := color.Color(color.Black)
		if g.sounding[blackNotes[i]] > 0 || g.button {
			fill = heldKeyColor
		}
		ebitenutil.DrawRect(screen, bx, y, keyW*0.6, h*0.6, fill)
	}
}

func (g *game) Layout(outsideW, outsideH int) (int, int) { return windowW, windowH }

func (g *game) Close() { _ = g.player.Stop() }

func (g *game) drawPanel(screen *ebiten.Image, rect image.Rectangle) {
	ebitenutil.DrawRect(screen, float64(rect.Min.X), float64(rect.Min.Y), float64(rect.Dx()), float64(rect.Dy()), panelColor)
	drawBorder(screen, rect)
}

func (g *game) drawSunkenPanel(screen *ebiten.Image, rect image.Rectangle) {
	ebitenutil.DrawRect(screen, float64(rect.Min.X), float64(rect.Min.Y), float64(rect.Dx()), float64(rect.Dy()), sunkenBgColor)
	drawSunkenBorder(screen, rect)
}

func (g *game) drawDarkPanel(screen *ebiten.Image, rect image.Rectangle) {
	ebitenutil.DrawRect(screen, float64(rect.Min.X), float64(rect.Min.Y), float64(rect.Dx()), float64(rect.Dy()), color.Black)
	drawSunkenBorder(screen, rect)
}

// drawBorder draws a raised bevel.
func drawBorder(screen *ebiten.Image, rect image.Rectangle) {
	x, y := float64(rect.Min.X), float64(rect.Min.Y)
	w, h := float64(rect.Dx()), float64(rect.Dy())
	ebitenutil.DrawRect(screen, x, y, w-1, 1, bevelLight)
	ebitenutil.DrawRect(screen, x, y+1, 1, h-2, bevelLight)
	ebitenutil.DrawRect(screen, x, y+h-1, w, 1, bevelDarker)
	ebitenutil.DrawRect(screen, x+w-1, y, 1, h, bevelDarker)
}

func drawSunkenBorder(screen *ebiten.Image, rect image.Rectangle) {
	x, y := float64(rect.Min.X), float64(rect.Min.Y)
	w, h := float64(rect.Dx()), float64(rect.Dy())
	ebitenutil.DrawRect(screen, x, y, w-1, 1, borderColor)
	ebitenutil.DrawRect(screen, x, y+1, 1, h-2, borderColor)
	ebitenutil.DrawRect(screen, x, y+h-1, w, 1, bevelLight)
	ebitenutil.DrawRect(screen, x+w-1, y, 1, h, bevelLight)
}

func (g *game) drawText(screen *ebiten.Image, msg string, x int, y int) {
	if msg == "" {
		return
	}
	img := g.textCache[msg]
	if img == nil {
		img = ebiten.NewImage(max(1, len([]rune(msg))*7), 14)
		ebitenutil.DebugPrintAt(img, msg, 0, 0)
		if len(g.textCache) > 1000 {
			clear(g.textCache)
		}
		g.textCache[msg] = img
	}
	shadow := &ebiten.DrawImageOptions{}
	shadow.GeoM.Scale(textScale, textScale)
	shadow.GeoM.Translate(float64(x+2), float64(y+2))
	shadow.ColorScale.Scale(0, 0, 0, 1)
	screen.DrawImage(img, shadow)
	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(textScale, textScale)
	op.GeoM.Translate(float64(x), float64(y))
	screen.DrawImage(img, op)
}

func shortenEnd(s string, maxChars int) string {
	r := []rune(s)
	if len(r) <= maxChars {
		return s
	}
	if maxChars <= 3 {
		return string(r[:max(0, maxChars)])
	}
	return string(r[:maxChars-3]) + "..."
}

func clamp(v, minV, maxV float64) float64 {
	return min(max(v, minV), maxV)
}

func pointInRect(x, y int, rect image.Rectangle) bool {
	return image.Pt(x, y).In(rect)
}

func main() {
	var (
		song     *event.Timeline
		songName string
	)
	if len(os.Args) > 1 {
		p, err := filepath.Abs(os.Args[1])
		if err != nil {
			fatal(fmt.Errorf("resolve %q: %w", os.Args[1], err))
		}
		f, err := os.Open(p)
		if err != nil {
			fatal(err)
		}
		song, err = event.LoadSMF(f, uiSampleRate)
		f.Close()
		if err != nil {
			fatal(err)
		}
		songName = filepath.Base(p)
	}

	g, err := newGame(song, songName)
	if err != nil {
		fatal(err)
	}
	defer g.Close()

	ebiten.SetWindowSize(windowW, windowH)
	ebiten.SetWindowTitle("polyvoice")
	if err := ebiten.RunGame(g); err != nil {
		fatal(err)
	}
}

func fatal(err error) {
	slog.Error("polyvoice_ui failed", "err", err)
	os.Exit(1)
}
