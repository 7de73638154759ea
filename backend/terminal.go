package backend

import (
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/pocketdmg/gbcore/gbcore/video"
)

// Joypad bit layout matching Core.SetButtons: b7..b0 = Down, Up, Left,
// Right, Start, Select, B, A.
const (
	btnA uint8 = 1 << iota
	btnB
	btnSelect
	btnStart
	btnRight
	btnLeft
	btnUp
	btnDown
)

// keyRepeatTimeout is how long a key press is considered "held" after the
// last matching key event. Terminals report key-down events only, not
// key-up, so a held arrow key is simulated by the terminal's own OS-level
// key repeat refreshing this deadline every frame the key is still down.
const keyRepeatTimeout = 120 * time.Millisecond

// Terminal is a Backend that renders each frame as half-block characters
// (two vertical Game Boy pixels packed into one terminal cell, foreground
// = bottom pixel, background = top pixel) via tcell, and maps arrow keys
// plus Z/X/Enter/Tab to the joypad.
type Terminal struct {
	screen   tcell.Screen
	lastSeen map[uint8]time.Time
}

// NewTerminal returns a ready-to-Init terminal backend.
func NewTerminal() *Terminal {
	return &Terminal{lastSeen: make(map[uint8]time.Time)}
}

func (t *Terminal) Init() error {
	screen, err := tcell.NewScreen()
	if err != nil {
		return err
	}
	if err := screen.Init(); err != nil {
		return err
	}
	screen.SetStyle(tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorWhite))
	screen.Clear()
	t.screen = screen
	return nil
}

func (t *Terminal) Update(frame *video.FrameBuffer) (uint8, bool, error) {
	now := time.Now()
	quit := false

	for t.screen.HasPendingEvent() {
		switch ev := t.screen.PollEvent().(type) {
		case *tcell.EventKey:
			if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC {
				quit = true
				continue
			}
			if bit, ok := keyToButton(ev); ok {
				t.lastSeen[bit] = now
			}
		case *tcell.EventResize:
			t.screen.Sync()
		}
	}

	var buttons uint8
	for bit, last := range t.lastSeen {
		if now.Sub(last) < keyRepeatTimeout {
			buttons |= bit
		} else {
			delete(t.lastSeen, bit)
		}
	}

	t.render(frame)

	return buttons, quit, nil
}

func keyToButton(ev *tcell.EventKey) (uint8, bool) {
	switch ev.Key() {
	case tcell.KeyUp:
		return btnUp, true
	case tcell.KeyDown:
		return btnDown, true
	case tcell.KeyLeft:
		return btnLeft, true
	case tcell.KeyRight:
		return btnRight, true
	case tcell.KeyEnter:
		return btnStart, true
	case tcell.KeyTab:
		return btnSelect, true
	case tcell.KeyRune:
		switch ev.Rune() {
		case 'z', 'Z':
			return btnA, true
		case 'x', 'X':
			return btnB, true
		}
	}
	return 0, false
}

// pixelToShade maps an emitted RGBA color back to a 0-3 shade level for
// terminal foreground/background coloring.
func pixelToShade(pixel uint32) int {
	switch pixel {
	case uint32(video.BlackColor):
		return 0
	case uint32(video.DarkGreyColor):
		return 1
	case uint32(video.LightGreyColor):
		return 2
	case uint32(video.WhiteColor):
		return 3
	default:
		return 0
	}
}

func shadeColor(shade int) tcell.Color {
	switch shade {
	case 0:
		return tcell.ColorBlack
	case 1:
		return tcell.NewRGBColor(76, 76, 76)
	case 2:
		return tcell.NewRGBColor(152, 152, 152)
	default:
		return tcell.ColorWhite
	}
}

func (t *Terminal) render(frame *video.FrameBuffer) {
	for y := 0; y < video.FramebufferHeight; y += 2 {
		for x := 0; x < video.FramebufferWidth; x++ {
			topShade := pixelToShade(frame.GetPixel(uint(x), uint(y)))
			bottomShade := pixelToShade(frame.GetPixel(uint(x), uint(y+1)))
			style := tcell.StyleDefault.Foreground(shadeColor(bottomShade)).Background(shadeColor(topShade))
			t.screen.SetContent(x, y/2, '▄', nil, style)
		}
	}
	t.screen.Show()
}

func (t *Terminal) Cleanup() error {
	if t.screen != nil {
		t.screen.Fini()
	}
	return nil
}
