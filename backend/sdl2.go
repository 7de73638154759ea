//go:build sdl2

package backend

import (
	"fmt"

	"github.com/pocketdmg/gbcore/gbcore/video"
	"github.com/veandco/go-sdl2/sdl"
)

const windowScale = 3

// SDL2 is a Backend that presents frames in a real window via SDL2 and
// reads keyboard state for the joypad. Requires SDL2 development
// libraries and building with `-tags sdl2`; the default build skips this
// file entirely so the module has no cgo dependency unless asked for.
type SDL2 struct {
	window   *sdl.Window
	renderer *sdl.Renderer
	texture  *sdl.Texture
	buttons  uint8
	pixels   []byte
}

// NewSDL2 returns a ready-to-Init SDL2 backend.
func NewSDL2() *SDL2 {
	return &SDL2{}
}

func (s *SDL2) Init() error {
	if err := sdl.Init(sdl.INIT_VIDEO | sdl.INIT_EVENTS); err != nil {
		return fmt.Errorf("sdl2 init: %w", err)
	}

	window, err := sdl.CreateWindow(
		"gbcore",
		sdl.WINDOWPOS_CENTERED, sdl.WINDOWPOS_CENTERED,
		video.FramebufferWidth*windowScale, video.FramebufferHeight*windowScale,
		sdl.WINDOW_SHOWN,
	)
	if err != nil {
		sdl.Quit()
		return fmt.Errorf("sdl2 create window: %w", err)
	}
	s.window = window

	renderer, err := sdl.CreateRenderer(window, -1, sdl.RENDERER_ACCELERATED)
	if err != nil {
		window.Destroy()
		sdl.Quit()
		return fmt.Errorf("sdl2 create renderer: %w", err)
	}
	s.renderer = renderer

	texture, err := renderer.CreateTexture(
		sdl.PIXELFORMAT_RGBA8888,
		sdl.TEXTUREACCESS_STREAMING,
		video.FramebufferWidth, video.FramebufferHeight,
	)
	if err != nil {
		renderer.Destroy()
		window.Destroy()
		sdl.Quit()
		return fmt.Errorf("sdl2 create texture: %w", err)
	}
	s.texture = texture
	s.pixels = make([]byte, video.FramebufferWidth*video.FramebufferHeight*4)

	return nil
}

func (s *SDL2) Update(frame *video.FrameBuffer) (uint8, bool, error) {
	quit := false

	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		switch e := event.(type) {
		case *sdl.QuitEvent:
			quit = true
		case *sdl.KeyboardEvent:
			if e.Keysym.Sym == sdl.K_ESCAPE && e.State == sdl.PRESSED {
				quit = true
				continue
			}
			if bit, ok := sdlKeyToButton(e.Keysym.Sym); ok {
				if e.State == sdl.PRESSED {
					s.buttons |= bit
				} else {
					s.buttons &^= bit
				}
			}
		}
	}

	pixels := frame.ToSlice()
	for i, p := range pixels {
		s.pixels[i*4+0] = byte(p >> 24)
		s.pixels[i*4+1] = byte(p >> 16)
		s.pixels[i*4+2] = byte(p >> 8)
		s.pixels[i*4+3] = byte(p)
	}

	if err := s.texture.Update(nil, s.pixels, video.FramebufferWidth*4); err != nil {
		return s.buttons, quit, fmt.Errorf("sdl2 texture update: %w", err)
	}

	s.renderer.Clear()
	s.renderer.Copy(s.texture, nil, nil)
	s.renderer.Present()

	return s.buttons, quit, nil
}

func sdlKeyToButton(sym sdl.Keycode) (uint8, bool) {
	switch sym {
	case sdl.K_UP:
		return btnUp, true
	case sdl.K_DOWN:
		return btnDown, true
	case sdl.K_LEFT:
		return btnLeft, true
	case sdl.K_RIGHT:
		return btnRight, true
	case sdl.K_RETURN:
		return btnStart, true
	case sdl.K_TAB:
		return btnSelect, true
	case sdl.K_z:
		return btnA, true
	case sdl.K_x:
		return btnB, true
	}
	return 0, false
}

func (s *SDL2) Cleanup() error {
	if s.texture != nil {
		s.texture.Destroy()
	}
	if s.renderer != nil {
		s.renderer.Destroy()
	}
	if s.window != nil {
		s.window.Destroy()
	}
	sdl.Quit()
	return nil
}
