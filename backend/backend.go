// Package backend defines the presentation/input surface a driver hosts a
// Core on: rendering a frame to some output and turning platform input
// events into the set_buttons bitmask the core understands. Backends are
// collaborators outside the emulation core, per spec: the core never
// imports this package.
package backend

import "github.com/pocketdmg/gbcore/gbcore/video"

// Backend renders frames and reports input for one presentation surface
// (a terminal, an SDL2 window, or nothing at all for headless runs).
type Backend interface {
	// Init acquires whatever platform resources this backend needs
	// (a terminal screen, a window). Safe to call exactly once.
	Init() error

	// Update presents frame and polls for input since the last call.
	// buttons uses the set_buttons bit layout: b7..b0 = Down, Up, Left,
	// Right, Start, Select, B, A. quit reports the user asked to exit
	// (e.g. closed the window, pressed Ctrl-C, Escape).
	Update(frame *video.FrameBuffer) (buttons uint8, quit bool, err error)

	// Cleanup releases platform resources. Safe to call even if Init
	// failed partway through.
	Cleanup() error
}
