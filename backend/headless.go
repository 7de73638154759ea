package backend

import (
	"log/slog"

	"github.com/pocketdmg/gbcore/gbcore/video"
)

// Headless is a no-op Backend for batch/test-ROM driving: it never reads
// input and never renders, so a driver can run a Core at full speed with
// no presentation cost. This is what test/blargg and test/integration
// exercise the core through; cmd/gbcore uses it for the -headless flag.
type Headless struct {
	frameCount uint64
}

// NewHeadless returns a ready-to-use headless backend.
func NewHeadless() *Headless {
	return &Headless{}
}

func (h *Headless) Init() error {
	slog.Debug("headless backend initialized")
	return nil
}

// Update counts frames and never reports input or a quit request; callers
// that need a run limit should stop calling Update themselves (or use
// Core.ConfigureCompletionDetection/RunUntilComplete instead of a backend
// loop at all).
func (h *Headless) Update(frame *video.FrameBuffer) (uint8, bool, error) {
	h.frameCount++
	return 0, false, nil
}

func (h *Headless) Cleanup() error {
	return nil
}
