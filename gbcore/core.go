// Package gbcore implements a cycle-accurate DMG (original Game Boy)
// emulation core: CPU, PPU, APU, timer, joypad and MBC1/2/3/5 cartridge
// banking, driven from a single synchronous tick loop with no internal
// concurrency. Everything outside this package (rendering, audio output,
// input devices, persistence) is a collaborator, not part of the core.
package gbcore

import (
	"crypto/md5"
	"fmt"
	"log/slog"
	"os"

	"github.com/pocketdmg/gbcore/gbcore/cpu"
	"github.com/pocketdmg/gbcore/gbcore/memory"
	"github.com/pocketdmg/gbcore/gbcore/video"
)

// cyclesPerFrame is the number of t-cycles in one 59.7275 Hz DMG frame
// (70224 = (80+172+204)*144 + 4560 VBlank cycles).
const cyclesPerFrame = 70224

// LoadError is returned by New/NewWithFile when a ROM image fails header
// validation or uses an MBC this core does not implement.
type LoadError = memory.CartLoadError

// Palette re-exports the video package's color table type so callers don't
// need to import gbcore/video just to build Options.
type Palette = video.Palette

var (
	// GreyPalette is the default 4-shade grayscale palette.
	GreyPalette = video.GreyPalette
	// GreenDMGPalette reproduces the original hardware's tinted green LCD.
	GreenDMGPalette = video.GreenDMGPalette
)

// Options configures cartridge validation strictness and pixel coloring.
// The zero value is valid: header checks run, and GreyPalette is used.
type Options struct {
	// SkipHeaderChecks suppresses BadLogo, HeaderChecksumMismatch and
	// GlobalChecksumMismatch rejection. TruncatedRom and UnsupportedMBC
	// are always enforced.
	SkipHeaderChecks bool
	// Palette maps BGP/OBPn 2-bit color indices to emitted colors. The
	// zero value resolves to GreyPalette.
	Palette Palette
}

func (o Options) resolvedPalette() Palette {
	if o.Palette == (Palette{}) {
		return GreyPalette
	}
	return o.Palette
}

// AudioSample is one stereo output pair produced by the APU mixer.
type AudioSample struct {
	Left, Right int16
}

// FrameResult is returned by StepFrame: the completed frame's pixel data
// plus every audio sample produced while stepping it.
type FrameResult struct {
	Framebuffer  *video.FrameBuffer
	AudioSamples []AudioSample
}

// buttonBits maps set_buttons' mask bit position to the joypad key it
// represents: b7..b0 = Down, Up, Left, Right, Start, Select, B, A.
var buttonBits = [8]memory.JoypadKey{
	0: memory.JoypadA,
	1: memory.JoypadB,
	2: memory.JoypadSelect,
	3: memory.JoypadStart,
	4: memory.JoypadRight,
	5: memory.JoypadLeft,
	6: memory.JoypadUp,
	7: memory.JoypadDown,
}

// Core is a complete DMG system: CPU, PPU, timer, serial stub and APU
// wired to a single memory bus, plus the cartridge it was constructed
// from (kept around so Reset can rebuild a fresh MBC while preserving
// battery RAM).
type Core struct {
	cart *memory.Cartridge
	mem  *memory.MMU
	cpu  *cpu.CPU
	gpu  *video.GPU

	palette Palette

	buttonState uint8 // last mask passed to SetButtons

	instructionCount uint64

	// blargg/dmg-acid2-style headless run harness, armed by
	// ConfigureCompletionDetection and consumed by RunUntilComplete.
	maxFrames    uint64
	minLoopCount int
}

// New constructs a Core from a ROM image and an optional prior battery-RAM
// snapshot (pass nil for none). Returns a *LoadError, never a generic error,
// so callers can switch on its Kind.
func New(romBytes []byte, sramBytes []byte, opts Options) (*Core, *LoadError) {
	cart, err := memory.LoadCartridge(romBytes, opts.SkipHeaderChecks)
	if err != nil {
		return nil, err
	}

	mem := memory.NewWithCartridge(cart)
	restoreSRAM(mem, sramBytes)

	palette := opts.resolvedPalette()
	gpu := video.NewGpu(mem)
	gpu.SetPalette(palette)

	c := &Core{
		cart:    cart,
		mem:     mem,
		cpu:     cpu.New(mem),
		gpu:     gpu,
		palette: palette,
	}

	slog.Debug("core constructed", "title", cart.Title(), "mbc", cart.MBCType())

	return c, nil
}

// NewWithFile reads romPath and constructs a Core from it with default
// Options. It exists mainly for test harnesses and simple CLI drivers;
// callers that need a battery-RAM snapshot or custom Options should call
// New directly.
func NewWithFile(romPath string) (*Core, error) {
	romBytes, err := os.ReadFile(romPath)
	if err != nil {
		return nil, fmt.Errorf("reading ROM %q: %w", romPath, err)
	}

	core, loadErr := New(romBytes, nil, Options{})
	if loadErr != nil {
		return nil, loadErr
	}
	return core, nil
}

func restoreSRAM(mem *memory.MMU, sramBytes []byte) {
	if len(sramBytes) == 0 {
		return
	}
	ram, ok := mem.SRAMBytes()
	if !ok {
		slog.Warn("sram snapshot supplied but cartridge has no battery RAM")
		return
	}
	copy(ram, sramBytes)
}

// StepFrame advances the system until the PPU completes a frame (the
// LY=143 HBlank -> LY=144 VBlank transition), or until a hardware freeze
// or LCD-off condition would otherwise hang the caller, whichever comes
// first. Once the CPU has frozen on an illegal opcode, this is a no-op
// that keeps returning the frame/audio state as it was at the freeze.
func (c *Core) StepFrame() FrameResult {
	if c.cpu.Frozen() {
		return c.currentFrameResult()
	}

	startFrame := c.gpu.FrameCount()
	cyclesRun := 0

	// The LCD can be switched off indefinitely, in which case the PPU
	// never completes another frame; cap at 2 frames' worth of cycles so
	// StepFrame always returns instead of spinning forever.
	for c.gpu.FrameCount() == startFrame && cyclesRun < 2*cyclesPerFrame {
		cycles := c.cpu.Tick()
		c.mem.Tick(cycles)
		c.gpu.Tick(cycles)
		c.mem.APU.Tick(cycles)

		c.instructionCount++
		cyclesRun += cycles

		if c.cpu.Frozen() {
			break
		}
	}

	return c.currentFrameResult()
}

// RunUntilFrame is an alias for StepFrame kept for callers that only care
// about the framebuffer and ignore audio output.
func (c *Core) RunUntilFrame() {
	c.StepFrame()
}

func (c *Core) currentFrameResult() FrameResult {
	pending := c.mem.APU.PendingSamples()
	raw := c.mem.APU.GetSamples(pending)

	samples := make([]AudioSample, pending)
	for i := range samples {
		samples[i] = AudioSample{Left: raw[i*2], Right: raw[i*2+1]}
	}

	return FrameResult{
		Framebuffer:  c.gpu.GetFrameBuffer(),
		AudioSamples: samples,
	}
}

// SetButtons applies the full 8-button state in one call. Bit layout:
// b7..b0 = Down, Up, Left, Right, Start, Select, B, A, active-high in the
// argument (a set bit means pressed); internally the joypad register is
// active-low, so transitions are inverted before being applied.
func (c *Core) SetButtons(mask uint8) {
	changed := mask ^ c.buttonState
	for bitPos := uint(0); bitPos < 8; bitPos++ {
		if changed&(1<<bitPos) == 0 {
			continue
		}
		key := buttonBits[bitPos]
		if mask&(1<<bitPos) != 0 {
			c.mem.HandleKeyPress(key)
		} else {
			c.mem.HandleKeyRelease(key)
		}
	}
	c.buttonState = mask
}

// SnapshotSRAM returns the cartridge's battery-backed RAM, or false if the
// loaded cartridge declares no battery. The returned slice is a copy; the
// caller may persist or mutate it freely.
func (c *Core) SnapshotSRAM() ([]byte, bool) {
	ram, ok := c.mem.SRAMBytes()
	if !ok {
		return nil, false
	}
	out := make([]byte, len(ram))
	copy(out, ram)
	return out, true
}

// Reset performs a cold reset: CPU, PPU, timer, serial and APU all return
// to their post-boot-ROM defaults, and joypad state clears, but cartridge
// battery RAM is preserved across the reset.
func (c *Core) Reset() {
	var sram []byte
	if ram, ok := c.mem.SRAMBytes(); ok {
		sram = make([]byte, len(ram))
		copy(sram, ram)
	}

	mem := memory.NewWithCartridge(c.cart)
	restoreSRAM(mem, sram)

	gpu := video.NewGpu(mem)
	gpu.SetPalette(c.palette)

	c.mem = mem
	c.cpu = cpu.New(mem)
	c.gpu = gpu
	c.buttonState = 0
	c.instructionCount = 0
}

// GetCurrentFrame returns the framebuffer as it stands right now, without
// advancing the system. Useful for UIs that redraw independently of the
// emulation clock.
func (c *Core) GetCurrentFrame() *video.FrameBuffer {
	return c.gpu.GetFrameBuffer()
}

// GetMMU exposes the memory bus directly, for debuggers and backends that
// need raw register access beyond the Core API (e.g. reading WRAM to check
// a test ROM's pass/fail sentinel byte).
func (c *Core) GetMMU() *memory.MMU {
	return c.mem
}

// GetCPU exposes the CPU directly, for debuggers that want to inspect
// register state or program counter.
func (c *Core) GetCPU() *cpu.CPU {
	return c.cpu
}

// GetInstructionCount returns the number of instructions retired since
// construction or the last Reset.
func (c *Core) GetInstructionCount() uint64 {
	return c.instructionCount
}

// GetFrameCount returns the number of frames completed since construction
// or the last Reset.
func (c *Core) GetFrameCount() uint64 {
	return c.gpu.FrameCount()
}

// ConfigureCompletionDetection arms RunUntilComplete's stopping condition:
// it runs for at most maxFrames frames, stopping earlier once the
// framebuffer stops changing for minLoopCount consecutive frames (the
// usual signature of a test ROM that has printed its result and is now
// looping forever). minLoopCount <= 0 disables the early-stop check.
func (c *Core) ConfigureCompletionDetection(maxFrames uint64, minLoopCount int) {
	c.maxFrames = maxFrames
	c.minLoopCount = minLoopCount
}

// RunUntilComplete steps frames according to the budget set by
// ConfigureCompletionDetection. It is a headless test harness helper, not
// part of the interactive Core API: real play drives StepFrame directly
// at the host's own pace.
func (c *Core) RunUntilComplete() {
	var lastHash [md5.Size]byte
	stableFor := 0

	for frame := uint64(0); c.maxFrames == 0 || frame < c.maxFrames; frame++ {
		c.StepFrame()

		if c.minLoopCount <= 0 {
			continue
		}

		hash := md5.Sum(c.gpu.GetFrameBuffer().ToGrayscale())
		if hash == lastHash {
			stableFor++
			if stableFor >= c.minLoopCount {
				return
			}
		} else {
			stableFor = 0
			lastHash = hash
		}
	}
}
