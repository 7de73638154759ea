package gbcore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pocketdmg/gbcore/gbcore/addr"
	"github.com/pocketdmg/gbcore/gbcore/memory"
)

// noMBCTestROM returns a minimal 32KB ROM-only image. Its header has no
// Nintendo logo and no valid checksum, so it fails header validation; tests
// that don't care about header validation pass SkipHeaderChecks: true.
func noMBCTestROM() []byte {
	rom := make([]byte, 0x8000)
	rom[0x147] = 0x00 // ROM ONLY
	rom[0x148] = 0x00 // 32KB, no banking
	rom[0x149] = 0x00 // no RAM
	return rom
}

func batteryMBC1TestROM() []byte {
	rom := noMBCTestROM()
	rom[0x147] = 0x03 // MBC1+RAM+BATTERY
	rom[0x149] = 0x02 // 8KB RAM (1 bank)
	return rom
}

func TestNew_RejectsTruncatedROM(t *testing.T) {
	_, err := New([]byte{0x00, 0x01}, nil, Options{SkipHeaderChecks: true})
	require.NotNil(t, err)
	assert.Equal(t, memory.ErrTruncatedRom, err.Kind)
}

func TestNew_RejectsUnsupportedMBC(t *testing.T) {
	rom := noMBCTestROM()
	rom[0x147] = 0xFF // not a recognized cartridge type byte
	_, err := New(rom, nil, Options{SkipHeaderChecks: true})
	require.NotNil(t, err)
	assert.Equal(t, memory.ErrUnsupportedMBC, err.Kind)
	assert.Equal(t, uint8(0xFF), err.UnsupportedMBCByte)
}

func TestNew_RejectsBadLogoUnlessSkipped(t *testing.T) {
	rom := noMBCTestROM()

	_, err := New(rom, nil, Options{SkipHeaderChecks: false})
	require.NotNil(t, err)
	assert.Equal(t, memory.ErrBadLogo, err.Kind)

	core, err := New(rom, nil, Options{SkipHeaderChecks: true})
	require.Nil(t, err)
	require.NotNil(t, core)
}

func TestNew_DefaultsToGreyPalette(t *testing.T) {
	core, err := New(noMBCTestROM(), nil, Options{SkipHeaderChecks: true})
	require.Nil(t, err)
	assert.Equal(t, GreyPalette, core.palette)
}

func TestSetButtons_SelectsCorrectRow(t *testing.T) {
	core, err := New(noMBCTestROM(), nil, Options{SkipHeaderChecks: true})
	require.Nil(t, err)

	// Select the d-pad row (bit 4 = 0) and press Right (bit 4 of mask).
	core.GetMMU().Write(addr.P1, 0b00100000)
	core.SetButtons(1 << 4) // Right

	p1 := core.GetMMU().Read(addr.P1) & 0x0F
	assert.Equal(t, uint8(0x0E), p1, "Right pressed should clear bit 0 of the d-pad row")

	core.SetButtons(0)
	p1 = core.GetMMU().Read(addr.P1) & 0x0F
	assert.Equal(t, uint8(0x0F), p1, "releasing all buttons returns the row to all-1s")
}

func TestSnapshotSRAM_NoneWithoutBattery(t *testing.T) {
	core, err := New(noMBCTestROM(), nil, Options{SkipHeaderChecks: true})
	require.Nil(t, err)

	_, ok := core.SnapshotSRAM()
	assert.False(t, ok)
}

func TestSnapshotSRAM_RoundTrip(t *testing.T) {
	rom := batteryMBC1TestROM()

	core, err := New(rom, nil, Options{SkipHeaderChecks: true})
	require.Nil(t, err)

	mem := core.GetMMU()
	mem.Write(0x0000, 0x0A) // enable external RAM
	mem.Write(0xA000, 0x42)
	mem.Write(0xA001, 0x99)

	snapshot, ok := core.SnapshotSRAM()
	require.True(t, ok)
	assert.Equal(t, byte(0x42), snapshot[0])
	assert.Equal(t, byte(0x99), snapshot[1])

	restored, err := New(rom, snapshot, Options{SkipHeaderChecks: true})
	require.Nil(t, err)

	restoredMem := restored.GetMMU()
	restoredMem.Write(0x0000, 0x0A)
	assert.Equal(t, byte(0x42), restoredMem.Read(0xA000))
	assert.Equal(t, byte(0x99), restoredMem.Read(0xA001))
}

func TestReset_PreservesSRAM(t *testing.T) {
	rom := batteryMBC1TestROM()

	core, err := New(rom, nil, Options{SkipHeaderChecks: true})
	require.Nil(t, err)

	mem := core.GetMMU()
	mem.Write(0x0000, 0x0A)
	mem.Write(0xA000, 0x7A)

	core.Reset()

	mem = core.GetMMU()
	mem.Write(0x0000, 0x0A)
	assert.Equal(t, byte(0x7A), mem.Read(0xA000))
	assert.Equal(t, uint64(0), core.GetInstructionCount())
}

func TestStepFrame_StopsWithinCycleCapWhenLCDOff(t *testing.T) {
	// An all-zero ROM is all NOPs and leaves LCDC (and everything else)
	// at zero, i.e. LCD off; StepFrame must still return rather than
	// spinning forever waiting for a frame that will never complete.
	core, err := New(noMBCTestROM(), nil, Options{SkipHeaderChecks: true})
	require.Nil(t, err)

	result := core.StepFrame()
	assert.NotNil(t, result.Framebuffer)
	assert.True(t, core.GetInstructionCount() > 0)
}

func TestStepFrame_AdvancesFrameCountWithLCDOn(t *testing.T) {
	core, err := New(noMBCTestROM(), nil, Options{SkipHeaderChecks: true})
	require.Nil(t, err)

	core.GetMMU().Write(addr.LCDC, 0x91) // LCD on, BG on, tile data at 0x8000

	before := core.GetFrameCount()
	core.StepFrame()
	assert.Equal(t, before+1, core.GetFrameCount())
}

func TestStepFrame_FreezeIsTerminal(t *testing.T) {
	rom := noMBCTestROM()
	rom[0x100] = 0xD3 // illegal opcode, freezes the CPU

	core, err := New(rom, nil, Options{SkipHeaderChecks: true})
	require.Nil(t, err)

	core.StepFrame()
	assert.True(t, core.GetCPU().Frozen())

	countAfterFreeze := core.GetInstructionCount()
	core.StepFrame()
	assert.Equal(t, countAfterFreeze, core.GetInstructionCount(), "no further instructions retire once frozen")
}

func TestConfigureCompletionDetection_StopsOnMaxFrames(t *testing.T) {
	core, err := New(noMBCTestROM(), nil, Options{SkipHeaderChecks: true})
	require.Nil(t, err)

	core.ConfigureCompletionDetection(5, 0)
	core.RunUntilComplete()

	assert.Equal(t, uint64(0), core.GetFrameCount(), "LCD stays off for an all-zero ROM, so no frames complete, but RunUntilComplete still returns")
}
