package cpu

import (
	"fmt"
	"log/slog"

	"github.com/pocketdmg/gbcore/gbcore/addr"
	"github.com/pocketdmg/gbcore/gbcore/memory"
)

// Flag is one of the 4 possible flags used in the flag register (high part of AF).
// The low nibble of F is always zero; only these four bits are ever set.
type Flag uint8

const (
	zeroFlag      Flag = 0x80
	subFlag       Flag = 0x40
	halfCarryFlag Flag = 0x20
	carryFlag     Flag = 0x10
)

// freezeOpcodes are the undocumented opcodes that lock up real LR35902
// hardware. On real silicon these hang the bus permanently; rather than
// modeling that bus lockup, a frozen CPU simply stops retiring instructions.
var freezeOpcodes = map[uint8]bool{
	0xD3: true, 0xDB: true, 0xDD: true, 0xE3: true, 0xE4: true,
	0xEB: true, 0xEC: true, 0xED: true, 0xF4: true, 0xFC: true, 0xFD: true,
}

// CPU is the main struct holding LR35902 state: the 8 single-byte registers
// (paired as AF/BC/DE/HL by the caller), the stack pointer, program counter,
// and the interrupt/halt/stop/freeze state machine.
type CPU struct {
	bus *memory.MMU

	a, f uint8
	b, c uint8
	d, e uint8
	h, l uint8

	sp uint16
	pc uint16

	interruptsEnabled bool
	eiPending         bool
	halted            bool
	haltBug           bool
	stopped           bool
	frozen            bool

	currentOpcode uint16
	cycles        uint64

	// lastServiceCycles is the extra T-cycle cost handleInterrupts charged
	// on its most recent call (20 if it serviced an interrupt, 0 otherwise).
	// Tick folds it into the cycle count it returns so the timer/PPU/APU
	// ticks the caller drives off that return value stay in sync with the
	// interrupt dispatch's 5 m-cycles.
	lastServiceCycles int
}

// New returns a CPU wired to the given bus, with registers in their
// post-boot-ROM DMG state.
func New(bus *memory.MMU) *CPU {
	return &CPU{
		bus: bus,
		a:   0x01, f: 0xB0,
		b: 0x00, c: 0x13,
		d: 0x00, e: 0xD8,
		h: 0x01, l: 0x4D,
		sp: 0xFFFE,
		pc: 0x0100,
	}
}

func (c *CPU) GetPC() uint16 { return c.pc }

// Frozen reports whether the CPU executed one of the undocumented
// bus-lockup opcodes and has stopped retiring instructions.
func (c *CPU) Frozen() bool { return c.frozen }

func (c *CPU) getAF() uint16 { return uint16(c.a)<<8 | uint16(c.f) }
func (c *CPU) setAF(v uint16) {
	c.a = uint8(v >> 8)
	c.f = uint8(v) & 0xF0 // low nibble of F is always zero
}

func (c *CPU) getBC() uint16    { return uint16(c.b)<<8 | uint16(c.c) }
func (c *CPU) setBC(v uint16)   { c.b = uint8(v >> 8); c.c = uint8(v) }
func (c *CPU) getDE() uint16    { return uint16(c.d)<<8 | uint16(c.e) }
func (c *CPU) setDE(v uint16)   { c.d = uint8(v >> 8); c.e = uint8(v) }
func (c *CPU) getHL() uint16    { return uint16(c.h)<<8 | uint16(c.l) }
func (c *CPU) setHL(v uint16)   { c.h = uint8(v >> 8); c.l = uint8(v) }

func (c *CPU) setFlag(flag Flag) {
	c.f |= uint8(flag)
}

func (c *CPU) resetFlag(flag Flag) {
	c.f &^= uint8(flag)
}

func (c *CPU) setFlagToCondition(flag Flag, condition bool) {
	if condition {
		c.setFlag(flag)
	} else {
		c.resetFlag(flag)
	}
}

func (c CPU) isSetFlag(flag Flag) bool {
	return c.f&uint8(flag) != 0
}

func (c CPU) flagToBit(flag Flag) uint8 {
	if c.isSetFlag(flag) {
		return 1
	}
	return 0
}

// Decode reads (without advancing PC) the opcode at the current PC, resolving
// the CB prefix into a combined 0xCBxx value, and returns the Opcode function
// to execute. It also records the raw opcode in currentOpcode for logging and
// the freeze-opcode check.
func Decode(c *CPU) Opcode {
	first := c.bus.Read(c.pc)
	if first == 0xCB {
		second := c.bus.Read(c.pc + 1)
		c.currentOpcode = 0xCB00 | uint16(second)
		return decode(c.currentOpcode)
	}
	c.currentOpcode = uint16(first)
	return decode(c.currentOpcode)
}

// Tick decodes and executes a single instruction (or services a HALT/STOP
// wait state), returning the number of T-cycles it consumed, including any
// interrupt dispatch. Tick calls handleInterrupts itself after each retired
// instruction; the caller (the system clock) is responsible for advancing
// the timer/PPU/APU by the returned number of cycles.
func (c *CPU) Tick() int {
	if c.frozen {
		return 4
	}

	if c.halted {
		imeBefore := c.interruptsEnabled
		if c.handleInterrupts() {
			c.halted = false
			if !imeBefore {
				c.haltBug = true
			}
		}
		return 4 + c.lastServiceCycles
	}

	opcodeByte := c.bus.Read(c.pc)
	if freezeOpcodes[opcodeByte] && opcodeByte == c.bus.Read(c.pc) {
		c.currentOpcode = uint16(opcodeByte)
		slog.Warn("CPU executed freeze opcode, halting emulation", "opcode", fmt.Sprintf("0x%02X", opcodeByte), "pc", fmt.Sprintf("0x%04X", c.pc))
		c.frozen = true
		return 4
	}

	instr := Decode(c)
	advance := c.currentOpcode < 0x100
	if advance {
		c.pc++
	} else {
		c.pc += 2
	}

	if c.haltBug {
		// the HALT bug fails to increment PC past the opcode following HALT;
		// undo the increment just applied so that opcode is fetched twice.
		c.haltBug = false
		if advance {
			c.pc--
		} else {
			c.pc -= 2
		}
	}

	// EI's IME-enable takes effect only after the instruction *following*
	// EI retires, not EI's own instruction. Snapshot eiPending before this
	// instruction runs: if EI is the instruction about to execute, it sets
	// eiPending during instr(c) below, which this snapshot (taken before)
	// does not see, so promotion is deferred to the next Tick call.
	promoteEI := c.eiPending

	cycles := instr(c)
	c.cycles += uint64(cycles)

	if promoteEI {
		c.eiPending = false
		c.interruptsEnabled = true
	}

	c.handleInterrupts()

	return cycles + c.lastServiceCycles
}

// handleInterrupts services the highest-priority pending, enabled interrupt
// (VBlank > STAT > Timer > Serial > Joypad) if IME is set, or simply reports
// whether one is pending (used to wake the CPU from HALT regardless of IME).
// Returns true if an interrupt is pending (serviced or not).
func (c *CPU) handleInterrupts() bool {
	c.lastServiceCycles = 0

	ie := c.bus.Read(addr.IE)
	iflags := c.bus.Read(addr.IF)
	pending := ie & iflags & 0x1F

	if pending == 0 {
		return false
	}

	if !c.interruptsEnabled {
		return true
	}

	var bitPos uint8
	var vector uint16
	switch {
	case pending&0x01 != 0:
		bitPos, vector = 0, 0x40
	case pending&0x02 != 0:
		bitPos, vector = 1, 0x48
	case pending&0x04 != 0:
		bitPos, vector = 2, 0x50
	case pending&0x08 != 0:
		bitPos, vector = 3, 0x58
	case pending&0x10 != 0:
		bitPos, vector = 4, 0x60
	}

	c.interruptsEnabled = false
	c.bus.Write(addr.IF, iflags&^(1<<bitPos))
	c.pushStack(c.pc)
	c.pc = vector
	c.cycles += 20
	c.lastServiceCycles = 20

	return true
}
