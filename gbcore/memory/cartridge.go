package memory

import "github.com/pocketdmg/gbcore/gbcore/bit"

const titleLength = 11

const (
	logoAddress             = 0x104
	logoLength              = 0x30
	titleAddress            = 0x134
	cartridgeTypeAddress    = 0x147
	romSizeAddress          = 0x148
	ramSizeAddress          = 0x149
	headerChecksumAddress   = 0x14D
	globalChecksumAddress   = 0x14E
	versionNumberAddress    = 0x14C
	minHeaderLength         = 0x150
)

// nintendoLogo is the 48-byte bitmap the boot ROM compares against; a
// mismatch here means the cartridge is not recognized as valid by real
// hardware.
var nintendoLogo = [logoLength]byte{
	0xCE, 0xED, 0x66, 0x66, 0xCC, 0x0D, 0x00, 0x0B, 0x03, 0x73, 0x00, 0x83, 0x00, 0x0C, 0x00, 0x0D,
	0x00, 0x08, 0x11, 0x1F, 0x88, 0x89, 0x00, 0x0E, 0xDC, 0xCC, 0x6E, 0xE6, 0xDD, 0xDD, 0xD9, 0x99,
	0xBB, 0xBB, 0x67, 0x63, 0x6E, 0x0E, 0xEC, 0xCC, 0xDD, 0xDC, 0x99, 0x9F, 0xBB, 0xB9, 0x33, 0x3E,
}

// MBCType identifies which memory bank controller a cartridge uses, as
// determined by the cartridge type byte at 0x147.
type MBCType uint8

const (
	NoMBCType MBCType = iota
	MBC1Type
	// MBC1MultiType identifies MBC1 multicart boards (distinguished from a
	// plain MBC1 by repeated logo data at multiple ROM offsets, not by the
	// cartridge type byte). classifyCartType never produces it; it is
	// handled identically to MBC1Type wherever an MBC is constructed.
	MBC1MultiType
	MBC2Type
	MBC3Type
	MBC5Type
	MBCUnknownType
)

// CartLoadErrorKind enumerates the load-time failure categories.
type CartLoadErrorKind uint8

const (
	ErrBadLogo CartLoadErrorKind = iota
	ErrHeaderChecksumMismatch
	ErrGlobalChecksumMismatch
	ErrUnsupportedMBC
	ErrTruncatedRom
)

func (k CartLoadErrorKind) String() string {
	switch k {
	case ErrBadLogo:
		return "BadLogo"
	case ErrHeaderChecksumMismatch:
		return "HeaderChecksumMismatch"
	case ErrGlobalChecksumMismatch:
		return "GlobalChecksumMismatch"
	case ErrUnsupportedMBC:
		return "UnsupportedMBC"
	case ErrTruncatedRom:
		return "TruncatedRom"
	default:
		return "Unknown"
	}
}

// CartLoadError is returned when a ROM image fails header validation or
// cannot be banked. UnsupportedMBCByte is only meaningful when Kind is
// ErrUnsupportedMBC.
type CartLoadError struct {
	Kind               CartLoadErrorKind
	UnsupportedMBCByte uint8
}

func (e *CartLoadError) Error() string {
	if e.Kind == ErrUnsupportedMBC {
		return "cartridge load error: UnsupportedMBC(0x" + hexByte(e.UnsupportedMBCByte) + ")"
	}
	return "cartridge load error: " + e.Kind.String()
}

func hexByte(b uint8) string {
	const digits = "0123456789ABCDEF"
	return string([]byte{digits[b>>4], digits[b&0x0F]})
}

// Cartridge owns the raw ROM image, parsed header metadata, and the
// battery-backed RAM byte array (before it is handed to an MBC).
type Cartridge struct {
	data           []byte
	title          string
	headerChecksum uint8
	globalChecksum uint16
	version        uint8
	cartType       uint8
	romSize        uint8
	ramSize        uint8

	mbcType      MBCType
	hasBattery   bool
	hasRTC       bool
	hasRumble    bool
	ramBankCount uint8
}

// NewCartridge creates an empty cartridge, useful only for a console
// powered on with no cartridge inserted.
func NewCartridge() *Cartridge {
	return &Cartridge{
		data:    make([]byte, 0x10000),
		mbcType: NoMBCType,
	}
}

// LoadCartridge parses a ROM image's header and returns a Cartridge ready
// for MBC construction, or a *CartLoadError describing why the image was
// rejected. skipHeaderChecks suppresses BadLogo, HeaderChecksumMismatch,
// and GlobalChecksumMismatch; a truncated ROM or an unrecognized MBC byte
// are always rejected regardless of skipHeaderChecks.
func LoadCartridge(romBytes []byte, skipHeaderChecks bool) (*Cartridge, *CartLoadError) {
	if len(romBytes) < minHeaderLength {
		return nil, &CartLoadError{Kind: ErrTruncatedRom}
	}

	cart := &Cartridge{
		data:           make([]byte, len(romBytes)),
		title:          parseTitle(romBytes),
		headerChecksum: romBytes[headerChecksumAddress],
		globalChecksum: bit.Combine(romBytes[globalChecksumAddress], romBytes[globalChecksumAddress+1]),
		version:        romBytes[versionNumberAddress],
		cartType:       romBytes[cartridgeTypeAddress],
		romSize:        romBytes[romSizeAddress],
		ramSize:        romBytes[ramSizeAddress],
	}
	copy(cart.data, romBytes)

	expectedROMSize := 0x8000 << cart.romSize
	if len(romBytes) < expectedROMSize {
		return nil, &CartLoadError{Kind: ErrTruncatedRom}
	}

	if !skipHeaderChecks {
		for i := 0; i < logoLength; i++ {
			if romBytes[logoAddress+i] != nintendoLogo[i] {
				return nil, &CartLoadError{Kind: ErrBadLogo}
			}
		}

		if computeHeaderChecksum(romBytes) != cart.headerChecksum {
			return nil, &CartLoadError{Kind: ErrHeaderChecksumMismatch}
		}

		if computeGlobalChecksum(romBytes) != cart.globalChecksum {
			return nil, &CartLoadError{Kind: ErrGlobalChecksumMismatch}
		}
	}

	mbcType, hasBattery, hasRTC, hasRumble, ok := classifyCartType(cart.cartType)
	if !ok {
		return nil, &CartLoadError{Kind: ErrUnsupportedMBC, UnsupportedMBCByte: cart.cartType}
	}

	cart.mbcType = mbcType
	cart.hasBattery = hasBattery
	cart.hasRTC = hasRTC
	cart.hasRumble = hasRumble
	cart.ramBankCount = ramBankCount(cart.ramSize, mbcType)

	return cart, nil
}

func parseTitle(romBytes []byte) string {
	raw := romBytes[titleAddress : titleAddress+titleLength]
	end := len(raw)
	for i, b := range raw {
		if b == 0 {
			end = i
			break
		}
	}
	return string(raw[:end])
}

// computeHeaderChecksum reproduces the boot ROM's header checksum
// algorithm over 0x134-0x14C.
func computeHeaderChecksum(romBytes []byte) uint8 {
	var checksum uint8
	for addr := 0x134; addr <= 0x14C; addr++ {
		checksum = checksum - romBytes[addr] - 1
	}
	return checksum
}

// computeGlobalChecksum sums every byte in the ROM except the two global
// checksum bytes themselves.
func computeGlobalChecksum(romBytes []byte) uint16 {
	var sum uint16
	for i, b := range romBytes {
		if i == globalChecksumAddress || i == globalChecksumAddress+1 {
			continue
		}
		sum += uint16(b)
	}
	return sum
}

// classifyCartType maps the cartridge type byte (0x147) to an MBC kind and
// the optional hardware features (battery, RTC, rumble) it implies.
// Reference: https://gbdev.io/pandocs/The_Cartridge_Header.html#0147--cartridge-type
func classifyCartType(cartType uint8) (mbc MBCType, hasBattery, hasRTC, hasRumble, ok bool) {
	switch cartType {
	case 0x00:
		return NoMBCType, false, false, false, true
	case 0x08, 0x09:
		return NoMBCType, false, false, false, true // ROM+RAM(+BATTERY), no banking
	case 0x01:
		return MBC1Type, false, false, false, true
	case 0x02:
		return MBC1Type, false, false, false, true
	case 0x03:
		return MBC1Type, true, false, false, true
	case 0x05:
		return MBC2Type, false, false, false, true
	case 0x06:
		return MBC2Type, true, false, false, true
	case 0x0F:
		return MBC3Type, true, true, false, true
	case 0x10:
		return MBC3Type, true, true, false, true
	case 0x11:
		return MBC3Type, false, false, false, true
	case 0x12:
		return MBC3Type, false, false, false, true
	case 0x13:
		return MBC3Type, true, false, false, true
	case 0x19:
		return MBC5Type, false, false, false, true
	case 0x1A:
		return MBC5Type, false, false, false, true
	case 0x1B:
		return MBC5Type, true, false, false, true
	case 0x1C:
		return MBC5Type, false, false, true, true
	case 0x1D:
		return MBC5Type, false, false, true, true
	case 0x1E:
		return MBC5Type, true, false, true, true
	default:
		return MBCUnknownType, false, false, false, false
	}
}

// ramBankCount maps the RAM size byte (0x149) to a number of 8KiB banks.
// MBC2's 512x4-bit built-in RAM is not represented by this byte at all,
// so it always reports zero external banks.
func ramBankCount(ramSize uint8, mbcType MBCType) uint8 {
	if mbcType == MBC2Type {
		return 0
	}
	switch ramSize {
	case 0x00, 0x01:
		return 0
	case 0x02:
		return 1
	case 0x03:
		return 4
	case 0x04:
		return 16
	case 0x05:
		return 8
	default:
		return 0
	}
}

// ReadByte reads a byte at the specified address. Does not check bounds, so
// the caller must make sure the address is valid for the cartridge.
func (c Cartridge) ReadByte(addr uint16) uint8 {
	return c.data[addr]
}

// Title returns the cartridge title parsed from the header: the titleLength
// bytes starting at 0x134, cut at the first NUL byte, with no other cleaning.
func (c *Cartridge) Title() string { return c.title }

// MBCType returns the memory bank controller kind classified from the
// cartridge type byte at 0x147.
func (c *Cartridge) MBCType() MBCType { return c.mbcType }
