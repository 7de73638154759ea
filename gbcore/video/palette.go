package video

// Palette maps the four 2-bit pixel/color-index values produced by the
// background/window/sprite pipeline to an emitted RGBA color. Index 0 is
// always the "lightest" shade as defined by BGP/OBPn, through 3 the darkest.
type Palette [4]GBColor

// Map returns the emitted color for a 2-bit palette-resolved value (0-3).
// Values outside that range return transparent black, which should never
// be observed since every caller masks its input to 2 bits first.
func (p Palette) Map(value byte) GBColor {
	if value > 3 {
		return 0
	}
	return p[value]
}

// GreyPalette is the classic 4-shade grayscale most emulators default to.
var GreyPalette = Palette{WhiteColor, LightGreyColor, DarkGreyColor, BlackColor}

// GreenDMGPalette reproduces the tinted green LCD of the original hardware.
var GreenDMGPalette = Palette{
	0x9BBC0FFF,
	0x8BAC0FFF,
	0x306230FF,
	0x0F380FFF,
}

// NewCustomPalette builds a Palette from four RGB triples, ordered
// lightest-to-darkest the way BGP color index 0..3 resolves.
func NewCustomPalette(rgb [4][3]byte) Palette {
	var p Palette
	for i, c := range rgb {
		p[i] = GBColor(uint32(c[0])<<24 | uint32(c[1])<<16 | uint32(c[2])<<8 | 0xFF)
	}
	return p
}
