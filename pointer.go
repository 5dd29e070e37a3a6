package hashdag

import "fmt"

// NodePointer is a word-addressed reference into a NodePool, per spec.md
// §3.1. It carries three states: Null (empty subtree), Filled (fully
// occupied subtree), or a real dense word offset into the pool's
// PagedStore. Null and Filled are out-of-band sentinels reserved at the
// top of the 32-bit address space and are never written to storage.
type NodePointer uint32

const (
	nullAddress   uint32 = 0xFFFFFFFF
	filledAddress uint32 = 0xFFFFFFFE

	// maxNodeAddress is the largest word offset a real NodePointer may
	// hold; addresses above it collide with the sentinels.
	maxNodeAddress uint32 = filledAddress - 1
)

// NullPointer denotes an empty subtree; no storage is ever allocated for it.
const NullPointer = NodePointer(nullAddress)

// FilledPointer denotes a fully occupied subtree; no storage is ever
// allocated for it.
const FilledPointer = NodePointer(filledAddress)

// NodeAddress returns p's word offset into the owning NodePool's address
// space. Only valid when p.IsReal().
func NodeAddress(p NodePointer) uint32 { return uint32(p) }

func (p NodePointer) IsNull() bool   { return p == NullPointer }
func (p NodePointer) IsFilled() bool { return p == FilledPointer }
func (p NodePointer) IsReal() bool   { return !p.IsNull() && !p.IsFilled() }

func (p NodePointer) String() string {
	switch {
	case p.IsNull():
		return "Null"
	case p.IsFilled():
		return "Filled"
	default:
		return fmt.Sprintf("@%d", uint32(p))
	}
}

// ColorTag is the 2-bit discriminator of a ColorPointer, per spec.md §3.2.
type ColorTag uint8

const (
	ColorTagNull ColorTag = iota
	ColorTagSolidColor
	ColorTagNode
	ColorTagVBRLeaf
)

func (t ColorTag) String() string {
	switch t {
	case ColorTagNull:
		return "Null"
	case ColorTagSolidColor:
		return "SolidColor"
	case ColorTagNode:
		return "Node"
	case ColorTagVBRLeaf:
		return "VBRLeaf"
	default:
		return "Invalid"
	}
}

// ColorPointer is the 32-bit tagged pointer of spec.md §3.2: a 2-bit tag
// plus 30 bits of data, whose meaning depends on the tag.
type ColorPointer uint32

const colorDataBits = 30
const colorDataMask = (uint32(1) << colorDataBits) - 1

// NullColorPointer denotes a subtree with no color information.
const NullColorPointer = ColorPointer(ColorTagNull)

func newColorPointer(tag ColorTag, data uint32) ColorPointer {
	return ColorPointer(uint32(tag) | (data&colorDataMask)<<2)
}

func (p ColorPointer) Tag() ColorTag { return ColorTag(uint32(p) & 0x3) }
func (p ColorPointer) Data() uint32  { return uint32(p) >> 2 }

func (p ColorPointer) IsNull() bool       { return p.Tag() == ColorTagNull }
func (p ColorPointer) IsSolidColor() bool { return p.Tag() == ColorTagSolidColor }
func (p ColorPointer) IsNode() bool       { return p.Tag() == ColorTagNode }
func (p ColorPointer) IsVBRLeaf() bool    { return p.Tag() == ColorTagVBRLeaf }

// NodeIndex returns the index into the ColorPool's node array. Only valid
// when p.IsNode().
func (p ColorPointer) NodeIndex() uint32 { return p.Data() }

// LeafIndex returns the index into the ColorPool's leaf array. Only valid
// when p.IsVBRLeaf().
func (p ColorPointer) LeafIndex() uint32 { return p.Data() }

func (p ColorPointer) String() string {
	switch p.Tag() {
	case ColorTagNull:
		return "Null"
	case ColorTagSolidColor:
		return fmt.Sprintf("Solid(%v)", ColorFromBits(p.Data()))
	case ColorTagNode:
		return fmt.Sprintf("Node(%d)", p.NodeIndex())
	case ColorTagVBRLeaf:
		return fmt.Sprintf("VBRLeaf(%d)", p.LeafIndex())
	default:
		return "Invalid"
	}
}

// Color is a 24-bit RGB voxel color. The zero value represents "no color",
// matching spec.md §4.3's "when the geometry output is Null, the color
// output is Null" rule and the original's Empty() sentinel.
type Color struct {
	R, G, B uint8
}

// Empty reports whether c is the zero/absent color.
func (c Color) Empty() bool { return c == Color{} }

// Bits packs c into the low 24 bits of a ColorPointer data field.
func (c Color) Bits() uint32 {
	return uint32(c.R)<<16 | uint32(c.G)<<8 | uint32(c.B)
}

// ColorFromBits unpacks a 24-bit-or-wider data field back into a Color.
func ColorFromBits(bits uint32) Color {
	return Color{
		R: uint8(bits >> 16),
		G: uint8(bits >> 8),
		B: uint8(bits),
	}
}

// SolidColorPointer builds a ColorPointer tagged SolidColor for c.
func SolidColorPointer(c Color) ColorPointer {
	return newColorPointer(ColorTagSolidColor, c.Bits())
}

// NodeColorPointer builds a ColorPointer tagged Node referencing index.
func NodeColorPointer(index uint32) ColorPointer {
	return newColorPointer(ColorTagNode, index)
}

// VBRLeafColorPointer builds a ColorPointer tagged VBRLeaf referencing index.
func VBRLeafColorPointer(index uint32) ColorPointer {
	return newColorPointer(ColorTagVBRLeaf, index)
}
