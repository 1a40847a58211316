package lotto

// SegmentGroup 一组段输出（一个端口上的若干位），低电平点亮
type SegmentGroup struct {
	Port uint8 // 端口号 P2/P3/P4/P8
	Mask uint8 // 该端口上属于数码管的位
}

// NumGroups 段输出分组数
const NumGroups = 4

// Groups a..g 分布在四个端口上
var Groups = [NumGroups]SegmentGroup{
	{Port: 2, Mask: 0x48},
	{Port: 3, Mask: 0x80},
	{Port: 4, Mask: 0x09},
	{Port: 8, Mask: 0x06},
}

// NumGlyphs 0-9 加两个结束字形
const NumGlyphs = 12

// segmentTable[group][glyph] 为需要拉低（点亮）的位
var segmentTable = [NumGroups][NumGlyphs]uint8{
	{0x48, 0x40, 0x08, 0x40, 0x40, 0x40, 0x48, 0x40, 0x48, 0x40, 0x08, 0x48},
	{0x80, 0x00, 0x80, 0x80, 0x00, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x00},
	{0x09, 0x08, 0x08, 0x08, 0x09, 0x01, 0x01, 0x08, 0x09, 0x09, 0x01, 0x00},
	{0x02, 0x00, 0x06, 0x06, 0x04, 0x06, 0x06, 0x00, 0x06, 0x06, 0x06, 0x02},
}

// SegmentPattern 查表，超出范围的字形按全灭处理
func SegmentPattern(group int, glyph uint8) uint8 {
	if group < 0 || group >= NumGroups || glyph >= NumGlyphs {
		return 0
	}
	return segmentTable[group][glyph]
}

// Segments a..g 点亮位图，bit0 为 a
type Segments uint8

const (
	SegA Segments = 1 << iota
	SegB
	SegC
	SegD
	SegE
	SegF
	SegG
)

// segmentWiring 各段所在的分组和位
var segmentWiring = [7]struct {
	seg   Segments
	group int
	bit   uint8
}{
	{SegA, 1, 0x80}, // P3.7
	{SegB, 2, 0x08}, // P4.3
	{SegC, 0, 0x40}, // P2.6
	{SegD, 3, 0x02}, // P8.1
	{SegE, 0, 0x08}, // P2.3
	{SegF, 2, 0x01}, // P4.0
	{SegG, 3, 0x04}, // P8.2
}

// DecodeSegments 把四组输出还原为点亮的段
func DecodeSegments(patterns [NumGroups]uint8) Segments {
	var s Segments
	for _, w := range segmentWiring {
		if patterns[w.group]&w.bit != 0 {
			s |= w.seg
		}
	}
	return s
}

// GlyphSegments 字形对应的段
func GlyphSegments(glyph uint8) Segments {
	var patterns [NumGroups]uint8
	for g := 0; g < NumGroups; g++ {
		patterns[g] = SegmentPattern(g, glyph)
	}
	return DecodeSegments(patterns)
}
