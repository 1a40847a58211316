package lotto

import "sync/atomic"

// DigitBuffer 两位显示缓冲（个位、十位）。
// 两个槽位打包在同一个原子字里，刷新读到的总是完整的一对。
type DigitBuffer struct {
	word atomic.Uint32
}

func pack(units, tens uint8) uint32 {
	return uint32(units) | uint32(tens)<<8
}

// Set 同时写入两位
func (b *DigitBuffer) Set(units, tens uint8) {
	b.word.Store(pack(units, tens))
}

// SetNumber 按十进制拆分写入
func (b *DigitBuffer) SetNumber(v uint8) {
	b.Set(v%10, (v/10)%10)
}

// SetEndOfGame 写入结束字形
func (b *DigitBuffer) SetEndOfGame() {
	b.Set(GlyphE, GlyphN)
}

// Load 读取两位
func (b *DigitBuffer) Load() (units, tens uint8) {
	w := b.word.Load()
	return uint8(w), uint8(w >> 8)
}

// At 读取某一位（0 个位，1 十位）
func (b *DigitBuffer) At(position int) uint8 {
	units, tens := b.Load()
	if position == 0 {
		return units
	}
	return tens
}

// Pair 以数组形式返回两位
func (b *DigitBuffer) Pair() [2]uint8 {
	units, tens := b.Load()
	return [2]uint8{units, tens}
}
