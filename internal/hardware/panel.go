package hardware

import (
	"sync"

	"github.com/wfunc/lotto-draw/internal/lotto"
)

// PanelFrame 面板当前画面
type PanelFrame struct {
	Segments [2]lotto.Segments `json:"segments"` // 各位最近一次点亮的段
	Active   [2]bool           `json:"active"`
	Glyphs   [2]int            `json:"glyphs"` // 无法识别时为 -1
}

// Panel 两位数码管面板：锁存四组段输出和位选，按位还原点亮的段
type Panel struct {
	mu       sync.Mutex
	groups   [lotto.NumGroups]uint8
	active   [2]bool
	latched  [2][lotto.NumGroups]uint8
	selects  uint64
	ghosting uint64
}

// NewPanel 创建面板
func NewPanel() *Panel {
	return &Panel{}
}

// SetSegments 写一组段输出，只保留属于数码管的位
func (p *Panel) SetSegments(group int, pattern uint8) {
	if group < 0 || group >= lotto.NumGroups {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.groups[group] = pattern & lotto.Groups[group].Mask
}

// SelectDigit 位选，打开时锁存当前段输出
func (p *Panel) SelectDigit(position int, active bool) {
	if position < 0 || position > 1 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	p.active[position] = active
	if !active {
		return
	}
	p.latched[position] = p.groups
	p.selects++
	if p.active[0] && p.active[1] {
		p.ghosting++
	}
}

// Frame 读取画面
func (p *Panel) Frame() PanelFrame {
	p.mu.Lock()
	defer p.mu.Unlock()

	var f PanelFrame
	for pos := 0; pos < 2; pos++ {
		f.Segments[pos] = lotto.DecodeSegments(p.latched[pos])
		f.Active[pos] = p.active[pos]
		f.Glyphs[pos] = GlyphOf(f.Segments[pos])
	}
	return f
}

// Ghosting 两位同时点亮的次数
func (p *Panel) Ghosting() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ghosting
}

// Selects 位选打开次数
func (p *Panel) Selects() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.selects
}

// GlyphOf 由段反查字形
func GlyphOf(s lotto.Segments) int {
	for g := uint8(0); g < lotto.NumGlyphs; g++ {
		if lotto.GlyphSegments(g) == s {
			return int(g)
		}
	}
	return -1
}
