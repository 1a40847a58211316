package lotto

// DisplayMultiplexer 两位数码管动态扫描，每次刷新只点亮一位
type DisplayMultiplexer struct {
	driver   SegmentDriver
	digits   *DigitBuffer
	position int

	refreshes uint64
}

// NewDisplayMultiplexer 创建扫描器，从第0位开始
func NewDisplayMultiplexer(driver SegmentDriver, digits *DigitBuffer) *DisplayMultiplexer {
	return &DisplayMultiplexer{driver: driver, digits: digits}
}

// Refresh 刷新定时器中断：关上一位、写段、开当前位、切换到另一位
func (m *DisplayMultiplexer) Refresh() {
	pos := m.position
	glyph := m.digits.At(pos)

	m.driver.SelectDigit(pos^1, false)
	for g := 0; g < NumGroups; g++ {
		m.driver.SetSegments(g, SegmentPattern(g, glyph))
	}
	m.driver.SelectDigit(pos, true)

	m.position = pos ^ 1
	m.refreshes++
}

// Blank 关闭两位（停机时使用）
func (m *DisplayMultiplexer) Blank() {
	m.driver.SelectDigit(0, false)
	m.driver.SelectDigit(1, false)
}
