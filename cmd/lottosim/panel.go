package main

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/wfunc/lotto-draw/internal/lotto"
)

const (
	digitWidth  = 5
	digitHeight = 5
)

// cell 数码管的一个字符格
type cell struct {
	x, y int
	r    rune
	seg  lotto.Segments
}

// digitCells 5x5 字符格中每一段占用的位置
//
//	 ━━━
//	┃   ┃
//	 ━━━
//	┃   ┃
//	 ━━━
func digitCells() []cell {
	var cells []cell
	for x := 1; x <= 3; x++ {
		cells = append(cells,
			cell{x, 0, '━', lotto.SegA},
			cell{x, 2, '━', lotto.SegG},
			cell{x, 4, '━', lotto.SegD})
	}
	cells = append(cells,
		cell{0, 1, '┃', lotto.SegF},
		cell{4, 1, '┃', lotto.SegB},
		cell{0, 3, '┃', lotto.SegE},
		cell{4, 3, '┃', lotto.SegC})
	return cells
}

var (
	styleLit   = tcell.StyleDefault.Foreground(tcell.ColorRed).Bold(true)
	styleDark  = tcell.StyleDefault.Foreground(tcell.ColorDarkSlateGray)
	styleLabel = tcell.StyleDefault.Foreground(tcell.ColorYellow)
	styleText  = tcell.StyleDefault
)

// drawDigit 在 (x0, y0) 画一位数码管
func drawDigit(s tcell.Screen, x0, y0 int, lit lotto.Segments) {
	for _, c := range digitCells() {
		style := styleDark
		if lit&c.seg != 0 {
			style = styleLit
		}
		s.SetContent(x0+c.x, y0+c.y, c.r, nil, style)
	}
}

// drawText 写一行文字
func drawText(s tcell.Screen, x, y int, style tcell.Style, text string) {
	for _, r := range text {
		s.SetContent(x, y, r, nil, style)
		x++
	}
}

// hexStream 串口字节的十六进制和可见字符形式
func hexStream(b []byte) (hex string, text string) {
	parts := make([]string, len(b))
	var sb strings.Builder
	for i, c := range b {
		parts[i] = fmt.Sprintf("%02X", c)
		switch {
		case c == lotto.LineFeed:
			sb.WriteString("⏎")
		case c >= 0x20 && c < 0x7F:
			sb.WriteByte(c)
		default:
			sb.WriteByte('.')
		}
	}
	return strings.Join(parts, " "), sb.String()
}

// eventLine 事件的一行描述
func eventLine(ev lotto.Event) string {
	line := fmt.Sprintf("%s %-6s", ev.Time.Format("15:04:05.000"), ev.Type)
	switch ev.Type {
	case lotto.EventCommit:
		line += fmt.Sprintf(" 号码=%d 已抽=%d", ev.Value, ev.Count)
	case lotto.EventCandidate:
		line += fmt.Sprintf(" 候选=%d", ev.Value)
	case lotto.EventBounce:
		line += fmt.Sprintf(" 动作=%s", ev.Action)
	case lotto.EventAbort:
		line += " " + ev.Error
	}
	if ev.Byte != nil {
		line += fmt.Sprintf(" 串口=0x%02X", *ev.Byte)
	}
	return line
}
