// Package lotto 实现抽号机的中断协同逻辑：数码管动态扫描、按键边沿检测与消抖、
// 拒绝采样抽号以及开始/停止/复位的游戏状态机。
//
// 所有处理函数都以中断处理函数的形式注册到 irq.Controller，运行到结束且互不嵌套；
// 共享状态各自只有一个写者，PendingAction 是唯一的互斥手段。
package lotto

import "fmt"

// 游戏形状在编译期固定
const (
	MaxDraws      = 6  // 每局抽取的号码数
	DrawnCapacity = 7  // 已抽号码表容量
	ValueSpace    = 32 // 号码空间 [0,31]
	valueMask     = 0x1F

	GlyphE uint8 = 10 // 结束字形 E
	GlyphN uint8 = 11 // 结束字形 n

	LineFeed byte = '\n'
)

// DigitToASCII 数字转ASCII（直接加 '0'，两位数也只发一个字节）
func DigitToASCII(v uint8) byte {
	return v + '0'
}

// Action 按键动作
type Action uint32

const (
	ActionNone Action = iota
	ActionStart
	ActionStop
	ActionReset
)

// String 动作名称
func (a Action) String() string {
	switch a {
	case ActionNone:
		return "none"
	case ActionStart:
		return "start"
	case ActionStop:
		return "stop"
	case ActionReset:
		return "reset"
	default:
		return fmt.Sprintf("action(%d)", uint32(a))
	}
}

// MarshalText 实现 encoding.TextMarshaler
func (a Action) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// ParseAction 解析动作名称
func ParseAction(s string) (Action, bool) {
	switch s {
	case "start":
		return ActionStart, true
	case "stop":
		return ActionStop, true
	case "reset":
		return ActionReset, true
	default:
		return ActionNone, false
	}
}

// Phase 游戏阶段
type Phase uint8

const (
	PhaseIdle     Phase = iota // 等待开始（上电或停止后）
	PhaseDrawing               // 抽号定时器运行中
	PhaseFinished              // 已抽满，显示结束字形
)

// String 阶段名称
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseDrawing:
		return "drawing"
	case PhaseFinished:
		return "finished"
	default:
		return fmt.Sprintf("phase(%d)", uint8(p))
	}
}

// MarshalText 实现 encoding.TextMarshaler
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Line 按键输入线（板上 S2/S3/S4，低电平有效）
type Line uint8

const (
	LineS2 Line = iota // P1.1
	LineS3             // P1.4
	LineS4             // P1.5

	NumLines
)

// LineMask 输入线位掩码
type LineMask uint8

// AllLines 三条按键线
const AllLines LineMask = 1<<NumLines - 1

// Mask 单线掩码
func (l Line) Mask() LineMask {
	return 1 << l
}

// String 线名称
func (l Line) String() string {
	switch l {
	case LineS2:
		return "S2"
	case LineS3:
		return "S3"
	case LineS4:
		return "S4"
	default:
		return fmt.Sprintf("line(%d)", uint8(l))
	}
}

// scanOrder 同时置位时的检查顺序：P1.4、P1.5、P1.1
var scanOrder = [NumLines]Line{LineS3, LineS4, LineS2}
