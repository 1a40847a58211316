// Package irq 提供单优先级的中断控制器。
//
// 所有已注册的中断处理函数都在同一把分发锁下运行到结束：处理函数之间不会嵌套，
// 也不会并发执行。定时器、按键端口等外设在各自的 goroutine 中调用 Raise 请求中断。
package irq

import (
	"sync"
	"sync/atomic"
)

// Vector 中断向量
type Vector uint8

const (
	VectorDisplayTimer  Vector = iota // 数码管刷新定时器
	VectorButtonPort                  // 按键端口边沿
	VectorDebounceTimer               // 消抖定时器
	VectorDrawTimer                   // 抽号定时器

	NumVectors
)

var vectorNames = [NumVectors]string{
	VectorDisplayTimer:  "display_timer",
	VectorButtonPort:    "button_port",
	VectorDebounceTimer: "debounce_timer",
	VectorDrawTimer:     "draw_timer",
}

// String 向量名称
func (v Vector) String() string {
	if v < NumVectors {
		return vectorNames[v]
	}
	return "unknown"
}

// Handler 中断处理函数，必须短小且不能阻塞，不能在内部调用 Raise
type Handler func()

// Stats 中断统计
type Stats struct {
	Dispatched [NumVectors]uint64 `json:"dispatched"` // 已执行次数
	Discarded  [NumVectors]uint64 `json:"discarded"`  // 因屏蔽或请求失效而丢弃的次数
}

// Controller 中断控制器
type Controller struct {
	mu       sync.Mutex // 分发锁，持有期间即为“中断上下文”
	handlers [NumVectors]Handler
	enabled  atomic.Bool // GIE

	dispatched [NumVectors]atomic.Uint64
	discarded  [NumVectors]atomic.Uint64
}

// NewController 创建中断控制器，初始为全局关中断
func NewController() *Controller {
	return &Controller{}
}

// Register 注册中断处理函数，应在 Enable 之前完成
func (c *Controller) Register(v Vector, h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[v] = h
}

// Enable 全局开中断
func (c *Controller) Enable() {
	c.enabled.Store(true)
}

// Disable 全局关中断，正在执行的处理函数会运行到结束
func (c *Controller) Disable() {
	c.enabled.Store(false)
}

// Enabled 是否全局开中断
func (c *Controller) Enabled() bool {
	return c.enabled.Load()
}

// Raise 请求中断。pending 在分发锁内求值，返回 false 表示请求在排队期间已被撤销
// （例如定时器已被另一个处理函数停止），此时不执行处理函数。
// 返回值表示处理函数是否被执行。
func (c *Controller) Raise(v Vector, pending func() bool) bool {
	if v >= NumVectors {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	h := c.handlers[v]
	if h == nil || !c.enabled.Load() || (pending != nil && !pending()) {
		c.discarded[v].Add(1)
		return false
	}

	h()
	c.dispatched[v].Add(1)
	return true
}

// Critical 在关中断的临界区内执行 fn，供中断上下文之外的读者获取一致的状态快照。
// 不能在处理函数内部调用。
func (c *Controller) Critical(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn()
}

// Stats 获取中断统计
func (c *Controller) Stats() Stats {
	var s Stats
	for i := range s.Dispatched {
		s.Dispatched[i] = c.dispatched[i].Load()
		s.Discarded[i] = c.discarded[i].Load()
	}
	return s
}
