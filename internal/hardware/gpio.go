package hardware

import (
	"context"
	"sync"
	"time"

	"github.com/wfunc/lotto-draw/internal/irq"
	"github.com/wfunc/lotto-draw/internal/lotto"
)

// VirtualPort 虚拟按键端口：三条上拉输入，下降沿置位标志，每条线单独使能中断。
// 标志与屏蔽无关地锁存，只有 使能&标志 不为零时才请求中断。
type VirtualPort struct {
	ic *irq.Controller

	mu       sync.Mutex
	asserted lotto.LineMask // 被按下（低电平）的线
	ie       lotto.LineMask
	ifg      lotto.LineMask
	presses  [lotto.NumLines]uint64
}

// NewVirtualPort 创建端口，初始全部屏蔽
func NewVirtualPort(ic *irq.Controller) *VirtualPort {
	return &VirtualPort{ic: ic}
}

// Flags 中断标志
func (p *VirtualPort) Flags() lotto.LineMask {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ifg
}

// ClearFlags 清标志
func (p *VirtualPort) ClearFlags(m lotto.LineMask) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ifg &^= m
}

// DisableEdges 屏蔽中断
func (p *VirtualPort) DisableEdges(m lotto.LineMask) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ie &^= m
}

// EnableEdges 使能中断
func (p *VirtualPort) EnableEdges(m lotto.LineMask) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ie |= m
}

// Asserted 线当前是否为低电平
func (p *VirtualPort) Asserted(l lotto.Line) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.asserted&l.Mask() != 0
}

// Enabled 中断使能位
func (p *VirtualPort) Enabled() lotto.LineMask {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ie
}

// Presses 各条线的下降沿次数
func (p *VirtualPort) Presses() [lotto.NumLines]uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.presses
}

// requesting 在分发锁内求值
func (p *VirtualPort) requesting() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ie&p.ifg != 0
}

// Press 拉低一条线。已经按下时没有新的边沿。
// 不能在中断处理函数内调用。
func (p *VirtualPort) Press(l lotto.Line) {
	if l >= lotto.NumLines {
		return
	}

	p.mu.Lock()
	if p.asserted&l.Mask() != 0 {
		p.mu.Unlock()
		return
	}
	p.asserted |= l.Mask()
	p.ifg |= l.Mask()
	p.presses[l]++
	request := p.ie&l.Mask() != 0
	p.mu.Unlock()

	if request {
		p.ic.Raise(irq.VectorButtonPort, p.requesting)
	}
}

// Release 松开（上升沿不产生中断）
func (p *VirtualPort) Release(l lotto.Line) {
	if l >= lotto.NumLines {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.asserted &^= l.Mask()
}

// Tap 按下并保持 hold 后松开。ctx 取消时立即松开并返回错误。
func (p *VirtualPort) Tap(ctx context.Context, l lotto.Line, hold time.Duration) error {
	p.Press(l)
	defer p.Release(l)

	timer := time.NewTimer(hold)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Bounce 按下后立即松开，消抖采样时已回到高电平
func (p *VirtualPort) Bounce(l lotto.Line) {
	p.Press(l)
	p.Release(l)
}
