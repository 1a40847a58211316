package lotto

import "sync/atomic"

// PendingAction 尚未消抖确认的按键动作，同一时刻至多一个。
// 只有边沿检测能从 None 置为具体动作，只有消抖能把它清回 None。
type PendingAction struct {
	v atomic.Uint32
}

// TryArm None -> a，已有挂起动作时返回 false
func (p *PendingAction) TryArm(a Action) bool {
	return p.v.CompareAndSwap(uint32(ActionNone), uint32(a))
}

// Load 当前挂起动作
func (p *PendingAction) Load() Action {
	return Action(p.v.Load())
}

// Release 清回 None
func (p *PendingAction) Release() {
	p.v.Store(uint32(ActionNone))
}
