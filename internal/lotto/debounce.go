package lotto

import "go.uber.org/zap"

// Debouncer 消抖定时器中断：延时后重新采样按键线，仍按下才分发动作
type Debouncer struct {
	port     ButtonPort
	pending  *PendingAction
	timer    Timer
	keymap   Keymap
	dispatch func(Action)
	onBounce func(Action)
	logger   *zap.Logger

	confirmed uint64
	bounced   uint64
}

// NewDebouncer 创建消抖
func NewDebouncer(port ButtonPort, pending *PendingAction, timer Timer, keymap Keymap, dispatch func(Action), logger *zap.Logger) *Debouncer {
	return &Debouncer{
		port:     port,
		pending:  pending,
		timer:    timer,
		keymap:   keymap,
		dispatch: dispatch,
		logger:   logger,
	}
}

// HandleTimeout 消抖定时器到期
func (d *Debouncer) HandleTimeout() {
	action := d.pending.Load()
	if action != ActionNone {
		line, ok := d.keymap.LineFor(action)
		if ok && d.port.Asserted(line) {
			d.confirmed++
			d.dispatch(action)
		} else {
			d.bounced++
			d.logger.Debug("按键抖动已丢弃", zap.String("action", action.String()))
			if d.onBounce != nil {
				d.onBounce(action)
			}
		}
	}

	// 无论是否确认都要重新打开按键中断
	d.timer.Stop()
	d.port.ClearFlags(AllLines)
	d.port.EnableEdges(AllLines)
	d.pending.Release()
}
