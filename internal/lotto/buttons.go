package lotto

import (
	apperrors "github.com/wfunc/lotto-draw/internal/errors"
	"go.uber.org/zap"
)

// Keymap 输入线到动作的映射，必须是三条线到三个动作的一一对应
type Keymap [NumLines]Action

// DefaultKeymap S2 复位、S3 停止、S4 开始
var DefaultKeymap = Keymap{
	LineS2: ActionReset,
	LineS3: ActionStop,
	LineS4: ActionStart,
}

// Validate 校验映射
func (k Keymap) Validate() error {
	var seen [ActionReset + 1]bool
	for line, a := range k {
		if a == ActionNone || a > ActionReset {
			return apperrors.Newf(apperrors.ErrInvalidBinding, "%s -> %s", Line(line), a)
		}
		if seen[a] {
			return apperrors.Newf(apperrors.ErrInvalidBinding, "动作 %s 绑定了多条线", a)
		}
		seen[a] = true
	}
	return nil
}

// LineFor 动作对应的输入线
func (k Keymap) LineFor(a Action) (Line, bool) {
	for line, bound := range k {
		if bound == a {
			return Line(line), true
		}
	}
	return 0, false
}

// ButtonEdgeDetector 按键端口中断：把第一个下降沿变成挂起动作，并屏蔽全部按键直到消抖结束
type ButtonEdgeDetector struct {
	port     ButtonPort
	pending  *PendingAction
	debounce Timer
	keymap   Keymap
	logger   *zap.Logger

	edges    uint64
	spurious uint64
}

// NewButtonEdgeDetector 创建边沿检测
func NewButtonEdgeDetector(port ButtonPort, pending *PendingAction, debounce Timer, keymap Keymap, logger *zap.Logger) (*ButtonEdgeDetector, error) {
	if err := keymap.Validate(); err != nil {
		return nil, err
	}
	return &ButtonEdgeDetector{
		port:     port,
		pending:  pending,
		debounce: debounce,
		keymap:   keymap,
		logger:   logger,
	}, nil
}

// HandleEdge 按键端口中断处理
func (d *ButtonEdgeDetector) HandleEdge() {
	flags := d.port.Flags() & AllLines
	if flags == 0 {
		return
	}

	// 已有动作在消抖中，只清标志不分发
	if current := d.pending.Load(); current != ActionNone {
		d.port.ClearFlags(flags)
		d.spurious++
		d.logger.Debug("消抖期间的边沿被忽略",
			zap.String("pending", current.String()),
			zap.Uint8("flags", uint8(flags)))
		return
	}

	for _, line := range scanOrder {
		if flags&line.Mask() == 0 {
			continue
		}

		action := d.keymap[line]
		if !d.pending.TryArm(action) {
			d.port.ClearFlags(flags)
			d.spurious++
			return
		}
		d.debounce.Start()
		d.port.ClearFlags(line.Mask())
		d.port.DisableEdges(AllLines)
		d.edges++

		d.logger.Debug("按键边沿",
			zap.String("line", line.String()),
			zap.String("action", action.String()))
		return
	}
}
