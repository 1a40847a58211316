package lotto

import (
	apperrors "github.com/wfunc/lotto-draw/internal/errors"
	"go.uber.org/zap"
)

// DefaultMaxAttempts 单次抽号的最大采样次数。
// 排除 6/32 时期望约 1.23 次，达到上限说明随机源已卡死。
const DefaultMaxAttempts = 1024

// DrawEngine 抽号定时器中断：拒绝采样出一个未抽过的号码并显示
type DrawEngine struct {
	source      EntropySource
	drawn       DrawnView
	digits      *DigitBuffer
	timer       Timer
	maxAttempts int
	logger      *zap.Logger

	onCandidate func(v uint8)
	onAbort     func(err error)

	candidate uint8
	fresh     bool

	ticks      uint64
	samples    uint64
	duplicates uint64
	aborts     uint64
}

// NewDrawEngine 创建抽号引擎
func NewDrawEngine(source EntropySource, drawn DrawnView, digits *DigitBuffer, timer Timer, maxAttempts int, logger *zap.Logger) *DrawEngine {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &DrawEngine{
		source:      source,
		drawn:       drawn,
		digits:      digits,
		timer:       timer,
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

// Next 采样直到得到一个不在已抽表中的号码
func (e *DrawEngine) Next() (uint8, error) {
	if e.drawn.Len() >= ValueSpace {
		return 0, apperrors.Newf(apperrors.ErrDrawSpaceExhausted, "已抽 %d 个", e.drawn.Len())
	}

	for i := 0; i < e.maxAttempts; i++ {
		v := uint8(e.source.Sample()) & valueMask
		e.samples++
		if !e.drawn.Contains(v) {
			return v, nil
		}
		e.duplicates++
	}
	return 0, apperrors.Newf(apperrors.ErrEntropyStalled, "连续 %d 次采样均为已抽号码", e.maxAttempts)
}

// HandleTick 抽号定时器中断
func (e *DrawEngine) HandleTick() {
	e.ticks++

	v, err := e.Next()
	if err != nil {
		// 防御性中止本轮抽号，避免死循环
		e.timer.Stop()
		e.fresh = false
		e.aborts++
		e.logger.Error("抽号中止", zap.Error(err))
		if e.onAbort != nil {
			e.onAbort(err)
		}
		return
	}

	e.candidate = v
	e.fresh = true
	e.digits.SetNumber(v)

	if e.onCandidate != nil {
		e.onCandidate(v)
	}
}

// Candidate 当前候选号码，fresh 为 false 表示本轮尚未产生候选
func (e *DrawEngine) Candidate() (v uint8, fresh bool) {
	return e.candidate, e.fresh
}

// Invalidate 作废当前候选（已提交或重新开始）
func (e *DrawEngine) Invalidate() {
	e.fresh = false
}
