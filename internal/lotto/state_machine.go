package lotto

import (
	"time"

	"go.uber.org/zap"
)

// GameStateMachine 游戏状态机，独占已抽号码表、计数和阶段
type GameStateMachine struct {
	drawn     DrawnSet
	phase     Phase
	roundID   string
	engine    *DrawEngine
	drawTimer Timer
	digits    *DigitBuffer
	serial    SerialSink
	newRound  func() string
	emit      func(Event)
	logger    *zap.Logger

	commits uint64
	ignored uint64
}

func newGameStateMachine(drawTimer Timer, digits *DigitBuffer, serial SerialSink, newRound func() string, emit func(Event), logger *zap.Logger) *GameStateMachine {
	return &GameStateMachine{
		phase:     PhaseIdle,
		roundID:   newRound(),
		drawTimer: drawTimer,
		digits:    digits,
		serial:    serial,
		newRound:  newRound,
		emit:      emit,
		logger:    logger,
	}
}

// attach 绑定抽号引擎
func (sm *GameStateMachine) attach(engine *DrawEngine) {
	sm.engine = engine
	engine.onAbort = sm.abortDraw
	engine.onCandidate = func(v uint8) {
		sm.emit(sm.event(EventCandidate, ActionNone, v))
	}
}

// Dispatch 处理消抖确认后的动作
func (sm *GameStateMachine) Dispatch(action Action) {
	switch action {
	case ActionStart:
		sm.start()
	case ActionStop:
		sm.stop()
	case ActionReset:
		sm.reset()
	default:
		sm.ignored++
		sm.logger.Warn("未知动作", zap.String("action", action.String()))
	}
}

func (sm *GameStateMachine) start() {
	if sm.drawn.Len() == MaxDraws {
		sm.phase = PhaseFinished
		sm.digits.SetEndOfGame()
		sm.serial.TransmitByte(LineFeed)

		ev := sm.event(EventFinish, ActionStart, 0)
		lf := LineFeed
		ev.Byte = &lf
		sm.emit(ev)
		sm.logger.Info("本局结束", zap.String("round_id", sm.roundID), zap.Uint8s("drawn", sm.drawn.Values()))
		return
	}

	if sm.phase == PhaseDrawing && sm.drawTimer.Running() {
		sm.ignored++
		sm.logger.Debug("抽号已在进行中")
		return
	}

	sm.engine.Invalidate()
	sm.drawTimer.Start()
	sm.phase = PhaseDrawing
	sm.emit(sm.event(EventStart, ActionStart, 0))
	sm.logger.Debug("开始抽号", zap.Int("count", sm.drawn.Len()))
}

func (sm *GameStateMachine) stop() {
	v, fresh := sm.engine.Candidate()
	if sm.phase != PhaseDrawing || !sm.drawTimer.Running() || !fresh {
		sm.ignored++
		sm.logger.Debug("没有可提交的候选号码",
			zap.String("phase", sm.phase.String()),
			zap.Bool("fresh", fresh))
		return
	}

	sm.drawTimer.Stop()
	if err := sm.drawn.Append(v); err != nil {
		// 候选号码由引擎保证不在表中，走到这里属于程序缺陷
		sm.ignored++
		sm.engine.Invalidate()
		sm.phase = PhaseIdle
		sm.logger.Error("候选号码无法入表", zap.Uint8("value", v), zap.Error(err))
		return
	}
	sm.engine.Invalidate()

	b := DigitToASCII(v)
	sm.serial.TransmitByte(b)
	sm.phase = PhaseIdle
	sm.commits++

	ev := sm.event(EventCommit, ActionStop, v)
	ev.Byte = &b
	sm.emit(ev)
	sm.logger.Info("号码已确认",
		zap.String("round_id", sm.roundID),
		zap.Uint8("value", v),
		zap.Int("count", sm.drawn.Len()))
}

func (sm *GameStateMachine) reset() {
	sm.drawn.Clear()
	sm.engine.Invalidate()
	sm.roundID = sm.newRound()
	sm.serial.TransmitByte(LineFeed)
	sm.drawTimer.Start()
	sm.phase = PhaseDrawing

	ev := sm.event(EventReset, ActionReset, 0)
	lf := LineFeed
	ev.Byte = &lf
	sm.emit(ev)
	sm.logger.Info("复位", zap.String("round_id", sm.roundID))
}

// abortDraw 抽号引擎中止时回到等待
func (sm *GameStateMachine) abortDraw(err error) {
	sm.phase = PhaseIdle
	ev := sm.event(EventAbort, ActionNone, 0)
	ev.Error = err.Error()
	sm.emit(ev)
}

func (sm *GameStateMachine) event(t EventType, a Action, v uint8) Event {
	return Event{
		Type:    t,
		RoundID: sm.roundID,
		Action:  a,
		Value:   v,
		Count:   sm.drawn.Len(),
		Time:    time.Now(),
	}
}

// Phase 当前阶段
func (sm *GameStateMachine) Phase() Phase {
	return sm.phase
}

// Count 已抽数量
func (sm *GameStateMachine) Count() int {
	return sm.drawn.Len()
}

// Drawn 已抽号码
func (sm *GameStateMachine) Drawn() []uint8 {
	return sm.drawn.Values()
}

// RoundID 当前轮次
func (sm *GameStateMachine) RoundID() string {
	return sm.roundID
}
