package lotto

import (
	"encoding/json"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/lotto-draw/internal/irq"
)

func TestBootState(t *testing.T) {
	h := newHarness(t)

	s := h.status()
	assert.Equal(t, PhaseIdle, s.Phase)
	assert.Equal(t, 0, s.Count)
	assert.Equal(t, [2]uint8{0, 0}, s.Digits)
	assert.Equal(t, ActionNone, s.Pending)
	assert.False(t, s.Drawing)
	assert.Nil(t, s.Candidate)
	assert.Equal(t, "round-1", s.RoundID)

	assert.True(t, h.irq.Enabled())
	assert.True(t, h.display.Running())
	assert.Equal(t, AllLines, h.port.enabled)
	assert.False(t, h.tick(), "上电后抽号定时器不应运行")
}

func TestStopCommitsCandidate(t *testing.T) {
	h := newHarness(t, 17)

	h.confirm(ActionStart)
	assert.Equal(t, PhaseDrawing, h.status().Phase)
	require.True(t, h.tick())

	s := h.status()
	assert.Equal(t, [2]uint8{7, 1}, s.Digits)
	require.NotNil(t, s.Candidate)
	assert.Equal(t, uint8(17), *s.Candidate)

	h.confirm(ActionStop)

	s = h.status()
	assert.Equal(t, []byte{'0' + 17}, h.serial.bytes)
	assert.Equal(t, []uint8{17}, s.Drawn)
	assert.Equal(t, 1, s.Count)
	assert.Equal(t, PhaseIdle, s.Phase)
	assert.False(t, s.Drawing)
	assert.Nil(t, s.Candidate)
	assert.Equal(t, [2]uint8{7, 1}, s.Digits, "停止后保持显示已确认号码")
	assert.False(t, h.tick(), "停止后不应再有抽号中断")

	commits := h.eventsOf(EventCommit)
	require.Len(t, commits, 1)
	require.NotNil(t, commits[0].Byte)
	assert.Equal(t, byte('A'), *commits[0].Byte)
}

func TestStopWithoutCandidateIsIgnored(t *testing.T) {
	h := newHarness(t, 8)

	// 未开始
	h.confirm(ActionStop)
	assert.Empty(t, h.serial.bytes)

	// 已开始但还没有抽号中断
	h.confirm(ActionStart)
	h.confirm(ActionStop)
	assert.Empty(t, h.serial.bytes)
	assert.Equal(t, PhaseDrawing, h.status().Phase)

	require.True(t, h.tick())
	h.confirm(ActionStop)
	assert.Equal(t, []byte{'8'}, h.serial.bytes)

	// 重复停止不会再次提交
	h.confirm(ActionStop)
	assert.Equal(t, []byte{'8'}, h.serial.bytes)
	assert.Equal(t, 1, h.status().Count)
}

func TestStartInvalidatesOldCandidate(t *testing.T) {
	h := newHarness(t, 4, 9)

	h.confirm(ActionStart)
	require.True(t, h.tick())
	h.confirm(ActionStop)
	require.Equal(t, []byte{'4'}, h.serial.bytes)

	h.confirm(ActionStart)
	h.confirm(ActionStop)
	assert.Equal(t, []byte{'4'}, h.serial.bytes, "新一轮抽号前不能提交上一轮的号码")

	require.True(t, h.tick())
	h.confirm(ActionStop)
	assert.Equal(t, []byte{'4', '9'}, h.serial.bytes)
}

func TestSixDrawsThenFinish(t *testing.T) {
	// 含重复值，引擎需跳过
	h := newHarness(t, 3, 3, 11, 3, 20, 11, 0, 31, 26)

	for i := 0; i < MaxDraws; i++ {
		h.confirm(ActionStart)
		require.True(t, h.tick())
		h.confirm(ActionStop)
	}

	s := h.status()
	require.Equal(t, MaxDraws, s.Count)
	assert.Equal(t, []uint8{3, 11, 20, 0, 31, 26}, s.Drawn)
	assert.Equal(t, []byte{'0' + 3, '0' + 11, '0' + 20, '0', '0' + 31, '0' + 26}, h.serial.bytes)

	h.confirm(ActionStart)

	s = h.status()
	assert.Equal(t, PhaseFinished, s.Phase)
	assert.Equal(t, [2]uint8{GlyphE, GlyphN}, s.Digits)
	assert.Equal(t, LineFeed, h.serial.bytes[len(h.serial.bytes)-1])
	assert.False(t, s.Drawing)
	require.Len(t, h.eventsOf(EventFinish), 1)

	// 结束后停止无效，计数不超过上限
	h.confirm(ActionStop)
	assert.Equal(t, MaxDraws, h.status().Count)
	assert.Len(t, h.serial.bytes, MaxDraws+1)

	// 结束后再按开始仍保持结束状态
	h.confirm(ActionStart)
	assert.Equal(t, PhaseFinished, h.status().Phase)
	assert.Equal(t, MaxDraws, h.status().Count)
}

func TestResetMidCycle(t *testing.T) {
	h := newHarness(t, 1, 2, 5, 1, 2, 5)

	for i := 0; i < 2; i++ {
		h.confirm(ActionStart)
		require.True(t, h.tick())
		h.confirm(ActionStop)
	}
	h.confirm(ActionStart)
	require.True(t, h.tick())

	before := h.status().RoundID
	h.confirm(ActionReset)

	s := h.status()
	assert.Equal(t, 0, s.Count)
	assert.Empty(t, s.Drawn)
	assert.Equal(t, PhaseDrawing, s.Phase)
	assert.True(t, s.Drawing)
	assert.Nil(t, s.Candidate, "复位后旧候选作废")
	assert.NotEqual(t, before, s.RoundID)
	assert.Equal(t, []byte{'1', '2', LineFeed}, h.serial.bytes)

	// 复位后可以重新抽出之前的号码
	require.True(t, h.tick())
	h.confirm(ActionStop)
	assert.Equal(t, 1, h.status().Count)
	assert.Len(t, h.serial.bytes, 4)

	resets := h.eventsOf(EventReset)
	require.Len(t, resets, 1)
	assert.Equal(t, s.RoundID, resets[0].RoundID)
}

func TestResetAfterFinish(t *testing.T) {
	h := newHarness(t, 0, 1, 2, 3, 4, 5, 6)
	for i := 0; i < MaxDraws; i++ {
		h.confirm(ActionStart)
		require.True(t, h.tick())
		h.confirm(ActionStop)
	}
	h.confirm(ActionStart)
	require.Equal(t, PhaseFinished, h.status().Phase)

	h.confirm(ActionReset)
	s := h.status()
	assert.Equal(t, PhaseDrawing, s.Phase)
	assert.Equal(t, 0, s.Count)

	require.True(t, h.tick())
	assert.NotEqual(t, [2]uint8{GlyphE, GlyphN}, h.status().Digits)
}

func TestBounceIsDiscarded(t *testing.T) {
	h := newHarness(t)

	h.bounce(ActionStart)

	s := h.status()
	assert.Equal(t, PhaseIdle, s.Phase)
	assert.False(t, s.Drawing)
	assert.Equal(t, ActionNone, s.Pending)
	assert.Equal(t, uint64(1), s.Stats.Bounced)
	assert.Equal(t, AllLines, h.port.enabled)
	require.Len(t, h.eventsOf(EventBounce), 1)
	assert.Equal(t, ActionStart, h.eventsOf(EventBounce)[0].Action)

	// 之后的按键正常
	h.confirm(ActionStart)
	assert.Equal(t, PhaseDrawing, h.status().Phase)
}

func TestButtonsMaskedDuringDebounce(t *testing.T) {
	h := newHarness(t, 12)
	h.confirm(ActionStart)
	require.True(t, h.tick())

	h.edge(LineS3)
	assert.Equal(t, ActionStop, h.status().Pending)

	// 屏蔽期间其它按键不产生中断
	h.edge(LineS2)
	assert.Equal(t, uint64(0), h.status().Stats.Spurious)

	require.True(t, h.debounceExpire())
	h.port.release(LineS3)
	h.port.release(LineS2)

	s := h.status()
	assert.Equal(t, []byte{'0' + 12}, h.serial.bytes)
	assert.Equal(t, 1, s.Count, "被屏蔽的复位不应生效")
	assert.Equal(t, ActionNone, s.Pending)
}

func TestLeakyEdgeDuringDebounce(t *testing.T) {
	h := newHarness(t, 6)
	h.port.leaky = true

	h.edge(LineS4)
	h.edge(LineS3)
	h.port.release(LineS3)
	assert.Equal(t, uint64(1), h.status().Stats.Spurious)
	assert.Equal(t, ActionStart, h.status().Pending)

	require.True(t, h.debounceExpire())
	h.port.release(LineS4)

	s := h.status()
	assert.Equal(t, PhaseDrawing, s.Phase)
	assert.Empty(t, h.serial.bytes)
	assert.Equal(t, uint64(1), s.Stats.Confirmed)
}

func TestDebounceTimerIsOneShot(t *testing.T) {
	h := newHarness(t)
	h.confirm(ActionStart)
	assert.False(t, h.debounceExpire())
	assert.Equal(t, uint64(1), h.status().Stats.Confirmed)
}

func TestAbortOnStalledEntropy(t *testing.T) {
	h := newHarness(t, 4)

	h.confirm(ActionStart)
	require.True(t, h.tick())
	h.confirm(ActionStop)

	h.confirm(ActionStart)
	require.True(t, h.tick())

	s := h.status()
	assert.Equal(t, PhaseIdle, s.Phase)
	assert.False(t, s.Drawing)
	assert.Equal(t, uint64(1), s.Stats.Aborts)
	assert.Equal(t, []uint8{4}, s.Drawn)
	require.Len(t, h.eventsOf(EventAbort), 1)
	assert.NotEmpty(t, h.eventsOf(EventAbort)[0].Error)

	// 中止后停止不会提交
	h.confirm(ActionStop)
	assert.Equal(t, []byte{'4'}, h.serial.bytes)
}

func TestDisplayRefreshThroughController(t *testing.T) {
	h := newHarness(t, 29)
	h.confirm(ActionStart)
	require.True(t, h.tick())

	for i := 0; i < 10; i++ {
		h.refresh()
	}
	assert.Zero(t, h.driver.overlap)
	assert.Equal(t, GlyphSegments(9), DecodeSegments(h.driver.latched[0]))
	assert.Equal(t, GlyphSegments(2), DecodeSegments(h.driver.latched[1]))
	assert.Equal(t, uint64(10), h.status().Stats.Refreshes)
}

func TestHalt(t *testing.T) {
	h := newHarness(t, 1)
	h.confirm(ActionStart)
	h.refresh()

	h.ctrl.Halt()

	assert.False(t, h.irq.Enabled())
	assert.False(t, h.display.Running())
	assert.False(t, h.draw.Running())
	assert.Equal(t, [2]bool{false, false}, h.driver.active)
	assert.False(t, h.irq.Raise(irq.VectorDrawTimer, nil))
}

func TestNewControllerDefaultsKeymap(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, DefaultKeymap, h.ctrl.Keymap())
}

func TestNewControllerRejectsBadKeymap(t *testing.T) {
	_, err := NewController(irq.NewController(), Peripherals{
		Display:       &recordingDriver{},
		Entropy:       &seqEntropy{values: []uint16{0}},
		Serial:        &fakeSerial{},
		Buttons:       &fakePort{},
		DisplayTimer:  &fakeTimer{},
		DebounceTimer: &fakeTimer{},
		DrawTimer:     &fakeTimer{},
	}, Options{Keymap: Keymap{LineS2: ActionStart, LineS3: ActionStart, LineS4: ActionStart}})
	assert.Error(t, err)
}

// 随机操作序列下：计数不超过上限、已抽号码两两不同、串口字节与已抽表一致
func TestRandomSessionsKeepInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(20240917))

	for session := 0; session < 50; session++ {
		values := make([]uint16, 97)
		for i := range values {
			values[i] = uint16(rng.Intn(1 << 16))
		}
		h := newHarness(t, values...)
		roundStart := 0

		for step := 0; step < 120; step++ {
			switch rng.Intn(6) {
			case 0:
				h.confirm(ActionStart)
			case 1, 2:
				h.tick()
			case 3:
				h.confirm(ActionStop)
			case 4:
				if rng.Intn(8) == 0 {
					h.confirm(ActionReset)
					roundStart = len(h.serial.bytes)
				}
			case 5:
				h.bounce(Action(rng.Intn(3) + 1))
			}

			s := h.status()
			require.LessOrEqual(t, s.Count, MaxDraws)

			seen := map[uint8]bool{}
			for _, v := range s.Drawn {
				require.False(t, seen[v], "号码 %d 重复", v)
				require.Less(t, v, uint8(ValueSpace))
				seen[v] = true
			}

			// 本局发送的号码字节（结束时的换行除外）
			var sent []byte
			for _, b := range h.serial.bytes[roundStart:] {
				if b != LineFeed {
					sent = append(sent, b)
				}
			}
			require.Len(t, sent, s.Count)
			for i, v := range s.Drawn {
				require.Equal(t, DigitToASCII(v), sent[i])
			}
			require.Equal(t, ActionNone, s.Pending)
		}
	}
}

func TestStatusJSON(t *testing.T) {
	h := newHarness(t, 17)
	h.confirm(ActionStart)
	require.True(t, h.tick())
	h.confirm(ActionStop)

	data, err := json.Marshal(h.status())
	require.NoError(t, err)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, []interface{}{float64(17)}, out["drawn"])
	assert.Equal(t, "idle", out["phase"])
	assert.Equal(t, "none", out["pending"])
	assert.Equal(t, []interface{}{float64(7), float64(1)}, out["digits"])
	assert.NotContains(t, out, "candidate")
}
