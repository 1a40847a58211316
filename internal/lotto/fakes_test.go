package lotto

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wfunc/lotto-draw/internal/irq"
)

// fakeTimer 手动触发的定时器
type fakeTimer struct {
	mu      sync.Mutex
	running bool
	starts  int
	stops   int
}

func (t *fakeTimer) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.running = true
	t.starts++
}

func (t *fakeTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.running = false
	t.stops++
}

func (t *fakeTimer) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// fakePort 三线按键端口，leaky 为 true 时屏蔽不生效（用于模拟消抖期间的杂散边沿）
type fakePort struct {
	mu       sync.Mutex
	flags    LineMask
	enabled  LineMask
	asserted LineMask
	leaky    bool
}

func (p *fakePort) Flags() LineMask {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.flags
}

func (p *fakePort) ClearFlags(m LineMask) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.flags &^= m
}

func (p *fakePort) DisableEdges(m LineMask) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.enabled &^= m
}

func (p *fakePort) EnableEdges(m LineMask) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.enabled |= m
}

func (p *fakePort) Asserted(l Line) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.asserted&l.Mask() != 0
}

// press 拉低输入线，返回是否应请求中断
func (p *fakePort) press(l Line) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.asserted |= l.Mask()
	p.flags |= l.Mask()
	return p.leaky || p.enabled&l.Mask() != 0
}

func (p *fakePort) release(l Line) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.asserted &^= l.Mask()
}

// fakeSerial 记录发送的字节
type fakeSerial struct {
	bytes []byte
}

func (s *fakeSerial) TransmitByte(b byte) {
	s.bytes = append(s.bytes, b)
}

// seqEntropy 依次返回预设值，用完后从头循环
type seqEntropy struct {
	values []uint16
	i      int
}

func (e *seqEntropy) Sample() uint16 {
	v := e.values[e.i%len(e.values)]
	e.i++
	return v
}

// recordingDriver 记录位选状态与段输出
type recordingDriver struct {
	active   [2]bool
	patterns [NumGroups]uint8
	latched  [2][NumGroups]uint8
	overlap  int
	calls    int
}

func (d *recordingDriver) SetSegments(group int, pattern uint8) {
	d.patterns[group] = pattern
	d.calls++
}

func (d *recordingDriver) SelectDigit(position int, active bool) {
	d.active[position] = active
	if active {
		d.latched[position] = d.patterns
	}
	if d.active[0] && d.active[1] {
		d.overlap++
	}
	d.calls++
}

// harness 完整组装的控制器，外设全部手动驱动
type harness struct {
	t        *testing.T
	irq      *irq.Controller
	ctrl     *Controller
	port     *fakePort
	serial   *fakeSerial
	entropy  *seqEntropy
	driver   *recordingDriver
	display  *fakeTimer
	debounce *fakeTimer
	draw     *fakeTimer
	events   []Event
	rounds   int
}

func newHarness(t *testing.T, values ...uint16) *harness {
	t.Helper()
	if len(values) == 0 {
		values = []uint16{0}
	}

	h := &harness{
		t:        t,
		irq:      irq.NewController(),
		port:     &fakePort{},
		serial:   &fakeSerial{},
		entropy:  &seqEntropy{values: values},
		driver:   &recordingDriver{},
		display:  &fakeTimer{},
		debounce: &fakeTimer{},
		draw:     &fakeTimer{},
	}

	ctrl, err := NewController(h.irq, Peripherals{
		Display:       h.driver,
		Entropy:       h.entropy,
		Serial:        h.serial,
		Buttons:       h.port,
		DisplayTimer:  h.display,
		DebounceTimer: h.debounce,
		DrawTimer:     h.draw,
	}, Options{
		NewRoundID: func() string {
			h.rounds++
			return "round-" + string(rune('0'+h.rounds))
		},
	})
	require.NoError(t, err)
	ctrl.Subscribe(func(ev Event) { h.events = append(h.events, ev) })
	ctrl.Boot()

	h.ctrl = ctrl
	return h
}

// edge 在线上产生下降沿
func (h *harness) edge(l Line) {
	if h.port.press(l) {
		h.irq.Raise(irq.VectorButtonPort, nil)
	}
}

// debounceExpire 消抖定时器到期
func (h *harness) debounceExpire() bool {
	return h.irq.Raise(irq.VectorDebounceTimer, h.debounce.Running)
}

// tick 抽号定时器到期
func (h *harness) tick() bool {
	return h.irq.Raise(irq.VectorDrawTimer, h.draw.Running)
}

// refresh 刷新定时器到期
func (h *harness) refresh() {
	h.irq.Raise(irq.VectorDisplayTimer, h.display.Running)
}

// confirm 完整的有效按键：按下、消抖到期、松开
func (h *harness) confirm(a Action) {
	line, ok := DefaultKeymap.LineFor(a)
	require.True(h.t, ok)
	h.edge(line)
	require.True(h.t, h.debounceExpire(), "消抖定时器应已启动")
	h.port.release(line)
}

// bounce 按下后在消抖到期前松开
func (h *harness) bounce(a Action) {
	line, ok := DefaultKeymap.LineFor(a)
	require.True(h.t, ok)
	h.edge(line)
	h.port.release(line)
	require.True(h.t, h.debounceExpire())
}

func (h *harness) status() Status {
	return h.ctrl.Snapshot()
}

func (h *harness) eventsOf(t EventType) []Event {
	var out []Event
	for _, ev := range h.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}
