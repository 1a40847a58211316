package hardware

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/wfunc/lotto-draw/internal/irq"
)

// Timer 软件定时器外设，到期时向中断控制器请求一个向量。
// Stop 会清零计数，重新 Start 后要等满一个周期才会再次到期。
type Timer struct {
	ic      *irq.Controller
	vector  irq.Vector
	period  time.Duration
	oneShot bool

	mu      sync.Mutex
	running bool
	gen     uint64
	stop    chan struct{}

	fired atomic.Uint64
}

// NewPeriodicTimer 创建周期定时器
func NewPeriodicTimer(ic *irq.Controller, v irq.Vector, period time.Duration) *Timer {
	return &Timer{ic: ic, vector: v, period: period}
}

// NewOneShotTimer 创建单次定时器
func NewOneShotTimer(ic *irq.Controller, v irq.Vector, delay time.Duration) *Timer {
	return &Timer{ic: ic, vector: v, period: delay, oneShot: true}
}

// Start 启动（运行中再次调用会从零重新计时）
func (t *Timer) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running {
		close(t.stop)
	}
	t.gen++
	t.running = true
	t.stop = make(chan struct{})
	go t.run(t.gen, t.stop)
}

// Stop 停止并清零计数
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.running {
		return
	}
	t.running = false
	t.gen++
	close(t.stop)
}

// Running 是否在计时
func (t *Timer) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// Period 周期
func (t *Timer) Period() time.Duration {
	return t.period
}

// Fired 已执行的到期中断次数
func (t *Timer) Fired() uint64 {
	return t.fired.Load()
}

// live 在分发锁内判断请求是否仍然有效；单次定时器在此处自动停止
func (t *Timer) live(gen uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.running || t.gen != gen {
		return false
	}
	if t.oneShot {
		t.running = false
		t.gen++
		close(t.stop)
	}
	return true
}

func (t *Timer) run(gen uint64, stop <-chan struct{}) {
	if t.oneShot {
		timer := time.NewTimer(t.period)
		defer timer.Stop()
		select {
		case <-stop:
		case <-timer.C:
			t.expire(gen)
		}
		return
	}

	ticker := time.NewTicker(t.period)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			t.expire(gen)
		}
	}
}

func (t *Timer) expire(gen uint64) {
	if t.ic.Raise(t.vector, func() bool { return t.live(gen) }) {
		t.fired.Add(1)
	}
}
