package lotto

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/wfunc/lotto-draw/internal/irq"
	"go.uber.org/zap"
)

// Peripherals 控制器依赖的外设
type Peripherals struct {
	Display  SegmentDriver
	Entropy  EntropySource
	Serial   SerialSink
	Buttons  ButtonPort

	DisplayTimer  Timer // ≈5ms 周期
	DebounceTimer Timer // ≈32ms 单次
	DrawTimer     Timer // ≈200ms 周期
}

// Options 控制器选项
type Options struct {
	Keymap      Keymap
	MaxAttempts int
	NewRoundID  func() string
	Logger      *zap.Logger
}

// Stats 运行计数
type Stats struct {
	Refreshes  uint64 `json:"refreshes"`
	Edges      uint64 `json:"edges"`
	Spurious   uint64 `json:"spurious"`
	Confirmed  uint64 `json:"confirmed"`
	Bounced    uint64 `json:"bounced"`
	Ticks      uint64 `json:"ticks"`
	Samples    uint64 `json:"samples"`
	Duplicates uint64 `json:"duplicates"`
	Aborts     uint64 `json:"aborts"`
	Commits    uint64 `json:"commits"`
	Ignored    uint64 `json:"ignored"`
}

// Status 状态快照
type Status struct {
	Phase     Phase     `json:"phase"`
	RoundID   string    `json:"round_id"`
	Count     int       `json:"count"`
	Drawn     []uint8   `json:"drawn"`
	Digits    [2]uint8  `json:"digits"` // 个位、十位
	Candidate *uint8    `json:"candidate,omitempty"`
	Pending   Action    `json:"pending"`
	Drawing   bool      `json:"drawing"`
	Stats     Stats     `json:"stats"`
	IRQ       irq.Stats `json:"irq"`
}

// MarshalJSON 已抽号码输出为数字数组而不是 base64
func (s Status) MarshalJSON() ([]byte, error) {
	type alias Status
	drawn := make([]int, len(s.Drawn))
	for i, v := range s.Drawn {
		drawn[i] = int(v)
	}
	return json.Marshal(struct {
		alias
		Drawn []int `json:"drawn"`
	}{alias(s), drawn})
}

// Controller 组合五个组件并注册到中断控制器
type Controller struct {
	irq    *irq.Controller
	periph Peripherals
	logger *zap.Logger

	digits  DigitBuffer
	pending PendingAction

	display  *DisplayMultiplexer
	edges    *ButtonEdgeDetector
	debounce *Debouncer
	engine   *DrawEngine
	game     *GameStateMachine

	observers []Observer
}

// NewController 创建控制器并注册四个中断处理函数
func NewController(ic *irq.Controller, p Peripherals, opts Options) (*Controller, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.NewRoundID == nil {
		opts.NewRoundID = uuid.NewString
	}
	if opts.Keymap == (Keymap{}) {
		opts.Keymap = DefaultKeymap
	}

	c := &Controller{
		irq:    ic,
		periph: p,
		logger: opts.Logger,
	}

	edges, err := NewButtonEdgeDetector(p.Buttons, &c.pending, p.DebounceTimer, opts.Keymap, opts.Logger)
	if err != nil {
		return nil, err
	}
	c.edges = edges

	c.display = NewDisplayMultiplexer(p.Display, &c.digits)
	c.game = newGameStateMachine(p.DrawTimer, &c.digits, p.Serial, opts.NewRoundID, c.publish, opts.Logger)
	c.engine = NewDrawEngine(p.Entropy, &c.game.drawn, &c.digits, p.DrawTimer, opts.MaxAttempts, opts.Logger)
	c.game.attach(c.engine)

	c.debounce = NewDebouncer(p.Buttons, &c.pending, p.DebounceTimer, opts.Keymap, c.game.Dispatch, opts.Logger)
	c.debounce.onBounce = func(a Action) {
		ev := c.game.event(EventBounce, a, 0)
		c.publish(ev)
	}

	ic.Register(irq.VectorDisplayTimer, c.display.Refresh)
	ic.Register(irq.VectorButtonPort, c.edges.HandleEdge)
	ic.Register(irq.VectorDebounceTimer, c.debounce.HandleTimeout)
	ic.Register(irq.VectorDrawTimer, c.engine.HandleTick)

	return c, nil
}

// Subscribe 注册事件观察者，应在 Boot 之前调用
func (c *Controller) Subscribe(o Observer) {
	c.observers = append(c.observers, o)
}

func (c *Controller) publish(ev Event) {
	for _, o := range c.observers {
		o(ev)
	}
}

// Boot 清显示缓冲、使能按键和中断、启动刷新定时器
func (c *Controller) Boot() {
	c.digits.Set(0, 0)
	c.periph.Buttons.ClearFlags(AllLines)
	c.periph.Buttons.EnableEdges(AllLines)
	c.irq.Enable()
	c.periph.DisplayTimer.Start()

	c.logger.Info("抽号机已启动", zap.String("round_id", c.game.RoundID()))
}

// Halt 关中断、停止全部定时器、熄灭显示
func (c *Controller) Halt() {
	c.irq.Disable()
	c.periph.DisplayTimer.Stop()
	c.periph.DebounceTimer.Stop()
	c.periph.DrawTimer.Stop()
	c.irq.Critical(c.display.Blank)

	c.logger.Info("抽号机已停止")
}

// Keymap 按键映射
func (c *Controller) Keymap() Keymap {
	return c.edges.keymap
}

// Snapshot 在临界区内读取一致的状态
func (c *Controller) Snapshot() Status {
	var s Status
	c.irq.Critical(func() {
		s = Status{
			Phase:   c.game.Phase(),
			RoundID: c.game.RoundID(),
			Count:   c.game.Count(),
			Drawn:   c.game.Drawn(),
			Digits:  c.digits.Pair(),
			Pending: c.pending.Load(),
			Drawing: c.periph.DrawTimer.Running(),
			Stats: Stats{
				Refreshes:  c.display.refreshes,
				Edges:      c.edges.edges,
				Spurious:   c.edges.spurious,
				Confirmed:  c.debounce.confirmed,
				Bounced:    c.debounce.bounced,
				Ticks:      c.engine.ticks,
				Samples:    c.engine.samples,
				Duplicates: c.engine.duplicates,
				Aborts:     c.engine.aborts,
				Commits:    c.game.commits,
				Ignored:    c.game.ignored,
			},
		}
		if v, fresh := c.engine.Candidate(); fresh {
			s.Candidate = &v
		}
	})
	s.IRQ = c.irq.Stats()
	return s
}
