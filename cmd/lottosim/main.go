// lottosim 终端前面板：在终端上显示两位数码管，用键盘按 S2/S3/S4
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/wfunc/lotto-draw/internal/config"
	"github.com/wfunc/lotto-draw/internal/hardware"
	"github.com/wfunc/lotto-draw/internal/irq"
	"github.com/wfunc/lotto-draw/internal/logger"
	"github.com/wfunc/lotto-draw/internal/lotto"
	"go.uber.org/zap"
)

const (
	holdTime    = 80 * time.Millisecond
	maxEvents   = 8
	maxSerial   = 24
	framePeriod = 33 * time.Millisecond
)

// Sim 终端前面板
type Sim struct {
	screen tcell.Screen
	board  *hardware.Board
	ctrl   *lotto.Controller
	log    *zap.Logger

	events chan lotto.Event
	recent []lotto.Event

	mu     sync.Mutex
	serial []byte
}

func main() {
	var (
		configPath = flag.String("config", "", "配置文件路径")
		useSerial  = flag.Bool("serial", false, "同时输出到配置中的串口")
		entropy    = flag.String("entropy", "", "随机源 crc/crypto，默认取配置")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("加载配置失败: %v\n", err)
		os.Exit(1)
	}
	cfg.Serial.Enabled = *useSerial
	if *entropy != "" {
		cfg.Entropy.Source = *entropy
	}

	// 终端被面板占用，日志只写文件
	cfg.Log.Output = "file"
	if err := logger.Init(&cfg.Log); err != nil {
		fmt.Printf("初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	sim, err := NewSim(cfg)
	if err != nil {
		fmt.Printf("启动失败: %v\n", err)
		os.Exit(1)
	}
	sim.Run()
}

// NewSim 创建外设、控制器和终端
func NewSim(cfg *config.Config) (*Sim, error) {
	ic := irq.NewController()
	board, err := hardware.NewBoard(ic, cfg)
	if err != nil {
		return nil, err
	}

	ctrl, err := lotto.NewController(ic, board.Peripherals(), lotto.Options{
		Logger: logger.GetModuleLogger("lotto"),
	})
	if err != nil {
		board.Close()
		return nil, err
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		board.Close()
		return nil, err
	}
	if err := screen.Init(); err != nil {
		board.Close()
		return nil, err
	}

	s := &Sim{
		screen: screen,
		board:  board,
		ctrl:   ctrl,
		log:    logger.GetModuleLogger("sim"),
		events: make(chan lotto.Event, 64),
	}

	// 候选事件每个抽号周期一次，不进事件列表
	ctrl.Subscribe(func(ev lotto.Event) {
		if ev.Type == lotto.EventCandidate {
			return
		}
		select {
		case s.events <- ev:
		default:
		}
	})
	board.UART.SetTap(s.appendSerial)

	ctrl.Boot()
	return s, nil
}

func (s *Sim) appendSerial(b byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.serial = append(s.serial, b)
	if len(s.serial) > maxSerial {
		s.serial = s.serial[len(s.serial)-maxSerial:]
	}
}

func (s *Sim) serialBytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.serial...)
}

// Run 事件循环，按 q 退出
func (s *Sim) Run() {
	defer s.close()

	ticker := time.NewTicker(framePeriod)
	defer ticker.Stop()

	eventChan := make(chan tcell.Event, 16)
	go func() {
		for {
			ev := s.screen.PollEvent()
			if ev == nil {
				return
			}
			eventChan <- ev
		}
	}()

	for {
		select {
		case ev := <-eventChan:
			if !s.handleEvent(ev) {
				return
			}
		case ev := <-s.events:
			s.recent = append(s.recent, ev)
			if len(s.recent) > maxEvents {
				s.recent = s.recent[len(s.recent)-maxEvents:]
			}
		case <-ticker.C:
			s.render()
		}
	}
}

// handleEvent 返回 false 表示退出
func (s *Sim) handleEvent(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC {
			return false
		}
		if ev.Key() != tcell.KeyRune {
			return true
		}
		switch ev.Rune() {
		case 'q':
			return false
		case 's':
			s.tap(lotto.ActionStart)
		case 'x':
			s.tap(lotto.ActionStop)
		case 'r':
			s.tap(lotto.ActionReset)
		case 'b':
			if line, ok := s.ctrl.Keymap().LineFor(lotto.ActionStop); ok {
				s.board.Port.Bounce(line)
			}
		}
	case *tcell.EventResize:
		s.screen.Sync()
	}
	return true
}

// tap 在后台按住按键，不阻塞界面
func (s *Sim) tap(a lotto.Action) {
	line, ok := s.ctrl.Keymap().LineFor(a)
	if !ok {
		return
	}
	go func() {
		if err := s.board.Port.Tap(context.Background(), line, holdTime); err != nil {
			s.log.Warn("按键失败", zap.String("action", a.String()), zap.Error(err))
		}
	}()
}

func (s *Sim) render() {
	s.screen.Clear()

	frame := s.board.Panel.Frame()
	drawText(s.screen, 2, 1, styleLabel, "抽号机")
	// 十位在左
	drawDigit(s.screen, 2, 3, frame.Segments[1])
	drawDigit(s.screen, 2+digitWidth+2, 3, frame.Segments[0])

	st := s.ctrl.Snapshot()
	y := 3
	x := 2*digitWidth + 8
	drawText(s.screen, x, y, styleText, fmt.Sprintf("阶段: %s", st.Phase))
	drawText(s.screen, x, y+1, styleText, fmt.Sprintf("已抽: %d/%d %v", st.Count, lotto.MaxDraws, st.Drawn))
	drawText(s.screen, x, y+2, styleText, fmt.Sprintf("轮次: %s", st.RoundID))
	drawText(s.screen, x, y+3, styleText, fmt.Sprintf("边沿 %d  确认 %d  抖动 %d  重抽 %d",
		st.Stats.Edges, st.Stats.Confirmed, st.Stats.Bounced, st.Stats.Duplicates))
	drawText(s.screen, x, y+4, styleText, fmt.Sprintf("串扰 %d", s.board.Panel.Ghosting()))

	y = 3 + digitHeight + 2
	hex, text := hexStream(s.serialBytes())
	uart := s.board.UART.Stats()
	drawText(s.screen, 2, y, styleLabel, fmt.Sprintf("串口 (已发 %d 丢弃 %d)", uart.Sent, uart.Dropped))
	drawText(s.screen, 2, y+1, styleText, hex)
	drawText(s.screen, 2, y+2, styleText, text)

	y += 4
	drawText(s.screen, 2, y, styleLabel, "事件")
	for i, ev := range s.recent {
		drawText(s.screen, 2, y+1+i, styleText, eventLine(ev))
	}

	_, h := s.screen.Size()
	drawText(s.screen, 2, h-1, styleLabel, "s 开始  x 停止  r 复位  b 停止键抖动  q 退出")
	s.screen.Show()
}

func (s *Sim) close() {
	s.ctrl.Halt()
	s.board.Close()
	s.screen.Fini()
}
