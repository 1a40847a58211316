package hardware

import (
	"github.com/wfunc/lotto-draw/internal/config"
	apperrors "github.com/wfunc/lotto-draw/internal/errors"
	"github.com/wfunc/lotto-draw/internal/irq"
	"github.com/wfunc/lotto-draw/internal/lotto"
)

// Board 按配置组装的全部外设
type Board struct {
	IRQ    *irq.Controller
	Panel  *Panel
	Port   *VirtualPort
	UART   *UART
	Memory *MemoryPort // 未启用串口时的输出

	DisplayTimer  *Timer
	DebounceTimer *Timer
	DrawTimer     *Timer

	Entropy lotto.EntropySource
}

// NewBoard 按配置创建外设
func NewBoard(ic *irq.Controller, cfg *config.Config) (*Board, error) {
	b := &Board{
		IRQ:           ic,
		Panel:         NewPanel(),
		Port:          NewVirtualPort(ic),
		DisplayTimer:  NewPeriodicTimer(ic, irq.VectorDisplayTimer, cfg.Timers.DisplayPeriod),
		DebounceTimer: NewOneShotTimer(ic, irq.VectorDebounceTimer, cfg.Timers.DebounceDelay),
		DrawTimer:     NewPeriodicTimer(ic, irq.VectorDrawTimer, cfg.Timers.DrawPeriod),
	}

	switch cfg.Entropy.Source {
	case "crc":
		b.Entropy = NewCRCEntropy(cfg.Entropy.Seed)
	case "crypto":
		b.Entropy = CryptoEntropy{}
	default:
		return nil, apperrors.Newf(apperrors.ErrConfigValidate, "不支持的随机源: %s", cfg.Entropy.Source)
	}

	uartCfg := UARTConfig{
		Port:          cfg.Serial.Port,
		BaudRate:      cfg.Serial.BaudRate,
		DataBits:      cfg.Serial.DataBits,
		StopBits:      cfg.Serial.StopBits,
		Parity:        cfg.Serial.Parity,
		ReadTimeout:   cfg.Serial.ReadTimeout,
		TxBuffer:      cfg.Serial.TxBuffer,
		RetryTimes:    cfg.Serial.RetryTimes,
		RetryInterval: cfg.Serial.RetryInterval,
	}
	if cfg.Serial.Enabled {
		u, err := OpenUART(uartCfg)
		if err != nil {
			return nil, err
		}
		b.UART = u
	} else {
		b.Memory = NewMemoryPort()
		b.UART = NewUART(b.Memory, uartCfg)
	}

	return b, nil
}

// Peripherals 供控制器使用的外设集合
func (b *Board) Peripherals() lotto.Peripherals {
	return lotto.Peripherals{
		Display:       b.Panel,
		Entropy:       b.Entropy,
		Serial:        b.UART,
		Buttons:       b.Port,
		DisplayTimer:  b.DisplayTimer,
		DebounceTimer: b.DebounceTimer,
		DrawTimer:     b.DrawTimer,
	}
}

// Close 停止定时器并关闭串口
func (b *Board) Close() error {
	b.DisplayTimer.Stop()
	b.DebounceTimer.Stop()
	b.DrawTimer.Stop()
	return b.UART.Close()
}
