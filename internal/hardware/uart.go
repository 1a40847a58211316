package hardware

import (
	"bytes"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tarm/serial"
	apperrors "github.com/wfunc/lotto-draw/internal/errors"
	"github.com/wfunc/lotto-draw/internal/logger"
	"go.uber.org/zap"
)

// SerialPort 串口接口（用于测试）
type SerialPort interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
	Flush() error
}

// UARTConfig 串口配置
type UARTConfig struct {
	Port          string
	BaudRate      int
	DataBits      int
	StopBits      int
	Parity        string
	ReadTimeout   time.Duration
	TxBuffer      int
	RetryTimes    int
	RetryInterval time.Duration
}

func (c *UARTConfig) normalize() {
	if c.TxBuffer <= 0 {
		c.TxBuffer = 64
	}
	if c.RetryTimes <= 0 {
		c.RetryTimes = 1
	}
}

// UARTStats 发送统计
type UARTStats struct {
	Sent    uint64 `json:"sent"`
	Dropped uint64 `json:"dropped"` // 发送缓冲满被丢弃
	Failed  uint64 `json:"failed"`  // 重试后仍写入失败
}

// UART 串口发送端：中断上下文只做非阻塞入队，由独立协程写出
type UART struct {
	cfg    UARTConfig
	logger *zap.Logger

	mu     sync.Mutex
	port   SerialPort
	reopen func() (SerialPort, error)
	tap    func(b byte)

	tx     chan byte
	done   chan struct{}
	wg     sync.WaitGroup
	closed atomic.Bool

	sent    atomic.Uint64
	dropped atomic.Uint64
	failed  atomic.Uint64
}

// OpenUART 打开串口，失败时按配置重试
func OpenUART(cfg UARTConfig) (*UART, error) {
	cfg.normalize()
	open := func() (SerialPort, error) {
		return openSerial(cfg)
	}

	var (
		port SerialPort
		err  error
	)
	for i := 0; i < cfg.RetryTimes; i++ {
		port, err = open()
		if err == nil {
			break
		}
		if i < cfg.RetryTimes-1 {
			time.Sleep(cfg.RetryInterval)
		}
	}
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrSerialPortOpen, "port=%s", cfg.Port)
	}

	u := NewUART(port, cfg)
	u.reopen = open
	return u, nil
}

func openSerial(cfg UARTConfig) (SerialPort, error) {
	// 解析校验位
	parity := serial.ParityNone
	switch cfg.Parity {
	case "O", "odd":
		parity = serial.ParityOdd
	case "E", "even":
		parity = serial.ParityEven
	}

	stopBits := serial.Stop1
	if cfg.StopBits == 2 {
		stopBits = serial.Stop2
	}

	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Port,
		Baud:        cfg.BaudRate,
		Size:        byte(cfg.DataBits),
		Parity:      parity,
		StopBits:    stopBits,
		ReadTimeout: cfg.ReadTimeout,
	})
	if err != nil {
		return nil, err
	}
	return port, nil
}

// NewUART 在已打开的端口上创建发送端并启动写协程
func NewUART(port SerialPort, cfg UARTConfig) *UART {
	cfg.normalize()
	u := &UART{
		cfg:    cfg,
		logger: logger.GetModuleLogger("serial"),
		port:   port,
		tx:     make(chan byte, cfg.TxBuffer),
		done:   make(chan struct{}),
	}
	u.wg.Add(1)
	go u.writeLoop()
	return u
}

// SetTap 设置发送成功后的回调（在写协程中调用）
func (u *UART) SetTap(fn func(b byte)) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.tap = fn
}

// TransmitByte 入队一个字节，缓冲满时丢弃并计数，从不阻塞
func (u *UART) TransmitByte(b byte) {
	if u.closed.Load() {
		u.dropped.Add(1)
		return
	}
	select {
	case u.tx <- b:
		logger.LogSerialByte(b, true)
	default:
		u.dropped.Add(1)
		logger.LogSerialByte(b, false)
	}
}

// Stats 发送统计
func (u *UART) Stats() UARTStats {
	return UARTStats{
		Sent:    u.sent.Load(),
		Dropped: u.dropped.Load(),
		Failed:  u.failed.Load(),
	}
}

// Close 写完缓冲中的字节后关闭端口
func (u *UART) Close() error {
	if !u.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(u.done)
	u.wg.Wait()

	u.mu.Lock()
	defer u.mu.Unlock()
	if u.port == nil {
		return nil
	}
	if err := u.port.Flush(); err != nil {
		u.logger.Warn("刷新串口失败", zap.Error(err))
	}
	if err := u.port.Close(); err != nil {
		return apperrors.Wrap(err, apperrors.ErrSerialClosed)
	}
	return nil
}

func (u *UART) writeLoop() {
	defer u.wg.Done()
	for {
		select {
		case b := <-u.tx:
			u.write(b)
		case <-u.done:
			// 写完剩余字节
			for {
				select {
				case b := <-u.tx:
					u.write(b)
				default:
					return
				}
			}
		}
	}
}

func (u *UART) write(b byte) {
	u.mu.Lock()
	defer u.mu.Unlock()

	var err error
	for i := 0; i < u.cfg.RetryTimes; i++ {
		if u.port == nil {
			err = apperrors.New(apperrors.ErrDeviceOffline)
		} else {
			_, err = u.port.Write([]byte{b})
		}
		if err == nil {
			u.sent.Add(1)
			if u.tap != nil {
				u.tap(b)
			}
			return
		}

		if isDisconnect(err) && u.reopen != nil {
			u.reconnect()
		}
		if i < u.cfg.RetryTimes-1 {
			time.Sleep(u.cfg.RetryInterval)
		}
	}

	u.failed.Add(1)
	u.logger.Error("串口写入失败",
		zap.String("port", u.cfg.Port),
		zap.Uint8("byte", b),
		zap.Error(apperrors.Wrap(err, apperrors.ErrSerialPortWrite)))
}

// reconnect 关闭旧端口并重新打开，调用方持有 mu
func (u *UART) reconnect() {
	if u.port != nil {
		u.port.Close()
		u.port = nil
	}
	port, err := u.reopen()
	if err != nil {
		u.logger.Warn("串口重连失败", zap.String("port", u.cfg.Port), zap.Error(err))
		return
	}
	u.port = port
	u.logger.Info("串口已重连", zap.String("port", u.cfg.Port))
}

// isDisconnect 判断是否为断线错误
func isDisconnect(err error) bool {
	if err == nil {
		return false
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "input/output error") ||
		strings.Contains(s, "device not configured") ||
		strings.Contains(s, "broken pipe") ||
		strings.Contains(s, "no such file") ||
		strings.Contains(s, "file already closed")
}

// MemoryPort 内存串口，未接串口设备时使用
type MemoryPort struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	closed bool
}

// NewMemoryPort 创建内存串口
func NewMemoryPort() *MemoryPort {
	return &MemoryPort{}
}

func (m *MemoryPort) Read(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.buf.Read(p)
}

func (m *MemoryPort) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, apperrors.New(apperrors.ErrSerialClosed)
	}
	return m.buf.Write(p)
}

// Close 关闭
func (m *MemoryPort) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Flush 无操作
func (m *MemoryPort) Flush() error {
	return nil
}

// Bytes 已写入的全部字节
func (m *MemoryPort) Bytes() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.buf.Bytes()...)
}
