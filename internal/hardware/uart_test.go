package hardware

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockSerialPort 模拟串口
type MockSerialPort struct {
	mock.Mock
}

func (m *MockSerialPort) Read(p []byte) (int, error) {
	args := m.Called(p)
	return args.Int(0), args.Error(1)
}

func (m *MockSerialPort) Write(p []byte) (int, error) {
	args := m.Called(p)
	return args.Int(0), args.Error(1)
}

func (m *MockSerialPort) Close() error {
	return m.Called().Error(0)
}

func (m *MockSerialPort) Flush() error {
	return m.Called().Error(0)
}

// blockingPort 写入阻塞直到 release 被关闭
type blockingPort struct {
	MemoryPort
	release chan struct{}
	once    sync.Once
}

func (b *blockingPort) Write(p []byte) (int, error) {
	<-b.release
	return b.MemoryPort.Write(p)
}

func (b *blockingPort) unblock() {
	b.once.Do(func() { close(b.release) })
}

func testUARTConfig() UARTConfig {
	return UARTConfig{
		Port:          "mock",
		TxBuffer:      16,
		RetryTimes:    3,
		RetryInterval: time.Millisecond,
	}
}

func TestUARTWritesInOrder(t *testing.T) {
	mem := NewMemoryPort()
	u := NewUART(mem, testUARTConfig())

	var mu sync.Mutex
	var tapped []byte
	u.SetTap(func(b byte) {
		mu.Lock()
		tapped = append(tapped, b)
		mu.Unlock()
	})

	for _, b := range []byte{'0' + 17, '3', '\n'} {
		u.TransmitByte(b)
	}
	require.NoError(t, u.Close())

	assert.Equal(t, []byte{'A', '3', '\n'}, mem.Bytes())
	mu.Lock()
	assert.Equal(t, []byte{'A', '3', '\n'}, tapped)
	mu.Unlock()
	assert.Equal(t, UARTStats{Sent: 3}, u.Stats())
}

func TestUARTRetriesWrite(t *testing.T) {
	port := new(MockSerialPort)
	port.On("Write", []byte{'7'}).Return(0, errors.New("write timeout")).Once()
	port.On("Write", []byte{'7'}).Return(1, nil).Once()
	port.On("Flush").Return(nil)
	port.On("Close").Return(nil)

	u := NewUART(port, testUARTConfig())
	u.TransmitByte('7')
	require.NoError(t, u.Close())

	port.AssertNumberOfCalls(t, "Write", 2)
	port.AssertExpectations(t)
	assert.Equal(t, UARTStats{Sent: 1}, u.Stats())
}

func TestUARTGivesUpAfterRetries(t *testing.T) {
	port := new(MockSerialPort)
	port.On("Write", mock.Anything).Return(0, errors.New("write timeout"))
	port.On("Flush").Return(nil)
	port.On("Close").Return(nil)

	u := NewUART(port, testUARTConfig())
	u.TransmitByte('1')
	require.NoError(t, u.Close())

	port.AssertNumberOfCalls(t, "Write", 3)
	assert.Equal(t, uint64(1), u.Stats().Failed)
	assert.Zero(t, u.Stats().Sent)
}

func TestUARTReconnectsOnDisconnect(t *testing.T) {
	port := new(MockSerialPort)
	port.On("Write", mock.Anything).Return(0, errors.New("write /dev/ttyUSB0: input/output error"))
	port.On("Close").Return(nil)

	replacement := NewMemoryPort()
	u := NewUART(port, testUARTConfig())
	u.reopen = func() (SerialPort, error) { return replacement, nil }

	u.TransmitByte('5')
	require.NoError(t, u.Close())

	port.AssertNumberOfCalls(t, "Write", 1)
	port.AssertCalled(t, "Close")
	assert.Equal(t, []byte{'5'}, replacement.Bytes())
	assert.Equal(t, uint64(1), u.Stats().Sent)
}

func TestUARTDropsOnOverrun(t *testing.T) {
	port := &blockingPort{release: make(chan struct{})}
	cfg := testUARTConfig()
	cfg.TxBuffer = 2
	u := NewUART(port, cfg)

	for i := 0; i < 10; i++ {
		u.TransmitByte(byte('0' + i))
	}
	// 至多一个在写、两个在缓冲
	assert.GreaterOrEqual(t, u.Stats().Dropped, uint64(7))

	port.unblock()
	require.NoError(t, u.Close())

	s := u.Stats()
	assert.Equal(t, uint64(10), s.Sent+s.Dropped)
	assert.Equal(t, byte('0'), port.Bytes()[0])
}

func TestUARTTransmitAfterClose(t *testing.T) {
	mem := NewMemoryPort()
	u := NewUART(mem, testUARTConfig())
	require.NoError(t, u.Close())
	require.NoError(t, u.Close())

	u.TransmitByte('9')
	assert.Empty(t, mem.Bytes())
	assert.Equal(t, uint64(1), u.Stats().Dropped)
}

func TestOpenUARTMissingDevice(t *testing.T) {
	cfg := testUARTConfig()
	cfg.Port = "/dev/lotto-draw-missing"
	cfg.BaudRate = 9600
	cfg.DataBits = 8
	cfg.RetryTimes = 2

	_, err := OpenUART(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "串口")
}

func TestIsDisconnect(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("write timeout"), false},
		{errors.New("read /dev/ttyUSB0: input/output error"), true},
		{errors.New("write: broken pipe"), true},
		{errors.New("open /dev/ttyUSB0: no such file or directory"), true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isDisconnect(tt.err), "%v", tt.err)
	}
}
