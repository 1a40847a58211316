package hardware

import (
	"crypto/rand"
	"encoding/binary"
	"sync"

	"github.com/wfunc/lotto-draw/internal/logger"
	"go.uber.org/zap"
)

// crcPoly CRC-CCITT 多项式
const crcPoly = 0x1021

// DefaultCRCSeed 上电时 CRC 寄存器的初值
const DefaultCRCSeed uint16 = 0xFFFF

// CRCEntropy CRC16 模块模型：每次采样向寄存器写入一个零字节并读回结果。
// 初始化时先写入一个零字，与板上的初始化顺序一致。
type CRCEntropy struct {
	mu  sync.Mutex
	reg uint16
}

// NewCRCEntropy 以 seed 初始化
func NewCRCEntropy(seed uint16) *CRCEntropy {
	e := &CRCEntropy{reg: seed}
	e.feed(0x00)
	e.feed(0x00)
	return e
}

func (e *CRCEntropy) feed(b byte) {
	e.reg ^= uint16(b) << 8
	for i := 0; i < 8; i++ {
		if e.reg&0x8000 != 0 {
			e.reg = e.reg<<1 ^ crcPoly
		} else {
			e.reg <<= 1
		}
	}
}

// Sample 写入零字节并返回寄存器值
func (e *CRCEntropy) Sample() uint16 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.feed(0x00)
	return e.reg
}

// CryptoEntropy 操作系统随机源
type CryptoEntropy struct{}

// Sample 读取两个随机字节，失败时返回 0（由抽号引擎的重试上限兜底）
func (CryptoEntropy) Sample() uint16 {
	var buf [2]byte
	if _, err := rand.Read(buf[:]); err != nil {
		logger.GetModuleLogger("hardware").Error("读取系统随机源失败", zap.Error(err))
		return 0
	}
	return binary.LittleEndian.Uint16(buf[:])
}
