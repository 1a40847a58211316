package lotto

// SegmentDriver 数码管驱动
type SegmentDriver interface {
	// SetSegments 设置一组段输出，pattern 为该组中需要点亮的位
	SetSegments(group int, pattern uint8)
	// SelectDigit 打开或关闭某一位的位选
	SelectDigit(position int, active bool)
}

// EntropySource 随机源，每次调用都必须重新触发产生新值
type EntropySource interface {
	Sample() uint16
}

// SerialSink 串口发送，不能阻塞调用方
type SerialSink interface {
	TransmitByte(b byte)
}

// Timer 定时器外设，到期时请求其中断向量
type Timer interface {
	Start()
	Stop()
	Running() bool
}

// ButtonPort 按键端口（下降沿触发，可按线屏蔽）
type ButtonPort interface {
	// Flags 已置位的边沿标志
	Flags() LineMask
	// ClearFlags 清除边沿标志
	ClearFlags(m LineMask)
	// DisableEdges 屏蔽边沿中断
	DisableEdges(m LineMask)
	// EnableEdges 使能边沿中断
	EnableEdges(m LineMask)
	// Asserted 输入线当前是否处于按下状态
	Asserted(l Line) bool
}
