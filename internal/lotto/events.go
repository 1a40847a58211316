package lotto

import "time"

// EventType 事件类型
type EventType string

const (
	EventStart     EventType = "start"     // 抽号定时器启动
	EventCandidate EventType = "candidate" // 新的候选号码
	EventCommit    EventType = "commit"    // 停止确认，号码入表并发送
	EventFinish    EventType = "finish"    // 已抽满，显示结束字形
	EventReset     EventType = "reset"     // 复位
	EventBounce    EventType = "bounce"    // 按键抖动被丢弃
	EventAbort     EventType = "abort"     // 抽号周期异常中止
)

// Event 状态机事件，在中断上下文中产生
type Event struct {
	Type    EventType `json:"type"`
	RoundID string    `json:"round_id"`
	Action  Action    `json:"action,omitempty"`
	Value   uint8     `json:"value"`
	Count   int       `json:"count"`
	Byte    *byte     `json:"byte,omitempty"` // 发往串口的字节
	Error   string    `json:"error,omitempty"`
	Time    time.Time `json:"time"`
}

// Observer 事件观察者，在中断上下文中被调用，不能阻塞
type Observer func(Event)
