package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DrawEventType 日志事件类型
type DrawEventType string

const (
	DrawEventCommit DrawEventType = "commit" // 号码确认并发送
	DrawEventFinish DrawEventType = "finish" // 本局结束
	DrawEventReset  DrawEventType = "reset"  // 复位，开始新一局
	DrawEventAbort  DrawEventType = "abort"  // 抽号周期异常中止
)

// RoundStatus 轮次状态
type RoundStatus string

const (
	RoundStatusOpen     RoundStatus = "open"     // 进行中
	RoundStatusFinished RoundStatus = "finished" // 已抽满并结束
	RoundStatusReset    RoundStatus = "reset"    // 未结束即被复位
)

// DrawRecord 抽号日志，只做审计，不用于上电恢复
type DrawRecord struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt time.Time `gorm:"index;not null" json:"created_at"`

	RoundID    string        `gorm:"type:varchar(36);index;not null" json:"round_id"`
	Event      DrawEventType `gorm:"type:varchar(16);index;not null" json:"event"`
	Action     string        `gorm:"type:varchar(16)" json:"action,omitempty"`
	Value      uint8         `gorm:"default:0" json:"value"`
	Count      int           `gorm:"default:0" json:"count"` // 事件发生后的已抽数量
	SerialByte *uint8        `json:"serial_byte,omitempty"`  // 发往串口的字节
	Error      string        `gorm:"type:varchar(255)" json:"error,omitempty"`
	OccurredAt time.Time     `gorm:"not null" json:"occurred_at"`
}

// TableName 表名
func (DrawRecord) TableName() string {
	return "draw_records"
}

// SerialHex 串口字节的十六进制表示
func (r *DrawRecord) SerialHex() string {
	if r.SerialByte == nil {
		return ""
	}
	return fmt.Sprintf("0x%02X", *r.SerialByte)
}

// DrawRound 一局抽号的汇总
type DrawRound struct {
	ID         string      `gorm:"primaryKey;type:varchar(36)" json:"id"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
	Status     RoundStatus `gorm:"type:varchar(16);index;default:open" json:"status"`
	Count      int         `gorm:"default:0" json:"count"`
	Values     string      `gorm:"type:varchar(64)" json:"values"` // 按抽出顺序，逗号分隔
	FinishedAt *time.Time  `json:"finished_at,omitempty"`
}

// TableName 表名
func (DrawRound) TableName() string {
	return "draw_rounds"
}

// AppendValue 追加一个已确认号码
func (r *DrawRound) AppendValue(v uint8) {
	s := strconv.Itoa(int(v))
	if r.Values == "" {
		r.Values = s
	} else {
		r.Values += "," + s
	}
	r.Count++
}

// ValueList 解析已抽号码
func (r *DrawRound) ValueList() []uint8 {
	if r.Values == "" {
		return []uint8{}
	}
	parts := strings.Split(r.Values, ",")
	out := make([]uint8, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseUint(p, 10, 8)
		if err != nil {
			continue
		}
		out = append(out, uint8(v))
	}
	return out
}
