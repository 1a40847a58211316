package lotto

import (
	apperrors "github.com/wfunc/lotto-draw/internal/errors"
)

// DrawnView 抽号引擎对已抽号码的只读视图
type DrawnView interface {
	Len() int
	Contains(v uint8) bool
}

// DrawnSet 已抽号码表，定长存储，元素两两不同
type DrawnSet struct {
	values [DrawnCapacity]uint8
	n      int
}

// Len 已抽数量
func (s *DrawnSet) Len() int {
	return s.n
}

// Full 是否已满
func (s *DrawnSet) Full() bool {
	return s.n == DrawnCapacity
}

// Contains 是否已抽出
func (s *DrawnSet) Contains(v uint8) bool {
	for i := 0; i < s.n; i++ {
		if s.values[i] == v {
			return true
		}
	}
	return false
}

// Append 追加号码，重复、越界或表满时返回错误且不修改
func (s *DrawnSet) Append(v uint8) error {
	if v >= ValueSpace {
		return apperrors.Newf(apperrors.ErrDrawValueRange, "value=%d", v)
	}
	if s.Full() {
		return apperrors.Newf(apperrors.ErrDrawSetFull, "capacity=%d", DrawnCapacity)
	}
	if s.Contains(v) {
		return apperrors.Newf(apperrors.ErrDuplicateDraw, "value=%d", v)
	}
	s.values[s.n] = v
	s.n++
	return nil
}

// Clear 清空
func (s *DrawnSet) Clear() {
	s.values = [DrawnCapacity]uint8{}
	s.n = 0
}

// Values 按抽出顺序返回副本
func (s *DrawnSet) Values() []uint8 {
	out := make([]uint8, s.n)
	copy(out, s.values[:s.n])
	return out
}
