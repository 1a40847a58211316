package lotto

import apperrors "github.com/wfunc/lotto-draw/internal/errors"

// ASCIIToDigit DigitToASCII 的逆运算
func ASCIIToDigit(b byte) (uint8, error) {
	if b < '0' || b >= '0'+ValueSpace {
		return 0, apperrors.Newf(apperrors.ErrDrawValueRange, "字节 0x%02X", b)
	}
	return b - '0', nil
}

// StreamItem 解码出的一项
type StreamItem struct {
	Value      uint8
	EndOfRound bool
	Round      []uint8 // EndOfRound 时为本局已收到的号码
}

// StreamDecoder 接收端还原串口字节流：每个号码一个字节，换行结束一局。
// 复位和抽满都会发送换行，所以一局可能少于 MaxDraws 个号码，也可能为空。
type StreamDecoder struct {
	values []uint8
}

// Feed 输入一个字节
func (d *StreamDecoder) Feed(b byte) (StreamItem, error) {
	if b == LineFeed {
		round := d.values
		d.values = nil
		if round == nil {
			round = []uint8{}
		}
		return StreamItem{EndOfRound: true, Round: round}, nil
	}

	v, err := ASCIIToDigit(b)
	if err != nil {
		return StreamItem{}, err
	}
	d.values = append(d.values, v)
	return StreamItem{Value: v}, nil
}

// Pending 本局已收到但尚未结束的号码
func (d *StreamDecoder) Pending() []uint8 {
	return append([]uint8(nil), d.values...)
}
