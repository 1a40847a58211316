package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDrawRoundValues(t *testing.T) {
	var r DrawRound
	assert.Equal(t, []uint8{}, r.ValueList())

	r.AppendValue(17)
	r.AppendValue(0)
	r.AppendValue(31)

	assert.Equal(t, "17,0,31", r.Values)
	assert.Equal(t, 3, r.Count)
	assert.Equal(t, []uint8{17, 0, 31}, r.ValueList())
}

func TestDrawRecordSerialHex(t *testing.T) {
	var r DrawRecord
	assert.Empty(t, r.SerialHex())

	b := uint8('0' + 17)
	r.SerialByte = &b
	assert.Equal(t, "0x41", r.SerialHex())

	lf := uint8('\n')
	r.SerialByte = &lf
	assert.Equal(t, "0x0A", r.SerialHex())
}
