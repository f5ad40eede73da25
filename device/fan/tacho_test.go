package fan

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func resetTacho() {
	tachoData = make(map[int]*tachometer)
	pin2index = make(map[int]int)
}

func TestGetRPMUnknownFan(t *testing.T) {
	resetTacho()
	assert.Equal(t, -1, GetRPM(0))
}

func TestGetRPMSumsRecentSlots(t *testing.T) {
	resetTacho()
	addTacho(0, 4)

	v := tachoData[0]
	// three completed half-second slots of 60 edges each: a fan doing
	// 120 cycles/s, 2 cycles per revolution = 3600 RPM
	v.counter[0] = 60
	v.counter[1] = 60
	v.counter[2] = 60
	v.cursor = 3

	assert.Equal(t, 3600, GetRPM(0))
}

func TestGetRPMIgnoresCurrentSlot(t *testing.T) {
	resetTacho()
	addTacho(0, 4)

	v := tachoData[0]
	v.counter[3] = 999 // still being filled
	v.cursor = 3

	assert.Equal(t, 0, GetRPM(0))
}

func TestTachoSlotWrap(t *testing.T) {
	resetTacho()
	addTacho(0, 4)

	v := tachoData[0]
	v.counter[7] = 50
	v.counter[6] = 50
	v.counter[5] = 50
	v.cursor = 0

	assert.Equal(t, 3000, GetRPM(0))
}
