package sensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func val(v float64) *float64 {
	return &v
}

func TestEffectiveTempMaxOfValid(t *testing.T) {
	readings := []Reading{
		{SensorID: "hb0", Celsius: val(61.5)},
		{SensorID: "hb1"},
		{SensorID: "hb2", Celsius: val(74.25)},
		{SensorID: "psu", Celsius: val(40)},
	}

	temp, ok := EffectiveTemp(readings)
	assert.True(t, ok)
	assert.Equal(t, 74.25, temp)
}

func TestEffectiveTempSingleValid(t *testing.T) {
	readings := []Reading{
		{SensorID: "hb0"},
		{SensorID: "hb1", Celsius: val(-3.5)},
	}

	temp, ok := EffectiveTemp(readings)
	assert.True(t, ok)
	assert.Equal(t, -3.5, temp, "negative temperatures are legal readings")
}

func TestEffectiveTempAllInvalid(t *testing.T) {
	readings := []Reading{{SensorID: "hb0"}, {SensorID: "hb1"}}

	_, ok := EffectiveTemp(readings)
	assert.False(t, ok)
}

func TestEffectiveTempNoReadings(t *testing.T) {
	_, ok := EffectiveTemp(nil)
	assert.False(t, ok)
}

func TestReadingValid(t *testing.T) {
	assert.False(t, Reading{SensorID: "hb0"}.Valid())
	assert.True(t, Reading{SensorID: "hb0", Celsius: val(0.5)}.Valid())
}
