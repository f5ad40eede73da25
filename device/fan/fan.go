package fan

import (
	"fmt"
	"sync"

	"minerctl/device/devhdr"
	"minerctl/device/pwm"
	"minerctl/log"
)

// Actuator is what the control cycle drives: one speed for the whole bank.
type Actuator interface {
	// SetAllPercent sets every fan in the bank to percent of full speed.
	SetAllPercent(percent uint32) error

	// RPM returns the measured speed of one fan, -1 if unknown.
	RPM(index int) int

	// AlarmState reports whether any fan is spinning below the minimum.
	AlarmState() bool
}

const (
	// This is ~14% of full speed (7k RPM)
	fanSpeedMin = 1000
)

// Bank drives all chassis fans at a common speed and watches their
// tachometers.
type Bank struct {
	mu        sync.Mutex
	pins      []*pwm.PWMPin
	alarm     []bool
	lastSet   uint32
	pollCount uint
}

// Init exports and configures every fan defined for the chassis and starts
// tachometer capture. Fans start at full speed until the controller takes
// over.
func Init() (*Bank, error) {
	defs := devhdr.ChassisCfg.Fans
	b := &Bank{
		pins:  make([]*pwm.PWMPin, 0, len(defs)),
		alarm: make([]bool, len(defs)),
	}

	for i, d := range defs {
		pin, err := addFan(d)
		if err != nil {
			log.Errorf("err init fan %d: %s", i, err)
			continue
		}
		b.pins = append(b.pins, pin)
		addTacho(i, d.TachoPin)
	}
	if len(b.pins) == 0 {
		return nil, fmt.Errorf("no usable fans")
	}

	startTacho(devhdr.ChassisCfg.TachoChip)

	if err := b.SetAllPercent(100); err != nil {
		return nil, err
	}
	return b, nil
}

func addFan(d devhdr.FanDef) (*pwm.PWMPin, error) {
	pin := pwm.NewPin(d.CtrlChip, d.CtrlChannel)

	if err := pin.Export(); err != nil {
		return nil, err
	}

	// control pin needs a fixed PWM frequency of 25kHz
	if err := pin.SetPeriod(40000); err != nil {
		return nil, err
	}

	// full speed by default
	if err := pin.SetDutyCycle(40000); err != nil {
		return nil, err
	}

	if err := pin.Enable(true); err != nil {
		return nil, err
	}

	return pin, nil
}

func (b *Bank) SetAllPercent(percent uint32) error {
	if percent > 100 {
		percent = 100
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	var firstErr error
	for i, pin := range b.pins {
		if err := pin.SetDutyCyclePercent(percent); err != nil {
			log.Errorf("fan %d: set %d%%: %s", i, percent, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	b.lastSet = percent
	return firstErr
}

// LastSetPercent returns the most recent commanded speed.
func (b *Bank) LastSetPercent() uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastSet
}

func (b *Bank) RPM(index int) int {
	return GetRPM(index)
}

// PollAlarms samples every tachometer against the minimum speed. Called once
// per control cycle. The first poll is ignored since the counters are empty.
func (b *Bank) PollAlarms() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.pollCount++
	if b.pollCount <= 1 {
		return
	}

	for i := range b.pins {
		rpm := GetRPM(i)
		if rpm < fanSpeedMin {
			if !b.alarm[i] { // Spam control - only alert first time
				log.Errorf("ALARM: Fan %d speed %d RPM is below threshold %d RPM poll %d", i+1, rpm, fanSpeedMin, b.pollCount)
			}
			b.alarm[i] = true
		} else {
			if b.alarm[i] {
				log.Infof("Fan %d speed %d RPM is back above threshold %d poll %d", i+1, rpm, fanSpeedMin, b.pollCount)
			}
			b.alarm[i] = false
		}
	}
}

func (b *Bank) AlarmState() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, a := range b.alarm {
		if a {
			return true
		}
	}
	return false
}
