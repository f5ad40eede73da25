// Package power turns the mining workload on and off. The stop command is
// level-triggered: the control cycle keeps calling StopMining for as long as
// the shutdown condition holds, and the pins stay asserted the whole time.
package power

import (
	"sync"

	"minerctl/device/devhdr"
	"minerctl/log"

	"gobot.io/x/gobot/sysfs"
)

// WorkloadControl is the host collaborator contract the thermal safety logic
// talks to.
type WorkloadControl interface {
	// StopMining powers the workload down. Safe to call every cycle.
	StopMining(reason string)
	// ResumeMining lets the workload run again.
	ResumeMining()
	// MiningStopped reports whether the stop command is currently asserted.
	MiningStopped() bool
}

// GPIOControl cuts hash board power and holds the ASICs in reset through the
// chassis GPIO pins.
type GPIOControl struct {
	mu      sync.Mutex
	stopped bool
}

func NewGPIOControl() *GPIOControl {
	return &GPIOControl{}
}

func (g *GPIOControl) StopMining(reason string) {
	g.mu.Lock()
	first := !g.stopped
	g.stopped = true
	g.mu.Unlock()

	if first { // Spam control - the cycle re-asserts every tick
		log.Errorf("StopMining: powering down hash boards: %s", reason)
	}

	for slot := 1; slot <= devhdr.MaxHashBoards; slot++ {
		pins, ok := devhdr.GetPowerPins(slot)
		if !ok {
			continue
		}
		writePin(pins.PowerPin, 0)
		writePin(pins.ResetPin, 0) // RESET_L - write 0 to assert reset
	}
}

func (g *GPIOControl) ResumeMining() {
	g.mu.Lock()
	wasStopped := g.stopped
	g.stopped = false
	g.mu.Unlock()

	if !wasStopped {
		return
	}

	log.Infof("ResumeMining: taking hash boards out of reset")
	for slot := 1; slot <= devhdr.MaxHashBoards; slot++ {
		pins, ok := devhdr.GetPowerPins(slot)
		if !ok {
			continue
		}
		writePin(pins.ResetPin, 1) // RESET_L - write 1 to deassert reset
		writePin(pins.PowerPin, 1)
	}
}

func (g *GPIOControl) MiningStopped() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.stopped
}

func writePin(pin int, value int) {
	if pin == 0 {
		return
	}
	p := sysfs.NewDigitalPin(pin)
	_ = p.Export()
	_ = p.Direction("out")
	_ = p.Write(value)
	_ = p.Unexport()
}
