// Package sensor reads the board temperature sensors and normalizes their
// output for the thermal controller. It uses the periph.io I2C stack to avoid
// cgo, unsafe and raw syscalls.
package sensor

import (
	"fmt"
	"sync"

	"minerctl/device/devhdr"
	"minerctl/log"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// Reading is one normalized sensor sample. Celsius is nil when the sensor
// faulted; a dead or missing sensor never produces a number.
type Reading struct {
	SensorID string
	Celsius  *float64
}

// Valid reports whether the reading carries a usable temperature.
func (r Reading) Valid() bool {
	return r.Celsius != nil
}

// Source produces one full set of readings per call. The control cycle owns
// the cadence.
type Source interface {
	ReadAll() []Reading
}

// EffectiveTemp aggregates a reading set to the single temperature the
// controller works with: the maximum over all valid readings. ok is false
// when no reading is valid.
func EffectiveTemp(readings []Reading) (temp float64, ok bool) {
	for _, r := range readings {
		if !r.Valid() {
			continue
		}
		if !ok || *r.Celsius > temp {
			temp = *r.Celsius
		}
		ok = true
	}
	return temp, ok
}

// I2CSource reads every sensor defined for the chassis over I2C.
type I2CSource struct {
	mu       sync.Mutex
	defs     []devhdr.SensorDef
	buses    map[string]i2c.BusCloser
	failures []int
}

// NewI2CSource initializes the periph host and opens a bus handle per
// distinct bus named in the chassis definition.
func NewI2CSource() (*I2CSource, error) {
	if _, err := host.Init(); err != nil {
		return nil, err
	}

	s := &I2CSource{
		defs:     devhdr.ChassisCfg.Sensors,
		buses:    make(map[string]i2c.BusCloser),
		failures: make([]int, len(devhdr.ChassisCfg.Sensors)),
	}
	for _, d := range s.defs {
		if _, ok := s.buses[d.Bus]; ok {
			continue
		}
		bus, err := i2creg.Open(d.Bus)
		if err != nil {
			return nil, fmt.Errorf("open i2c bus %s: %w", d.Bus, err)
		}
		s.buses[d.Bus] = bus
	}
	return s, nil
}

func (s *I2CSource) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, bus := range s.buses {
		bus.Close()
	}
}

// ReadAll samples every configured sensor. Failures and all-zero samples come
// back as invalid readings, never as errors.
func (s *I2CSource) ReadAll() []Reading {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Reading, 0, len(s.defs))
	for i, d := range s.defs {
		v, err := s.readTemp(d)
		if err != nil {
			s.failures[i]++
			if s.failures[i] < 2 || s.failures[i]%100 == 0 { // Don't spam the log
				log.Errorf("Error reading temperature sensor %s 0x%02x: %s", d.Bus, d.Addr, err)
			}
			out = append(out, Reading{SensorID: d.Name})
			continue
		}
		s.failures[i] = 0
		if v == 0 {
			// an exact zero is the sensor's power-on reset value, not a
			// plausible board temperature
			out = append(out, Reading{SensorID: d.Name})
			continue
		}
		t := v
		out = append(out, Reading{SensorID: d.Name, Celsius: &t})
	}
	return out
}

func (s *I2CSource) readTemp(d devhdr.SensorDef) (float64, error) {
	bus, ok := s.buses[d.Bus]
	if !ok {
		return 0, fmt.Errorf("no bus handle for %s", d.Bus)
	}

	dev := i2c.Dev{Bus: bus, Addr: d.Addr}
	var temp [2]byte
	if err := dev.Tx([]byte{0}, temp[:]); err != nil {
		return 0, err
	}

	return float64(int8(temp[0])) + float64(temp[1])/256, nil
}
