// Package thermal converts temperature readings into a fan actuation command
// and a safety verdict. It owns no timers: the control cycle calls Tick on
// its own cadence and passes elapsed time in, so the whole decision ladder is
// deterministic.
package thermal

import (
	"fmt"
	"sync/atomic"
	"time"

	"minerctl/device/sensor"
)

const (
	// WarmUpPeriod is how long after sensor init the warm-up floor applies.
	WarmUpPeriod = 2 * time.Minute

	warmUpFloorPercent = 60
	normalFloorPercent = 10

	// dangerousReleaseBand keeps the shutdown verdict latched until the
	// temperature has dropped clearly below the dangerous threshold, so the
	// workload does not thrash on and off at the exact limit.
	dangerousReleaseBand = 5.0
)

// Snapshot is the immutable per-cycle output. Readers always observe a fan
// speed and verdict produced by the same cycle.
type Snapshot struct {
	Mode            FanMode
	Uptime          time.Duration
	FanSpeedPercent uint32
	Verdict         Verdict
	EffectiveTemp   float64
	TempValid       bool
	Reason          string
}

// Controller runs the decision ladder. A single cycle owns Tick; Status may
// be read from anywhere.
type Controller struct {
	limits Limits
	mode   FanMode
	pid    *pid

	seenValidReading bool
	dangerLatched    bool

	snapshot atomic.Pointer[Snapshot]
}

func NewController(mode FanMode, limits Limits) *Controller {
	c := &Controller{
		limits: limits,
		mode:   mode,
		pid:    newPID(),
	}
	c.snapshot.Store(&Snapshot{
		Mode:            mode,
		FanSpeedPercent: 100,
		Verdict:         VerdictNormal,
		Reason:          "startup: no reading yet",
	})
	return c
}

// SetMode switches the control method. Must be called from the cycle that
// owns Tick; the monitor applies queued mode changes at the cycle boundary.
func (c *Controller) SetMode(mode FanMode) {
	c.mode = mode
	c.pid.reset()
}

// Status returns the most recently published snapshot.
func (c *Controller) Status() Snapshot {
	return *c.snapshot.Load()
}

// Tick evaluates one control cycle. Rules, highest priority first: no valid
// reading ever / unavailable temperature -> full speed, normal; dangerous
// temperature -> shutdown at full speed; hot temperature -> full speed
// override; fixed mode -> configured speed; automatic -> PID with a warm-up
// floor for the first two minutes of elapsed.
func (c *Controller) Tick(readings []sensor.Reading, elapsed time.Duration) Snapshot {
	temp, valid := sensor.EffectiveTemp(readings)
	if valid {
		c.seenValidReading = true
	}

	snap := Snapshot{
		Mode:          c.mode,
		Uptime:        elapsed,
		EffectiveTemp: temp,
		TempValid:     valid,
	}

	switch {
	case !c.seenValidReading:
		// Sensor init window: rule 1 cannot even evaluate yet.
		snap.FanSpeedPercent = 100
		snap.Verdict = VerdictNormal
		snap.Reason = "fans full speed: no reading since sensor init"

	case !valid:
		// Unknown temperature is maximum risk, not zero risk. The danger
		// latch is left as-is; it re-evaluates when readings return.
		snap.FanSpeedPercent = 100
		snap.Verdict = VerdictNormal
		snap.Reason = "fans full speed: unknown temperature"

	default:
		if temp >= c.limits.DangerousTemp {
			c.dangerLatched = true
		} else if temp < c.limits.DangerousTemp-dangerousReleaseBand {
			c.dangerLatched = false
		}

		switch {
		case c.dangerLatched:
			snap.FanSpeedPercent = 100
			snap.Verdict = VerdictDangerousShutdown
			snap.Reason = fmt.Sprintf("shutdown: temperature %.1f°C at dangerous limit %.1f°C", temp, c.limits.DangerousTemp)

		case temp >= c.limits.HotTemp:
			snap.FanSpeedPercent = 100
			snap.Verdict = VerdictHotOverride
			snap.Reason = fmt.Sprintf("fans full speed: temperature %.1f°C above hot limit %.1f°C", temp, c.limits.HotTemp)

		default:
			switch m := c.mode.(type) {
			case Fixed:
				snap.FanSpeedPercent = m.SpeedPercent
				snap.Verdict = VerdictNormal
				snap.Reason = fmt.Sprintf("user defined fan %d%%", m.SpeedPercent)

			case Automatic:
				if elapsed < WarmUpPeriod {
					c.pid.setFloor(warmUpFloorPercent)
				} else {
					c.pid.setFloor(normalFloorPercent)
				}
				c.pid.setTarget(m.TargetTemp)
				out := c.pid.update(temp)
				snap.FanSpeedPercent = uint32(out + 0.5)
				snap.Verdict = VerdictNormal
				snap.Reason = fmt.Sprintf("automatic fan control: input %.1f°C target %.0f°C", temp, m.TargetTemp)
			}
		}
	}

	c.snapshot.Store(&snap)
	return snap
}
