package thermal

// Gains are tuned for degrees-in, percent-out with a tick on the order of
// seconds. Proportional-dominant keeps the loop stable over the whole legal
// target range; the small integral removes steady-state offset.
const (
	pidKP = 4.0
	pidKI = 0.05
	pidKD = 2.0
)

// pid drives fan speed toward a target temperature from above: output grows
// as the input rises past the target. Output and integral are clamped to
// [floor, ceil] so the loop cannot wind up while the fans are pinned.
type pid struct {
	target   float64
	integral float64
	lastIn   float64
	hasLast  bool
	floor    float64
	ceil     float64
}

func newPID() *pid {
	return &pid{floor: normalFloorPercent, ceil: 100}
}

func (p *pid) setTarget(t float64) {
	p.target = t
}

func (p *pid) setFloor(floor float64) {
	p.floor = floor
	p.clampIntegral()
}

func (p *pid) update(input float64) float64 {
	err := input - p.target

	p.integral += pidKI * err
	p.clampIntegral()

	var deriv float64
	if p.hasLast {
		deriv = input - p.lastIn
	}
	p.lastIn = input
	p.hasLast = true

	out := pidKP*err + p.integral + pidKD*deriv
	if out < p.floor {
		out = p.floor
	}
	if out > p.ceil {
		out = p.ceil
	}
	return out
}

func (p *pid) clampIntegral() {
	if p.integral < p.floor {
		p.integral = p.floor
	}
	if p.integral > p.ceil {
		p.integral = p.ceil
	}
}

// reset clears accumulated state. Used when the mode switches away from
// automatic and back, so stale wind-up cannot kick the fans.
func (p *pid) reset() {
	p.integral = p.floor
	p.hasLast = false
}
