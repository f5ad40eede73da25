package thermal

import "fmt"

// FanMode is the configured control method. It is a closed set: a speed
// value cannot be paired with automatic mode, a target temperature cannot be
// paired with fixed mode.
type FanMode interface {
	fanMode()
	String() string
}

// Automatic regulates fan speed toward a target temperature.
type Automatic struct {
	TargetTemp float64
}

func (Automatic) fanMode() {}

func (m Automatic) String() string {
	return fmt.Sprintf("auto(%.0f°C)", m.TargetTemp)
}

// Fixed holds the fans at a user-chosen speed.
type Fixed struct {
	SpeedPercent uint32
}

func (Fixed) fanMode() {}

func (m Fixed) String() string {
	return fmt.Sprintf("fixed(%d%%)", m.SpeedPercent)
}

// Limits are the safety thresholds. HotTemp must be below DangerousTemp;
// config validates that before the controller ever sees them.
type Limits struct {
	HotTemp       float64
	DangerousTemp float64
}

// Verdict is the safety outcome of one control cycle.
type Verdict int

const (
	VerdictNormal Verdict = iota
	VerdictHotOverride
	VerdictDangerousShutdown
)

func (v Verdict) String() string {
	switch v {
	case VerdictHotOverride:
		return "hot-override"
	case VerdictDangerousShutdown:
		return "dangerous-shutdown"
	}
	return "normal"
}
