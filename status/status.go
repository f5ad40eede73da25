// Package status merges the session identity, the thermal snapshot and the
// workload health signal into the single operational value the LED driver
// and telemetry consume. It holds no state of its own.
package status

import (
	"minerctl/identity"
	"minerctl/thermal"
)

type Code int

const (
	NotRunning Code = iota
	SlowOrDisconnected
	OperationalBelowThreshold
	OperationalNormal
	UserOverrideBlink
)

func (c Code) String() string {
	switch c {
	case SlowOrDisconnected:
		return "slow-or-disconnected"
	case OperationalBelowThreshold:
		return "operational-below-threshold"
	case OperationalNormal:
		return "operational-normal"
	case UserOverrideBlink:
		return "user-override-blink"
	}
	return "not-running"
}

const (
	// Below this fraction of expected hash rate the miner counts as slow.
	slowHashRateRatio = 0.2
	// Below this fraction it still runs but under-performs.
	lowHashRateRatio = 0.8
)

// WorkloadHealth is supplied by the external mining workload.
type WorkloadHealth struct {
	Running       bool
	PoolConnected bool
	// HashRateRatio is measured over expected hash rate, 1.0 = nominal.
	HashRateRatio float64
}

// Inputs is everything one evaluation needs. Identity is read-only after
// boot; Thermal is the current cycle's snapshot.
type Inputs struct {
	Identity      identity.DeviceIdentity
	Thermal       thermal.Snapshot
	Health        WorkloadHealth
	OverrideBlink bool
}

// Compute maps the inputs to a status code. Recomputed on demand; the
// operator blink wins over everything so a device can always be located in a
// rack.
func Compute(in Inputs) Code {
	if in.OverrideBlink {
		return UserOverrideBlink
	}
	if in.Thermal.Verdict == thermal.VerdictDangerousShutdown || !in.Health.Running {
		return NotRunning
	}
	if !in.Health.PoolConnected || in.Health.HashRateRatio < slowHashRateRatio {
		return SlowOrDisconnected
	}
	if in.Health.HashRateRatio < lowHashRateRatio {
		return OperationalBelowThreshold
	}
	return OperationalNormal
}
