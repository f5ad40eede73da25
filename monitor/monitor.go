// Package monitor runs the single periodic control cycle: read sensors, run
// the thermal controller, drive the fans, assert or release the workload
// stop command, and publish status. Everything decision-bearing lives in the
// packages it calls; the monitor owns only the cadence and the overrides.
package monitor

import (
	"sync/atomic"
	"time"

	"minerctl/device/power"
	"minerctl/device/sensor"
	"minerctl/identity"
	"minerctl/log"
	"minerctl/status"
	"minerctl/thermal"
)

// FanBank is the slice of the fan driver the cycle needs.
type FanBank interface {
	SetAllPercent(percent uint32) error
	PollAlarms()
	AlarmState() bool
}

// HealthSource supplies the external mining workload health signal.
type HealthSource interface {
	Health() status.WorkloadHealth
}

type pendingMode struct {
	mode thermal.FanMode
}

type Monitor struct {
	ctrl     *thermal.Controller
	sensors  sensor.Source
	fans     FanBank
	workload power.WorkloadControl
	health   HealthSource
	ident    identity.DeviceIdentity

	tickInterval time.Duration
	started      time.Time
	done         chan struct{}

	exiting     atomic.Bool
	forceMaxFan atomic.Bool
	blink       atomic.Bool
	modeChange  atomic.Pointer[pendingMode]
}

func New(ctrl *thermal.Controller, sensors sensor.Source, fans FanBank,
	workload power.WorkloadControl, health HealthSource,
	ident identity.DeviceIdentity, tickInterval time.Duration) *Monitor {
	return &Monitor{
		ctrl:         ctrl,
		sensors:      sensors,
		fans:         fans,
		workload:     workload,
		health:       health,
		ident:        ident,
		tickInterval: tickInterval,
		started:      time.Now(),
		done:         make(chan struct{}),
	}
}

// Run drives the cycle until Fini is called. Blocks.
func (m *Monitor) Run() {
	defer close(m.done)
	for !m.exiting.Load() {
		m.Tick(time.Now())
		time.Sleep(m.tickInterval)
	}
	m.shutdownReport()
}

// Fini stops the cycle after the current tick.
func (m *Monitor) Fini() {
	m.exiting.Store(true)
}

// Done is closed once the cycle has stopped and the final report ran.
func (m *Monitor) Done() <-chan struct{} {
	return m.done
}

// Tick executes one control cycle. Exported so tests can drive the cycle
// synchronously without timers.
func (m *Monitor) Tick(now time.Time) thermal.Snapshot {
	if pm := m.modeChange.Swap(nil); pm != nil {
		log.Infof("Fan mode changed to %s", pm.mode)
		m.ctrl.SetMode(pm.mode)
	}

	readings := m.sensors.ReadAll()
	snap := m.ctrl.Tick(readings, now.Sub(m.started))

	speed := snap.FanSpeedPercent
	if m.forceMaxFan.Load() {
		speed = 100
	}
	if err := m.fans.SetAllPercent(speed); err != nil {
		log.Errorf("fan actuation: %v", err)
	}
	m.fans.PollAlarms()

	// Level-triggered: the stop command is re-asserted every cycle for as
	// long as the shutdown verdict holds.
	if snap.Verdict == thermal.VerdictDangerousShutdown {
		m.workload.StopMining(snap.Reason)
	} else {
		m.workload.ResumeMining()
	}

	log.Debugf("Monitor: %s | fan %d%% | verdict %s", snap.Reason, speed, snap.Verdict)
	return snap
}

// shutdownReport is the mandatory final reporting step: the cycle is about
// to stop, so leave the hardware fail-safe and say why the workload halted.
func (m *Monitor) shutdownReport() {
	snap := m.ctrl.Status()
	_ = m.fans.SetAllPercent(100)
	if snap.Verdict == thermal.VerdictDangerousShutdown {
		m.workload.StopMining(snap.Reason)
		log.Errorf("Monitor exiting while in shutdown state: %s", snap.Reason)
	} else {
		log.Infof("Monitor exiting, last verdict %s", snap.Verdict)
	}
}

// SetFanMode queues a mode change; it is applied by the owning cycle at the
// next tick boundary.
func (m *Monitor) SetFanMode(mode thermal.FanMode) {
	m.modeChange.Store(&pendingMode{mode: mode})
}

// ForceMaxFan pins the fans at 100% regardless of the controller output.
func (m *Monitor) ForceMaxFan(on bool) {
	m.forceMaxFan.Store(on)
	log.Infof("Force max fan: %v", on)
}

// SetBlink turns the locate-this-device status override on or off.
func (m *Monitor) SetBlink(on bool) {
	m.blink.Store(on)
}

// Identity returns the session identity resolved at boot.
func (m *Monitor) Identity() identity.DeviceIdentity {
	return m.ident
}

// Status recomputes the aggregate operational status on demand.
func (m *Monitor) Status() status.Code {
	return status.Compute(status.Inputs{
		Identity:      m.ident,
		Thermal:       m.ctrl.Status(),
		Health:        m.health.Health(),
		OverrideBlink: m.blink.Load(),
	})
}

// ThermalStatus returns the current controller snapshot.
func (m *Monitor) ThermalStatus() thermal.Snapshot {
	return m.ctrl.Status()
}

// FanAlarm reports whether any fan is below its minimum speed.
func (m *Monitor) FanAlarm() bool {
	return m.fans.AlarmState()
}
