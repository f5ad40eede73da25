package monitor

import (
	"testing"
	"time"

	"minerctl/device/sensor"
	"minerctl/identity"
	"minerctl/status"
	"minerctl/thermal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSensors struct {
	temps []float64
	valid bool
}

func (f *fakeSensors) ReadAll() []sensor.Reading {
	out := make([]sensor.Reading, 0, len(f.temps))
	for i := range f.temps {
		if !f.valid {
			out = append(out, sensor.Reading{})
			continue
		}
		v := f.temps[i]
		out = append(out, sensor.Reading{Celsius: &v})
	}
	return out
}

type fakeFans struct {
	lastPercent uint32
	setCalls    int
	pollCalls   int
	alarm       bool
}

func (f *fakeFans) SetAllPercent(p uint32) error {
	f.lastPercent = p
	f.setCalls++
	return nil
}

func (f *fakeFans) PollAlarms()      { f.pollCalls++ }
func (f *fakeFans) AlarmState() bool { return f.alarm }

type fakeWorkload struct {
	stopped     bool
	stopCalls   int
	resumeCalls int
	lastReason  string
}

func (f *fakeWorkload) StopMining(reason string) {
	f.stopped = true
	f.stopCalls++
	f.lastReason = reason
}

func (f *fakeWorkload) ResumeMining() {
	f.stopped = false
	f.resumeCalls++
}

func (f *fakeWorkload) MiningStopped() bool { return f.stopped }

type fakeHealth struct {
	h status.WorkloadHealth
}

func (f *fakeHealth) Health() status.WorkloadHealth { return f.h }

type fixture struct {
	mon      *Monitor
	sensors  *fakeSensors
	fans     *fakeFans
	workload *fakeWorkload
	health   *fakeHealth
}

func newFixture(mode thermal.FanMode) *fixture {
	f := &fixture{
		sensors:  &fakeSensors{temps: []float64{60}, valid: true},
		fans:     &fakeFans{},
		workload: &fakeWorkload{},
		health:   &fakeHealth{h: status.WorkloadHealth{Running: true, PoolConnected: true, HashRateRatio: 1.0}},
	}
	ctrl := thermal.NewController(mode, thermal.Limits{HotTemp: 90, DangerousTemp: 95})
	f.mon = New(ctrl, f.sensors, f.fans, f.workload, f.health,
		identity.DeviceIdentity{HardwareID: "test-board"}, time.Second)
	return f
}

func TestTickDrivesFansAndWorkload(t *testing.T) {
	f := newFixture(thermal.Fixed{SpeedPercent: 40})

	snap := f.mon.Tick(time.Now())
	assert.Equal(t, thermal.VerdictNormal, snap.Verdict)
	assert.Equal(t, uint32(40), f.fans.lastPercent)
	assert.Equal(t, 1, f.fans.pollCalls)
	assert.False(t, f.workload.stopped)
}

// The stop command is level-triggered: every dangerous cycle re-asserts it,
// recovery releases it.
func TestTickStopAndResume(t *testing.T) {
	require := require.New(t)
	f := newFixture(thermal.Fixed{SpeedPercent: 40})

	f.sensors.temps = []float64{96}
	f.mon.Tick(time.Now())
	require.True(f.workload.stopped)
	require.Equal(1, f.workload.stopCalls)
	assert.Contains(t, f.workload.lastReason, "shutdown")

	f.mon.Tick(time.Now())
	require.Equal(2, f.workload.stopCalls, "re-asserted each cycle")

	// well below the release band
	f.sensors.temps = []float64{70}
	f.mon.Tick(time.Now())
	assert.False(t, f.workload.stopped)
}

func TestForceMaxFanOverridesController(t *testing.T) {
	f := newFixture(thermal.Fixed{SpeedPercent: 40})

	f.mon.ForceMaxFan(true)
	f.mon.Tick(time.Now())
	assert.Equal(t, uint32(100), f.fans.lastPercent)

	f.mon.ForceMaxFan(false)
	f.mon.Tick(time.Now())
	assert.Equal(t, uint32(40), f.fans.lastPercent)
}

// A queued mode change is applied at the next tick boundary, not mid-cycle.
func TestSetFanModeAppliedAtBoundary(t *testing.T) {
	f := newFixture(thermal.Fixed{SpeedPercent: 40})
	f.mon.Tick(time.Now())

	f.mon.SetFanMode(thermal.Fixed{SpeedPercent: 70})
	snap := f.mon.Tick(time.Now())
	assert.Equal(t, uint32(70), snap.FanSpeedPercent)
	assert.Equal(t, uint32(70), f.fans.lastPercent)
}

func TestStatusAggregation(t *testing.T) {
	f := newFixture(thermal.Fixed{SpeedPercent: 40})
	f.mon.Tick(time.Now())

	assert.Equal(t, status.OperationalNormal, f.mon.Status())

	f.mon.SetBlink(true)
	assert.Equal(t, status.UserOverrideBlink, f.mon.Status())
	f.mon.SetBlink(false)

	f.sensors.temps = []float64{96}
	f.mon.Tick(time.Now())
	assert.Equal(t, status.NotRunning, f.mon.Status())
}

func TestInvalidReadingsFailSafe(t *testing.T) {
	f := newFixture(thermal.Fixed{SpeedPercent: 40})
	f.mon.Tick(time.Now())

	f.sensors.valid = false
	snap := f.mon.Tick(time.Now())
	assert.Equal(t, uint32(100), f.fans.lastPercent)
	assert.Equal(t, thermal.VerdictNormal, snap.Verdict)
	assert.False(t, f.workload.stopped)
}

func TestRunStopsOnFini(t *testing.T) {
	f := newFixture(thermal.Fixed{SpeedPercent: 40})
	go f.mon.Run()

	f.mon.Fini()
	select {
	case <-f.mon.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("monitor did not stop")
	}
	assert.Equal(t, uint32(100), f.fans.lastPercent, "fans left fail-safe on exit")
}

func TestFanAlarmPassthrough(t *testing.T) {
	f := newFixture(thermal.Fixed{SpeedPercent: 40})
	assert.False(t, f.mon.FanAlarm())
	f.fans.alarm = true
	assert.True(t, f.mon.FanAlarm())
}
