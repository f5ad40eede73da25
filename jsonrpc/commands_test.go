package jsonrpc

import (
	"bufio"
	"encoding/json"
	"errors"
	"net"
	"testing"
	"time"

	"minerctl/device/sensor"
	"minerctl/identity"
	"minerctl/monitor"
	"minerctl/status"
	"minerctl/thermal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSensors struct{ temp float64 }

func (s *stubSensors) ReadAll() []sensor.Reading {
	v := s.temp
	return []sensor.Reading{{Celsius: &v}}
}

type stubFans struct {
	lastPercent uint32
	alarm       bool
}

func (f *stubFans) SetAllPercent(p uint32) error { f.lastPercent = p; return nil }
func (f *stubFans) PollAlarms()                  {}
func (f *stubFans) AlarmState() bool             { return f.alarm }

type stubWorkload struct{ stopped bool }

func (w *stubWorkload) StopMining(string)   { w.stopped = true }
func (w *stubWorkload) ResumeMining()       { w.stopped = false }
func (w *stubWorkload) MiningStopped() bool { return w.stopped }

type stubHealth struct{}

func (stubHealth) Health() status.WorkloadHealth {
	return status.WorkloadHealth{Running: true, PoolConnected: true, HashRateRatio: 1.0}
}

type cmdFixture struct {
	mon     *monitor.Monitor
	store   *identity.MemStore
	fans    *stubFans
	handler ServerHandlerFunc
}

func newCmdFixture(t *testing.T) *cmdFixture {
	t.Helper()
	f := &cmdFixture{
		store: &identity.MemStore{},
		fans:  &stubFans{},
	}
	f.store.Primary = &identity.DeviceIdentity{HardwareID: "test-board"}
	ctrl := thermal.NewController(thermal.Fixed{SpeedPercent: 40}, thermal.Limits{HotTemp: 90, DangerousTemp: 95})
	f.mon = monitor.New(ctrl, &stubSensors{temp: 60}, f.fans, &stubWorkload{}, stubHealth{},
		identity.DeviceIdentity{HardwareID: "test-board"}, time.Second)
	f.mon.Tick(time.Now())
	f.handler = NewCommandHandler(f.mon, f.store)
	return f
}

// call runs one request through the handler over a pipe and decodes the
// single-line JSON reply.
func (f *cmdFixture) call(t *testing.T, req *APIRequest, parseErr error, out interface{}) {
	t.Helper()
	client, server := net.Pipe()
	defer client.Close()

	go func() {
		defer server.Close()
		_ = f.handler(nil, server, req, nil, parseErr)
	}()

	line, err := bufio.NewReader(client).ReadBytes('\n')
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(line, out))
}

func TestStatusCommand(t *testing.T) {
	f := newCmdFixture(t)

	var reply StatusReply
	f.call(t, &APIRequest{Command: "status"}, nil, &reply)

	assert.Equal(t, "operational-normal", reply.Status)
	assert.Equal(t, "normal", reply.Verdict)
	assert.Equal(t, uint32(40), reply.FanSpeed)
	assert.Equal(t, "test-board", reply.HardwareID)
	assert.True(t, reply.TempValid)
	assert.InDelta(t, 60.0, reply.Temperature, 0.001)
}

func TestFanMaxCommand(t *testing.T) {
	f := newCmdFixture(t)

	var reply map[string]string
	f.call(t, &APIRequest{Command: "fanmax", Parameter: "on"}, nil, &reply)
	assert.Equal(t, "ok", reply["result"])

	f.mon.Tick(time.Now())
	assert.Equal(t, uint32(100), f.fans.lastPercent)

	f.call(t, &APIRequest{Command: "fanmax", Parameter: false}, nil, &reply)
	f.mon.Tick(time.Now())
	assert.Equal(t, uint32(40), f.fans.lastPercent)
}

func TestFanModeCommand(t *testing.T) {
	f := newCmdFixture(t)

	param := map[string]interface{}{"mode": "fixed", "value": 65.0}
	var reply map[string]string
	f.call(t, &APIRequest{Command: "fanmode", Parameter: param}, nil, &reply)
	assert.Equal(t, "ok", reply["result"])

	snap := f.mon.Tick(time.Now())
	assert.Equal(t, uint32(65), snap.FanSpeedPercent)
}

func TestFanModeCommandRejectsBadParam(t *testing.T) {
	f := newCmdFixture(t)

	var reply map[string]string
	f.call(t, &APIRequest{Command: "fanmode", Parameter: "fixed"}, nil, &reply)
	assert.NotEmpty(t, reply["error"])

	param := map[string]interface{}{"mode": "fixed", "value": 150.0}
	f.call(t, &APIRequest{Command: "fanmode", Parameter: param}, nil, &reply)
	assert.NotEmpty(t, reply["error"])
}

func TestFactoryResetCommand(t *testing.T) {
	f := newCmdFixture(t)

	var reply map[string]string
	f.call(t, &APIRequest{Command: "factoryreset"}, nil, &reply)
	assert.Contains(t, reply["result"], "ok")
	assert.Nil(t, f.store.Primary)
	assert.Nil(t, f.store.Overlay)
}

func TestUnknownCommand(t *testing.T) {
	f := newCmdFixture(t)

	var reply map[string]string
	f.call(t, &APIRequest{Command: "selfdestruct"}, nil, &reply)
	assert.NotEmpty(t, reply["error"])
}

func TestMalformedRequest(t *testing.T) {
	f := newCmdFixture(t)

	var reply map[string]string
	f.call(t, &APIRequest{}, errors.New("bad json"), &reply)
	assert.Equal(t, "malformed request", reply["error"])
}

func TestBoolParam(t *testing.T) {
	on, err := boolParam(true)
	require.NoError(t, err)
	assert.True(t, on)

	on, err = boolParam("off")
	require.NoError(t, err)
	assert.False(t, on)

	_, err = boolParam(42.0)
	assert.Error(t, err)
}

func TestFanModeParam(t *testing.T) {
	mode, err := fanModeParam(map[string]interface{}{"mode": "auto", "value": 70.0})
	require.NoError(t, err)
	assert.Equal(t, thermal.Automatic{TargetTemp: 70}, mode)

	_, err = fanModeParam(map[string]interface{}{"mode": "auto", "value": 20.0})
	assert.Error(t, err, "target below legal range")

	_, err = fanModeParam(map[string]interface{}{"mode": "warp"})
	assert.Error(t, err)
}

func TestPrepareJSONResponseNewlineTerminated(t *testing.T) {
	buf, err := PrepareJSONResponse(map[string]string{"a": "b"})
	require.NoError(t, err)
	assert.Equal(t, byte('\n'), buf[len(buf)-1])
}
