package jsonrpc

import (
	"fmt"
	"net"

	"minerctl/config"
	"minerctl/identity"
	"minerctl/monitor"
	"minerctl/thermal"
	"minerctl/version"
)

// StatusReply is the telemetry view served to the LED driver and remote
// monitoring.
type StatusReply struct {
	Status        string  `json:"status"`
	Verdict       string  `json:"verdict"`
	FanSpeed      uint32  `json:"fanspeed"`
	FanAlarm      bool    `json:"fanalarm"`
	Temperature   float64 `json:"temperature"`
	TempValid     bool    `json:"tempvalid"`
	Reason        string  `json:"reason"`
	HardwareID    string  `json:"hwid"`
	MacAddress    string  `json:"mac"`
	UptimeSeconds int64   `json:"uptime"`
}

type okReply struct {
	Result string `json:"result"`
}

type errReply struct {
	Error string `json:"error"`
}

// NewCommandHandler builds the server handler for the operator commands:
// status, version, fanmax, blink, fanmode, factoryreset. Overrides are
// queued on the monitor and take effect within one control cycle.
func NewCommandHandler(m *monitor.Monitor, store identity.Store) ServerHandlerFunc {
	return func(s *Server, conn net.Conn, req *APIRequest, rawbuf []byte, parseErr error) error {
		if parseErr != nil {
			return writeReply(conn, errReply{Error: "malformed request"})
		}

		switch req.Command {
		case "status":
			snap := m.ThermalStatus()
			ident := m.Identity()
			return writeReply(conn, StatusReply{
				Status:        m.Status().String(),
				Verdict:       snap.Verdict.String(),
				FanSpeed:      snap.FanSpeedPercent,
				FanAlarm:      m.FanAlarm(),
				Temperature:   snap.EffectiveTemp,
				TempValid:     snap.TempValid,
				Reason:        snap.Reason,
				HardwareID:    ident.HardwareID,
				MacAddress:    ident.MACAddress.String(),
				UptimeSeconds: int64(snap.Uptime.Seconds()),
			})

		case "version":
			return writeReply(conn, version.GetVersionConfig())

		case "fanmax":
			on, err := boolParam(req.Parameter)
			if err != nil {
				return writeReply(conn, errReply{Error: err.Error()})
			}
			m.ForceMaxFan(on)
			return writeReply(conn, okReply{Result: "ok"})

		case "blink":
			on, err := boolParam(req.Parameter)
			if err != nil {
				return writeReply(conn, errReply{Error: err.Error()})
			}
			m.SetBlink(on)
			return writeReply(conn, okReply{Result: "ok"})

		case "fanmode":
			mode, err := fanModeParam(req.Parameter)
			if err != nil {
				return writeReply(conn, errReply{Error: err.Error()})
			}
			m.SetFanMode(mode)
			return writeReply(conn, okReply{Result: "ok"})

		case "factoryreset":
			// Discard persisted identity; takes effect on next boot when the
			// resolver finds nothing and generates fresh.
			if err := store.ClearOverlay(); err != nil {
				return writeReply(conn, errReply{Error: err.Error()})
			}
			if err := store.ClearPrimary(); err != nil {
				return writeReply(conn, errReply{Error: err.Error()})
			}
			return writeReply(conn, okReply{Result: "ok, reboot to apply"})

		default:
			return writeReply(conn, errReply{Error: fmt.Sprintf("unknown command %q", req.Command)})
		}
	}
}

func writeReply(conn net.Conn, v interface{}) error {
	buf, err := PrepareJSONResponse(v)
	if err != nil {
		return err
	}
	_, err = conn.Write(buf)
	return err
}

func boolParam(p interface{}) (bool, error) {
	switch v := p.(type) {
	case bool:
		return v, nil
	case string:
		if v == "on" {
			return true, nil
		}
		if v == "off" {
			return false, nil
		}
	}
	return false, fmt.Errorf("parameter must be true/false or on/off")
}

// fanModeParam parses {"mode": "auto"|"fixed", "value": n}. The same range
// rules apply as in the settings file.
func fanModeParam(p interface{}) (thermal.FanMode, error) {
	obj, ok := p.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("parameter must be an object with mode and value")
	}
	mode, _ := obj["mode"].(string)
	value, _ := obj["value"].(float64)

	switch mode {
	case config.FanModeAuto:
		if value < config.TargetTempMin || value > config.TargetTempMax {
			return nil, fmt.Errorf("target temp %.1f out of range [%.0f,%.0f]", value, config.TargetTempMin, config.TargetTempMax)
		}
		return thermal.Automatic{TargetTemp: value}, nil
	case config.FanModeFixed:
		if value < 0 || value > 100 {
			return nil, fmt.Errorf("fan speed %.0f out of range [0,100]", value)
		}
		return thermal.Fixed{SpeedPercent: uint32(value)}, nil
	}
	return nil, fmt.Errorf("mode %q is not %q or %q", mode, config.FanModeAuto, config.FanModeFixed)
}
