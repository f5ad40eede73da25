package config

import (
	"fmt"
	"os"
	"time"

	"minerctl/device/devhdr"
	"minerctl/thermal"

	"github.com/spf13/viper"
)

// Settings keys. The configuration surface (web/CLI) writes the same keys;
// this layer only parses and validates them.
const (
	KeyFanMode       = "fan-mode"
	KeyFanTemp       = "fan-temp"
	KeyFanSpeed      = "fan-speed"
	KeyFanHotTemp    = "fan-hot-temp"
	KeyFanDangerTemp = "fan-dangerous-temp"
	KeyTickInterval  = "tick-interval"
	KeyAPIListen     = "api-listen"
	KeyDebug         = "debug"
)

const (
	FanModeAuto  = "auto"
	FanModeFixed = "fixed"

	TargetTempMin = 30.0
	TargetTempMax = 90.0
)

// Config carries validated values only. The control core never re-checks
// ranges.
type Config struct {
	FanMode      thermal.FanMode
	Limits       thermal.Limits
	TickInterval time.Duration
	APIListen    string
	Debug        bool
}

// Load reads the settings file (missing file means all defaults) and
// validates every value. Model selects the chassis default thermal limits.
func Load(path string, model string) (*Config, error) {
	v := viper.New()

	limits := devhdr.GetThermalLimits(model)
	v.SetDefault(KeyFanMode, FanModeAuto)
	v.SetDefault(KeyFanTemp, 75.0)
	v.SetDefault(KeyFanSpeed, 100)
	v.SetDefault(KeyFanHotTemp, limits.HotTemp)
	v.SetDefault(KeyFanDangerTemp, limits.DangerousTemp)
	v.SetDefault(KeyTickInterval, "5s")
	v.SetDefault(KeyAPIListen, "127.0.0.1:4028")
	v.SetDefault(KeyDebug, false)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			_, notFound := err.(viper.ConfigFileNotFoundError)
			if !notFound && !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	return validate(v)
}

func validate(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		APIListen: v.GetString(KeyAPIListen),
		Debug:     v.GetBool(KeyDebug),
	}

	switch mode := v.GetString(KeyFanMode); mode {
	case FanModeAuto:
		target := v.GetFloat64(KeyFanTemp)
		if target < TargetTempMin || target > TargetTempMax {
			return nil, fmt.Errorf("%s %.1f out of range [%.0f,%.0f]", KeyFanTemp, target, TargetTempMin, TargetTempMax)
		}
		cfg.FanMode = thermal.Automatic{TargetTemp: target}
	case FanModeFixed:
		speed := v.GetInt(KeyFanSpeed)
		if speed < 0 || speed > 100 {
			return nil, fmt.Errorf("%s %d out of range [0,100]", KeyFanSpeed, speed)
		}
		cfg.FanMode = thermal.Fixed{SpeedPercent: uint32(speed)}
	default:
		return nil, fmt.Errorf("%s %q is not %q or %q", KeyFanMode, mode, FanModeAuto, FanModeFixed)
	}

	cfg.Limits = thermal.Limits{
		HotTemp:       v.GetFloat64(KeyFanHotTemp),
		DangerousTemp: v.GetFloat64(KeyFanDangerTemp),
	}
	if cfg.Limits.HotTemp >= cfg.Limits.DangerousTemp {
		return nil, fmt.Errorf("%s %.1f must be below %s %.1f",
			KeyFanHotTemp, cfg.Limits.HotTemp, KeyFanDangerTemp, cfg.Limits.DangerousTemp)
	}

	cfg.TickInterval = v.GetDuration(KeyTickInterval)
	if cfg.TickInterval <= 0 || cfg.TickInterval > time.Minute {
		return nil, fmt.Errorf("%s %v out of range (0,1m]", KeyTickInterval, cfg.TickInterval)
	}

	return cfg, nil
}
