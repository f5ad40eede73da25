package devhdr

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"minerctl/log"
)

const (
	ChassisConfigFile      string = "chassisconfig.json"
	TeraFluxAirCooledAt15x string = "AT1500"
	TeraFluxEvalSystem     string = "EV1500"

	MaxHashBoards = 3
)

// FanDef describes one PWM controlled fan and its tachometer input.
type FanDef struct {
	CtrlChip    int `json:"ctrlchip"`
	CtrlChannel int `json:"ctrlchannel"`
	TachoPin    int `json:"tachopin"`
}

// SensorDef describes one board temperature sensor on the I2C bus.
type SensorDef struct {
	Name string `json:"name,omitempty"`
	Bus  string `json:"bus"`
	Addr uint16 `json:"addr"`
}

// ThermalDef carries the per-model thermal limits. Values are defaults;
// runtime configuration may override them.
type ThermalDef struct {
	HotTemp       float64 `json:"hottemp,omitempty"`
	DangerousTemp float64 `json:"dangeroustemp,omitempty"`
}

// PowerDef names the GPIO pins used to cut and reset hash board power.
type PowerDef struct {
	PowerPin int `json:"powerpin,omitempty"`
	ResetPin int `json:"resetpin,omitempty"`
}

// StorageDef names the two identity store locations. PrimaryDir is on the
// built-in flash; OverlayDir is the removable media mount point and may be
// absent at runtime.
type StorageDef struct {
	PrimaryDir string `json:"primarydir,omitempty"`
	OverlayDir string `json:"overlaydir,omitempty"`
}

type ChassisConfig struct {
	Chassis    string                `json:"chassis,omitempty"`
	Family     string                `json:"family,omitempty"`
	TachoChip  string                `json:"tachochip,omitempty"`
	Fans       []FanDef              `json:"fans,omitempty"`
	Sensors    []SensorDef           `json:"sensors,omitempty"`
	Thermal    map[string]ThermalDef `json:"thermal,omitempty"`
	Power      map[string]PowerDef   `json:"power,omitempty"`
	Storage    StorageDef            `json:"storage,omitempty"`
	FanSupport map[string]bool       `json:"fansupport,omitempty"`
}

var chassisConfigOnce sync.Once

var ChassisCfg = &ChassisConfig{
	Chassis:   TeraFluxEvalSystem,
	TachoChip: "gpiochip2",
	Fans: []FanDef{
		{CtrlChip: 2, CtrlChannel: 0, TachoPin: 4},
		{CtrlChip: 3, CtrlChannel: 0, TachoPin: 5},
		{CtrlChip: 0, CtrlChannel: 0, TachoPin: 2},
		{CtrlChip: 1, CtrlChannel: 0, TachoPin: 3},
	},
	Sensors: []SensorDef{
		{Name: "Inlet Middle", Bus: "/dev/i2c-1", Addr: 0x49},
		{Name: "Inlet Bottom", Bus: "/dev/i2c-1", Addr: 0x4a},
		{Name: "Inlet Top", Bus: "/dev/i2c-1", Addr: 0x4b},
		{Name: "Exhaust Middle", Bus: "/dev/i2c-1", Addr: 0x4c},
		{Name: "Exhaust Top", Bus: "/dev/i2c-1", Addr: 0x4f},
	},
	Storage: StorageDef{
		PrimaryDir: "/etc/miner",
		OverlayDir: "/mnt/sd/miner",
	},
}

var MinerFansEnabled bool = true // Default to true, just in case

// Default thermal limits per model. The AT1500 runs the same ASICs hotter
// than the eval chassis rates them.
var modelThermal = map[string]ThermalDef{
	TeraFluxAirCooledAt15x: {HotTemp: 100, DangerousTemp: 110},
	TeraFluxEvalSystem:     {HotTemp: 90, DangerousTemp: 100},
	"default":              {HotTemp: 90, DangerousTemp: 100},
}

// ReadChassisConfiguration loads the chassis definition file once. A missing
// file leaves the built-in eval defaults in place; a malformed file is fatal
// since fan wiring from the wrong chassis can destroy hardware.
func ReadChassisConfiguration() error {
	chassisConfigOnce.Do(func() {
		if err := readChassisConfiguration(); err != nil {
			log.Errorf("Failed to read chassis configuration, %v", err)
			os.Exit(-1)
		}
	})
	return nil
}

func readChassisConfiguration() error {
	buf, err := os.ReadFile(os.Getenv("GC_FACTORY_DIR") + "/" + ChassisConfigFile)
	if err != nil {
		log.Infof("No chassis configuration file, using %s defaults", ChassisCfg.Chassis)
		return nil
	}

	var c ChassisConfig
	if err := json.Unmarshal(buf, &c); err != nil {
		log.Errorf("failed to unmarshal chassisConfig error %v", err)
		return err
	}
	ChassisCfg = &c
	log.Debugf("chassisConfig %+v", ChassisCfg)
	return nil
}

// GetThermalLimits returns the default thermal limits for the given model.
// Unknown models get the conservative defaults.
func GetThermalLimits(model string) ThermalDef {
	if t, ok := ChassisCfg.Thermal[model]; ok {
		return t
	}
	if t, ok := modelThermal[model]; ok {
		return t
	}
	return modelThermal["default"]
}

// GetFanCount returns the number of fans defined for this chassis.
func GetFanCount() int {
	return len(ChassisCfg.Fans)
}

// GetPrimaryStoreDir returns the built-in identity store directory. The env
// var override exists for bench setups without flash mounted.
func GetPrimaryStoreDir() string {
	if d := os.Getenv("GC_PRIMARY_DIR"); d != "" {
		return d
	}
	return ChassisCfg.Storage.PrimaryDir
}

// GetOverlayStoreDir returns the removable media identity directory.
func GetOverlayStoreDir() string {
	if d := os.Getenv("GC_OVERLAY_DIR"); d != "" {
		return d
	}
	return ChassisCfg.Storage.OverlayDir
}

// GetPowerPins returns the hash board power/reset pins for the given slot.
// Slot is 1-based.
func GetPowerPins(slot int) (PowerDef, bool) {
	p, ok := ChassisCfg.Power[slotName(slot)]
	return p, ok
}

func slotName(slot int) string {
	return fmt.Sprintf("hb%d", slot)
}

// GetMinerFanSupport returns whether the miner has fans to cool down the
// system.
func GetMinerFanSupport() bool {
	return MinerFansEnabled
}

func SetFansEnabled(miner string) {
	if v, ok := ChassisCfg.FanSupport[miner]; ok {
		MinerFansEnabled = v
	} else {
		MinerFansEnabled = true // Default to true
	}
	log.Infof("SetFansEnabled(%s): MinerFansEnabled: %v", miner, MinerFansEnabled)
}
