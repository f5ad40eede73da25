package system

import (
	"fmt"
	"net"
	"os"

	"minerctl/device/devhdr"
	"minerctl/identity"
	"minerctl/log"
)

// SystemInformation is the miner's chassis-level inventory for telemetry.
type SystemInformation struct {
	Model      string
	MacAddress string
	FanCount   int
}

var cachedSysinfo *SystemInformation

// GetSystemInfo returns the chassis model and the MAC the hardware presents.
func GetSystemInfo() (*SystemInformation, error) {
	if cachedSysinfo != nil {
		cp := *cachedSysinfo
		return &cp, nil
	}

	mac, err := CurrentMAC()
	if err != nil {
		return nil, err
	}

	info := SystemInformation{
		Model:      devhdr.ChassisCfg.Chassis,
		MacAddress: mac.String(),
		FanCount:   devhdr.GetFanCount(),
	}
	cachedSysinfo = &info
	log.Debugf("sysInfo: %+v", info)
	cp := info
	return &cp, nil
}

// CurrentMAC returns the MAC actually presented by hardware this boot: the
// first physical, non-loopback interface. The preferred name can be pinned
// in the environment for chassis with more than one port.
func CurrentMAC() (identity.MAC, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return identity.MAC{}, err
	}

	preferred := os.Getenv("GC_NET_IFACE")
	if preferred == "" {
		preferred = "eth0"
	}

	var fallback *net.Interface
	for i := range ifaces {
		ifc := &ifaces[i]
		if ifc.Flags&net.FlagLoopback != 0 || len(ifc.HardwareAddr) != 6 {
			continue
		}
		if ifc.Name == preferred {
			fallback = ifc
			break
		}
		if fallback == nil {
			fallback = ifc
		}
	}
	if fallback == nil {
		return identity.MAC{}, fmt.Errorf("no usable network interface")
	}

	var m identity.MAC
	copy(m[:], fallback.HardwareAddr)
	return m, nil
}
