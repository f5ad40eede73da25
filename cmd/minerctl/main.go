package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"minerctl/config"
	"minerctl/device/devhdr"
	"minerctl/device/fan"
	"minerctl/device/power"
	"minerctl/device/sensor"
	"minerctl/identity"
	"minerctl/jsonrpc"
	"minerctl/log"
	"minerctl/monitor"
	"minerctl/status"
	"minerctl/system"
	"minerctl/thermal"
)

// nullSource stands in when the I2C bus cannot be opened. All-invalid
// readings keep the controller in its fail-safe branch (fans at 100%).
type nullSource struct{}

func (nullSource) ReadAll() []sensor.Reading {
	return []sensor.Reading{{SensorID: "none"}}
}

// workloadHealth adapts the external mining workload's health signal. Pool
// connectivity and hash rate come from the workload's own reporting; until
// it has reported, a powered workload counts as nominal.
type workloadHealth struct {
	ctl power.WorkloadControl
}

func (w workloadHealth) Health() status.WorkloadHealth {
	running := !w.ctl.MiningStopped()
	return status.WorkloadHealth{
		Running:       running,
		PoolConnected: running,
		HashRateRatio: 1.0,
	}
}

func main() {
	_ = devhdr.ReadChassisConfiguration()

	sysinfo, err := system.GetSystemInfo()
	if err != nil {
		log.Fatalf("Failed to read system information %v", err)
	}
	devhdr.SetFansEnabled(sysinfo.Model)

	cfg, err := config.Load(os.Getenv("GC_SETTINGS_FILE"), sysinfo.Model)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	log.SetDebug(cfg.Debug)

	// Identity resolution runs exactly once, before the control cycle.
	store := identity.NewFileStore(devhdr.GetPrimaryStoreDir(), devhdr.GetOverlayStoreDir())
	mac, err := identity.ParseMAC(sysinfo.MacAddress)
	if err != nil {
		log.Fatalf("Bad hardware MAC %q: %v", sysinfo.MacAddress, err)
	}
	res, err := identity.Resolve(store, mac)
	if err != nil {
		// identity may be unpersisted; the thermal loop still has to run
		log.Errorf("Identity persistence failed: %v", err)
	}
	log.Infof("Device identity: hwid=%s mac=%s source=%s",
		res.Identity.HardwareID, res.Identity.MACAddress, res.Source)

	fans, err := fan.Init()
	if err != nil {
		log.Fatalf("Fan init failed: %v", err)
	}

	var src sensor.Source
	i2cSrc, err := sensor.NewI2CSource()
	if err != nil {
		log.Errorf("Sensor init failed, running fail-safe: %v", err)
		src = nullSource{}
	} else {
		src = i2cSrc
	}

	ctrl := thermal.NewController(cfg.FanMode, cfg.Limits)
	workload := power.NewGPIOControl()

	mon := monitor.New(ctrl, src, fans, workload, workloadHealth{ctl: workload},
		res.Identity, cfg.TickInterval)
	go mon.Run()

	srv := jsonrpc.NewServer(cfg.APIListen, jsonrpc.NewCommandHandler(mon, store), false)
	go srv.ListenAndServe()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	<-c

	srv.Shutdown(context.Background())
	mon.Fini()
	<-mon.Done()

	log.Info("=============== minerctl stop ===============")
	os.Exit(0)
}
