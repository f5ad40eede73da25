// Package identity owns the persisted device identity: who this miner is,
// which MAC it presents and which network configuration it boots with. The
// resolver decides, once per boot, which persisted record is authoritative.
package identity

import (
	"encoding/json"
	"fmt"
	"net"
)

// MAC is a hardware address. The zero value means "unknown".
type MAC [6]byte

func (m MAC) String() string {
	return net.HardwareAddr(m[:]).String()
}

func (m MAC) IsZero() bool {
	return m == MAC{}
}

func ParseMAC(s string) (MAC, error) {
	hw, err := net.ParseMAC(s)
	if err != nil {
		return MAC{}, err
	}
	if len(hw) != 6 {
		return MAC{}, fmt.Errorf("mac %q is not 6 bytes", s)
	}
	var m MAC
	copy(m[:], hw)
	return m, nil
}

func (m MAC) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

func (m *MAC) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*m = MAC{}
		return nil
	}
	parsed, err := ParseMAC(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

type NetworkMode string

const (
	NetworkDHCP   NetworkMode = "dhcp"
	NetworkStatic NetworkMode = "static"
)

// NetworkConfig is the persisted network setup. Address fields are only
// meaningful in static mode.
type NetworkConfig struct {
	Mode    NetworkMode `json:"mode"`
	Address string      `json:"address,omitempty"`
	Netmask string      `json:"netmask,omitempty"`
	Gateway string      `json:"gateway,omitempty"`
	DNS     string      `json:"dns,omitempty"`
}

// DeviceIdentity is the authoritative in-memory identity for a running
// session. HardwareID is immutable once assigned for the life of a board.
type DeviceIdentity struct {
	HardwareID  string         `json:"hwid"`
	MACAddress  MAC            `json:"mac"`
	Network     *NetworkConfig `json:"network,omitempty"`
	LastSeenMAC MAC            `json:"lastseenmac"`
}

// Kind classifies what a primary store read found.
type Kind int

const (
	// KindNone - nothing readable (absent or corrupted, treated the same)
	KindNone Kind = iota
	// KindLegacy - a prior hardware id left by factory or foreign firmware
	KindLegacy
	// KindNative - a record written by this firmware
	KindNative
)

func (k Kind) String() string {
	switch k {
	case KindLegacy:
		return "legacy"
	case KindNative:
		return "native"
	}
	return "none"
}

// BootContext is the transient view of both stores assembled at startup. It
// exists only for the duration of one resolver run.
type BootContext struct {
	PrimaryIdentity *DeviceIdentity
	PrimaryKind     Kind
	OverlayPresent  bool
	OverlayIdentity *DeviceIdentity
	CurrentMAC      MAC
}
