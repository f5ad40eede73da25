package identity

import (
	"fmt"

	"minerctl/log"

	"github.com/google/uuid"
)

// Source records which branch of the boot decision produced the session
// identity.
type Source int

const (
	// SourcePrimary - native primary record was authoritative
	SourcePrimary Source = iota
	// SourceOverlay - overlay record trusted (MAC matched)
	SourceOverlay
	// SourceOverlayReset - overlay MAC mismatch, configuration discarded
	SourceOverlayReset
	// SourceGenerated - no usable record anywhere, fresh identity minted
	SourceGenerated
)

func (s Source) String() string {
	switch s {
	case SourcePrimary:
		return "primary"
	case SourceOverlay:
		return "overlay"
	case SourceOverlayReset:
		return "overlay-reset"
	}
	return "generated"
}

// Resolution is the terminal state of the boot decision. Identity is
// immutable for the rest of the session.
type Resolution struct {
	Identity DeviceIdentity
	Source   Source
}

// Resolve runs the boot identity state machine exactly once. It may block on
// storage I/O; it has no concurrent callers. Resolution with unchanged
// stores and MAC is idempotent: any identity it mints is persisted before it
// returns, so the next boot reads it back instead of minting again.
//
// A persist failure is reported explicitly but still yields a usable
// session identity; the thermal loop must run with or without flash.
func Resolve(store Store, currentMAC MAC) (Resolution, error) {
	ctx := BootContext{CurrentMAC: currentMAC}
	ctx.PrimaryIdentity, ctx.PrimaryKind = store.LoadPrimary()
	ctx.OverlayPresent = store.OverlayPresent()
	ctx.OverlayIdentity = store.LoadOverlay()

	log.Infof("Boot identity: primary=%s overlay-present=%v mac=%s",
		ctx.PrimaryKind, ctx.OverlayPresent, currentMAC)

	// A native primary record is authoritative regardless of overlay. The
	// overlay cannot override a board that already knows who it is.
	if ctx.PrimaryKind == KindNative {
		id := *ctx.PrimaryIdentity
		res := Resolution{Identity: id, Source: SourcePrimary}
		if id.MACAddress != currentMAC || id.LastSeenMAC != currentMAC {
			id.MACAddress = currentMAC
			id.LastSeenMAC = currentMAC
			res.Identity = id
			if err := store.PersistPrimary(id); err != nil {
				return res, fmt.Errorf("persist primary identity: %w", err)
			}
		}
		return res, nil
	}

	if ctx.OverlayIdentity != nil {
		if ctx.OverlayIdentity.LastSeenMAC == currentMAC {
			// Same physical board the overlay was last seen on: trust its
			// hardware id and network config as-is.
			return Resolution{Identity: *ctx.OverlayIdentity, Source: SourceOverlay}, nil
		}

		// The overlay moved to a different board. Its network and system
		// configuration must not follow it; only a hardware id already
		// recorded on this board may survive.
		log.Infof("Overlay last seen on %s, board presents %s: resetting overlay configuration",
			ctx.OverlayIdentity.LastSeenMAC, currentMAC)

		id, generated := boardIdentity(store, currentMAC)
		src := SourceOverlayReset
		if generated {
			src = SourceGenerated
		}
		res := Resolution{Identity: id, Source: src}
		if err := store.ClearOverlay(); err != nil {
			return res, fmt.Errorf("clear overlay: %w", err)
		}
		if err := store.PersistOverlay(id); err != nil {
			return res, fmt.Errorf("persist overlay identity: %w", err)
		}
		return res, nil
	}

	// No native primary, no overlay: this board either carries a legacy
	// record or has never been identified.
	id, generated := boardIdentity(store, currentMAC)
	src := SourcePrimary
	if generated {
		src = SourceGenerated
	}
	res := Resolution{Identity: id, Source: src}
	if err := store.PersistPrimary(id); err != nil {
		return res, fmt.Errorf("persist primary identity: %w", err)
	}
	return res, nil
}

// boardIdentity builds an identity from whatever prior record this board
// holds, minting a fresh hardware id when there is none.
func boardIdentity(store Store, currentMAC MAC) (DeviceIdentity, bool) {
	hwid := store.LoadPriorHardwareID()
	generated := false
	if hwid == "" {
		hwid = generateHardwareID()
		generated = true
		log.Infof("Generated fresh hardware id %s", hwid)
	}
	return DeviceIdentity{
		HardwareID:  hwid,
		MACAddress:  currentMAC,
		LastSeenMAC: currentMAC,
	}, generated
}

// generateHardwareID mints a new hardware id. Random UUIDs give collision
// resistance across the fleet without any coordination; the caller persists
// the value immediately so the same board keeps it across boots.
func generateHardwareID() string {
	return uuid.NewString()
}
