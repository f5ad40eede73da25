package identity

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"minerctl/log"

	"golang.org/x/sys/unix"
)

const (
	IdentityFile = "identity.json"
	// LegacyHWIDFile is the bare hardware id record factory firmware leaves
	// behind. It is read-only from our point of view.
	LegacyHWIDFile = "hwid"

	recordVersion = 1
)

// record is the on-disk shape of a native identity. The version field is
// what distinguishes a native record from foreign JSON.
type record struct {
	Version  int            `json:"version"`
	Identity DeviceIdentity `json:"identity"`
}

// Store is the capability-scoped contract over both identity locations.
// Reads treat corruption and absence identically; writes must be durable
// before they return.
type Store interface {
	// LoadPrimary reads the built-in store. Identity is nil unless kind is
	// KindNative.
	LoadPrimary() (*DeviceIdentity, Kind)
	// LoadPriorHardwareID returns a legacy hardware id record from the
	// primary store, or "" if none is readable.
	LoadPriorHardwareID() string
	// OverlayPresent reports whether removable media is mounted.
	OverlayPresent() bool
	// LoadOverlay reads the overlay identity, nil if absent or unreadable.
	LoadOverlay() *DeviceIdentity
	PersistPrimary(id DeviceIdentity) error
	PersistOverlay(id DeviceIdentity) error
	// ClearOverlay discards the overlay identity record.
	ClearOverlay() error
	// ClearPrimary discards the native primary record (factory reset). The
	// legacy record, if any, is not ours to delete.
	ClearPrimary() error
}

// FileStore backs the Store contract with two directories: the built-in
// flash mount and the removable media mount.
type FileStore struct {
	PrimaryDir string
	OverlayDir string
}

func NewFileStore(primaryDir, overlayDir string) *FileStore {
	return &FileStore{PrimaryDir: primaryDir, OverlayDir: overlayDir}
}

func (s *FileStore) LoadPrimary() (*DeviceIdentity, Kind) {
	if id := readRecord(filepath.Join(s.PrimaryDir, IdentityFile)); id != nil {
		return id, KindNative
	}
	if s.LoadPriorHardwareID() != "" {
		return nil, KindLegacy
	}
	return nil, KindNone
}

func (s *FileStore) LoadPriorHardwareID() string {
	buf, err := os.ReadFile(filepath.Join(s.PrimaryDir, LegacyHWIDFile))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(buf))
}

func (s *FileStore) OverlayPresent() bool {
	fi, err := os.Stat(s.OverlayDir)
	return err == nil && fi.IsDir()
}

func (s *FileStore) LoadOverlay() *DeviceIdentity {
	if !s.OverlayPresent() {
		return nil
	}
	return readRecord(filepath.Join(s.OverlayDir, IdentityFile))
}

func (s *FileStore) PersistPrimary(id DeviceIdentity) error {
	return writeRecord(s.PrimaryDir, id)
}

func (s *FileStore) PersistOverlay(id DeviceIdentity) error {
	return writeRecord(s.OverlayDir, id)
}

func (s *FileStore) ClearOverlay() error {
	return removeRecord(filepath.Join(s.OverlayDir, IdentityFile))
}

func (s *FileStore) ClearPrimary() error {
	return removeRecord(filepath.Join(s.PrimaryDir, IdentityFile))
}

// readRecord loads one identity record. Any failure - missing file, mangled
// JSON, wrong version - reads as absence; the resolver must never see a
// parse error.
func readRecord(path string) *DeviceIdentity {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil
	}

	var rec record
	if err := json.Unmarshal(buf, &rec); err != nil {
		log.Debugf("identity record %s unreadable: %v", path, err)
		return nil
	}
	if rec.Version != recordVersion {
		log.Debugf("identity record %s has version %d, want %d", path, rec.Version, recordVersion)
		return nil
	}
	if rec.Identity.HardwareID == "" {
		return nil
	}
	return &rec.Identity
}

// writeRecord persists one identity record durably: temp file, fsync,
// rename, fsync of the directory. Power can be cut the moment we return.
func writeRecord(dir string, id DeviceIdentity) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	buf, err := json.MarshalIndent(record{Version: recordVersion, Identity: id}, "", "  ")
	if err != nil {
		return err
	}

	tmp := filepath.Join(dir, IdentityFile+".tmp")
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err = f.Write(buf); err != nil {
		f.Close()
		return err
	}
	if err = f.Sync(); err != nil {
		f.Close()
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}

	if err = os.Rename(tmp, filepath.Join(dir, IdentityFile)); err != nil {
		return err
	}
	return syncDir(dir)
}

func removeRecord(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return syncDir(filepath.Dir(path))
}

// syncDir flushes the directory entry itself so a rename or unlink survives
// power loss.
func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return unix.Fsync(int(d.Fd()))
}

// MemStore backs the Store contract with memory. Test double and bench
// substitute for boards without writable flash.
type MemStore struct {
	Primary     *DeviceIdentity
	PriorHWID   string
	Overlay     *DeviceIdentity
	OverlayIn   bool
	PrimaryErr  error
	OverlayErr  error
	PersistLogs []string
}

func (s *MemStore) LoadPrimary() (*DeviceIdentity, Kind) {
	if s.Primary != nil {
		cp := *s.Primary
		return &cp, KindNative
	}
	if s.PriorHWID != "" {
		return nil, KindLegacy
	}
	return nil, KindNone
}

func (s *MemStore) LoadPriorHardwareID() string {
	return s.PriorHWID
}

func (s *MemStore) OverlayPresent() bool {
	return s.OverlayIn
}

func (s *MemStore) LoadOverlay() *DeviceIdentity {
	if !s.OverlayIn || s.Overlay == nil {
		return nil
	}
	cp := *s.Overlay
	return &cp
}

func (s *MemStore) PersistPrimary(id DeviceIdentity) error {
	if s.PrimaryErr != nil {
		return s.PrimaryErr
	}
	cp := id
	s.Primary = &cp
	s.PersistLogs = append(s.PersistLogs, "primary")
	return nil
}

func (s *MemStore) PersistOverlay(id DeviceIdentity) error {
	if s.OverlayErr != nil {
		return s.OverlayErr
	}
	cp := id
	s.Overlay = &cp
	s.PersistLogs = append(s.PersistLogs, "overlay")
	return nil
}

func (s *MemStore) ClearOverlay() error {
	s.Overlay = nil
	s.PersistLogs = append(s.PersistLogs, "clear-overlay")
	return nil
}

func (s *MemStore) ClearPrimary() error {
	s.Primary = nil
	s.PersistLogs = append(s.PersistLogs, "clear-primary")
	return nil
}
