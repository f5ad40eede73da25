package identity

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tempStore(t *testing.T) *FileStore {
	t.Helper()
	return NewFileStore(t.TempDir(), t.TempDir())
}

func TestFileStoreEmpty(t *testing.T) {
	s := tempStore(t)

	id, kind := s.LoadPrimary()
	assert.Nil(t, id)
	assert.Equal(t, KindNone, kind)
	assert.Empty(t, s.LoadPriorHardwareID())
}

func TestFileStorePrimaryRoundtrip(t *testing.T) {
	require := require.New(t)
	s := tempStore(t)

	want := DeviceIdentity{
		HardwareID:  "board-0017",
		MACAddress:  macA,
		LastSeenMAC: macA,
		Network:     &NetworkConfig{Mode: NetworkDHCP},
	}
	require.NoError(s.PersistPrimary(want))

	got, kind := s.LoadPrimary()
	require.NotNil(got)
	assert.Equal(t, KindNative, kind)
	assert.Equal(t, want, *got)
}

func TestFileStoreOverlayRoundtrip(t *testing.T) {
	require := require.New(t)
	s := tempStore(t)

	want := DeviceIdentity{HardwareID: "sd-id", MACAddress: macB, LastSeenMAC: macB}
	require.NoError(s.PersistOverlay(want))

	got := s.LoadOverlay()
	require.NotNil(got)
	assert.Equal(t, want, *got)
}

func TestFileStoreOverlayAbsent(t *testing.T) {
	s := NewFileStore(t.TempDir(), filepath.Join(t.TempDir(), "not-mounted"))

	assert.False(t, s.OverlayPresent())
	assert.Nil(t, s.LoadOverlay())
}

// A mangled record reads exactly like a missing one. The resolver never
// sees a parse error.
func TestFileStoreCorruptionIsAbsence(t *testing.T) {
	require := require.New(t)
	s := tempStore(t)

	for _, garbage := range []string{
		"not json at all",
		`{"version": 99, "identity": {"hwid": "x"}}`,
		`{"version": 1, "identity": {"hwid": ""}}`,
		`{"version": 1, "identity": {"hwid": "x", "mac": "zz:zz"}}`,
	} {
		path := filepath.Join(s.PrimaryDir, IdentityFile)
		require.NoError(os.WriteFile(path, []byte(garbage), 0644))

		id, kind := s.LoadPrimary()
		assert.Nil(t, id, "garbage %q", garbage)
		assert.Equal(t, KindNone, kind, "garbage %q", garbage)
	}
}

func TestFileStoreLegacyHWID(t *testing.T) {
	require := require.New(t)
	s := tempStore(t)

	path := filepath.Join(s.PrimaryDir, LegacyHWIDFile)
	require.NoError(os.WriteFile(path, []byte("board-0017\n"), 0644))

	assert.Equal(t, "board-0017", s.LoadPriorHardwareID())

	id, kind := s.LoadPrimary()
	assert.Nil(t, id)
	assert.Equal(t, KindLegacy, kind)
}

// Persisting a native record makes it authoritative over the legacy file,
// which stays on disk untouched.
func TestFileStoreNativeShadowsLegacy(t *testing.T) {
	require := require.New(t)
	s := tempStore(t)

	legacy := filepath.Join(s.PrimaryDir, LegacyHWIDFile)
	require.NoError(os.WriteFile(legacy, []byte("board-0017"), 0644))
	require.NoError(s.PersistPrimary(DeviceIdentity{HardwareID: "board-0017", MACAddress: macA, LastSeenMAC: macA}))

	_, kind := s.LoadPrimary()
	assert.Equal(t, KindNative, kind)
	_, err := os.Stat(legacy)
	assert.NoError(t, err)
}

func TestFileStoreClear(t *testing.T) {
	require := require.New(t)
	s := tempStore(t)

	require.NoError(s.PersistPrimary(DeviceIdentity{HardwareID: "x", MACAddress: macA, LastSeenMAC: macA}))
	require.NoError(s.PersistOverlay(DeviceIdentity{HardwareID: "x", MACAddress: macA, LastSeenMAC: macA}))

	require.NoError(s.ClearPrimary())
	require.NoError(s.ClearOverlay())

	_, kind := s.LoadPrimary()
	assert.Equal(t, KindNone, kind)
	assert.Nil(t, s.LoadOverlay())

	// clearing again is not an error
	assert.NoError(t, s.ClearPrimary())
}

func TestFileStoreOverwrite(t *testing.T) {
	require := require.New(t)
	s := tempStore(t)

	require.NoError(s.PersistPrimary(DeviceIdentity{HardwareID: "old", MACAddress: macA, LastSeenMAC: macA}))
	require.NoError(s.PersistPrimary(DeviceIdentity{HardwareID: "new", MACAddress: macB, LastSeenMAC: macB}))

	got, _ := s.LoadPrimary()
	require.NotNil(got)
	assert.Equal(t, "new", got.HardwareID)

	// no stray temp file left behind
	_, err := os.Stat(filepath.Join(s.PrimaryDir, IdentityFile+".tmp"))
	assert.True(t, os.IsNotExist(err))
}

func TestMACJSON(t *testing.T) {
	m, err := ParseMAC("02:42:ac:11:00:01")
	require.NoError(t, err)
	assert.Equal(t, macA, m)
	assert.Equal(t, "02:42:ac:11:00:01", m.String())
	assert.False(t, m.IsZero())
	assert.True(t, MAC{}.IsZero())

	_, err = ParseMAC("not-a-mac")
	assert.Error(t, err)
}
