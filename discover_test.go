package cab

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscoverVolumesFS(t *testing.T) {
	first, second, _ := spannedSet()
	fsys := fstest.MapFS{
		"sub/disk1.cab": {Data: first},
		"sub/DISK2.CAB": {Data: second},
		"sub/other.cab": {Data: newBuilder().bytes()},
	}

	names, err := DiscoverVolumesFS(fsys, "sub/disk1.cab")
	require.NoError(t, err)
	assert.Equal(t, []string{"sub/disk1.cab", "sub/DISK2.CAB"}, names)

	names, err = DiscoverVolumesFS(fsys, "sub/DISK2.CAB")
	require.NoError(t, err)
	assert.Equal(t, []string{"sub/DISK2.CAB"}, names)

	_, err = DiscoverVolumesFS(fsys, "sub/missing.cab")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDiscoverVolumesMissingSuccessor(t *testing.T) {
	first, _, _ := spannedSet()
	names, err := DiscoverVolumesFS(fstest.MapFS{"disk1.cab": {Data: first}}, "disk1.cab")
	require.NoError(t, err)
	assert.Equal(t, []string{"disk1.cab"}, names)
}

func TestDiscoverVolumesLoop(t *testing.T) {
	b := newBuilder()
	b.flags = FlagNextCabinet
	b.nextFile = "A.CAB"
	_, err := DiscoverVolumesFS(fstest.MapFS{"a.cab": {Data: b.bytes()}}, "a.cab")
	assert.ErrorContains(t, err, "loops")
}

func TestOpenFS(t *testing.T) {
	first, second, content := spannedSet()
	fsys := fstest.MapFS{
		"disk1.cab": {Data: first},
		"Disk2.cab": {Data: second},
	}
	c, err := OpenFS(fsys, "disk1.cab")
	require.NoError(t, err)
	require.Len(t, c.Volumes, 2)
	assert.Equal(t, "Disk2.cab", c.Volumes[1].Name)
	assert.Equal(t, content[50:150], readFile(t, c.Files[2]))
	require.NoError(t, c.Close())

	_, err = OpenFS(fstest.MapFS{"bad.cab": {Data: []byte("not a cabinet")}}, "bad.cab")
	assert.ErrorIs(t, err, ErrFormat)
}

func TestOpenFile(t *testing.T) {
	first, second, content := spannedSet()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "disk1.cab"), first, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "disk2.cab"), second, 0o644))

	names, err := DiscoverVolumes(filepath.Join(dir, "disk1.cab"))
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "disk1.cab"), filepath.Join(dir, "disk2.cab")}, names)

	c, err := OpenFile(filepath.Join(dir, "disk1.cab"))
	require.NoError(t, err)
	assert.Equal(t, content[150:], readFile(t, c.Files[3]))
	require.NoError(t, c.Close())
	_, err = c.Files[3].Open()
	assert.ErrorIs(t, err, ErrClosed)
}

func TestIsCabinet(t *testing.T) {
	assert.True(t, IsCabinet(bytes.NewReader(newBuilder().bytes())))
	assert.False(t, IsCabinet(bytes.NewReader([]byte("PK\x03\x04"))))
	assert.False(t, IsCabinet(bytes.NewReader(nil)))
}
