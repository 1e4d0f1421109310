package cab

import (
	"bytes"
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// spannedSet builds two volumes. Folder 1 of the first volume continues as
// folder 0 of the second, with a data block split between them.
func spannedSet() (first, second []byte, content []byte) {
	content = pattern(200, 21)

	b := newBuilder()
	b.setID = 1234
	b.flags = FlagNextCabinet
	b.nextFile, b.nextDisk = "disk2.cab", "Disk 2"
	one := b.addFolder(CompressionNone, storedBlocks([]byte("one"), maxBlockSize)...)
	span := b.addFolder(CompressionNone,
		testBlock{payload: content[0:80], size: 80},
		testBlock{payload: content[80:110], size: 0},
	)
	b.addFile("one", one, 0, 3)
	b.addFile("two", span, 0, 50)
	b.addFile("three", folderContinuedToNext, 50, 100)
	first = b.bytes()

	b = newBuilder()
	b.setID = 1234
	b.index = 1
	b.flags = FlagPreviousCabinet
	b.prevFile, b.prevDisk = "DISK1.CAB", "Disk 1"
	cont := b.addFolder(CompressionNone,
		testBlock{payload: content[110:150], size: 70},
		testBlock{payload: content[150:200], size: 50},
	)
	five := b.addFolder(CompressionNone, storedBlocks([]byte("five"), maxBlockSize)...)
	b.addFile("three", folderContinuedFromPrevious, 50, 100)
	b.addFile("four", cont, 150, 50)
	b.addFile("five", five, 0, 4)
	second = b.bytes()
	return first, second, content
}

func openSet(t *testing.T, opts []Option, vols ...VolumeSource) *Cabinet {
	t.Helper()
	c, err := OpenVolumes(vols, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func source(name string, data []byte) VolumeSource {
	return VolumeSource{Name: name, ReaderAt: bytes.NewReader(data), Size: int64(len(data))}
}

func fileNames(c *Cabinet) []string {
	var names []string
	for _, f := range c.Files {
		names = append(names, f.Name())
	}
	return names
}

func TestSpannedSet(t *testing.T) {
	first, second, content := spannedSet()
	c := openSet(t, nil, source("disk1.cab", first), source("disk2.cab", second))

	assert.Equal(t, []string{"one", "two", "three", "four", "five"}, fileNames(c))
	require.Len(t, c.Volumes, 2)
	assert.Equal(t, "disk2.cab", c.NextFile)
	assert.Equal(t, uint16(1234), c.SetId)

	three := c.Files[2]
	assert.Equal(t, ContinuedToNext, three.Continuation())
	assert.Same(t, c.Volumes[0], three.Volume())
	assert.Equal(t, c.Files[1].Folder(), three.Folder())
	assert.Equal(t, three.Folder(), c.Files[3].Folder())

	assert.Equal(t, "one", string(readFile(t, c.Files[0])))
	assert.Equal(t, content[150:], readFile(t, c.Files[3]))
	assert.Equal(t, content[50:150], readFile(t, three))
	assert.Equal(t, content[:50], readFile(t, c.Files[1]))
	assert.Equal(t, "five", string(readFile(t, c.Files[4])))
	assert.Equal(t, 2, c.Files[4].Folder())
}

func TestSpannedSetSplitBlockChecksum(t *testing.T) {
	first, second, _ := spannedSet()
	// corrupt the first half of the split block
	idx := bytes.LastIndex(first, pattern(200, 21)[80:110])
	require.Greater(t, idx, 0)
	first = bytes.Clone(first)
	first[idx] ^= 1

	c := openSet(t, nil, source("disk1.cab", first), source("disk2.cab", second))
	assert.Equal(t, pattern(200, 21)[:50], readFile(t, c.Files[1]))

	r, err := c.Files[2].Open()
	require.NoError(t, err)
	_, err = io.ReadAll(r)
	var corrupt *CorruptDataError
	require.ErrorAs(t, err, &corrupt)
	assert.Equal(t, 1, corrupt.Block)
}

func TestSpannedSetOutOfOrder(t *testing.T) {
	first, second, content := spannedSet()
	var logs bytes.Buffer
	c := openSet(t, []Option{WithLogger(zerolog.New(&logs))}, source("disk2.cab", second), source("disk1.cab", first))

	assert.Equal(t, []string{"three", "four", "five", "one", "two", "three"}, fileNames(c))
	assert.Contains(t, logs.String(), "folder is incomplete")

	for _, i := range []int{0, 1} {
		_, err := c.Files[i].Open()
		var span *IncompleteSpanError
		require.ErrorAs(t, err, &span, c.Files[i].Name())
		assert.False(t, span.Next)
		assert.Equal(t, "DISK1.CAB", span.Missing)
	}

	assert.Equal(t, "five", string(readFile(t, c.Files[2])))
	assert.Equal(t, "one", string(readFile(t, c.Files[3])))
	assert.Equal(t, content[:50], readFile(t, c.Files[4]))

	_, err := c.Files[5].Open()
	var span *IncompleteSpanError
	require.ErrorAs(t, err, &span)
	assert.True(t, span.Next)
	assert.Equal(t, "disk2.cab", span.Missing)
	assert.ErrorIs(t, err, ErrIncompleteSpan)
}

func TestSpannedSetMissingVolume(t *testing.T) {
	first, _, content := spannedSet()
	c := openSet(t, nil, source("disk1.cab", first))

	assert.Equal(t, content[:50], readFile(t, c.Files[1]))
	_, err := c.Files[2].Open()
	assert.ErrorIs(t, err, ErrIncompleteSpan)
}

func TestSpannedSetNameMismatch(t *testing.T) {
	first, second, content := spannedSet()
	var logs bytes.Buffer
	c := openSet(t, []Option{WithLogger(zerolog.New(&logs))}, source("disk1.cab", first), source("other.cab", second))

	assert.Contains(t, logs.String(), "next cabinet name mismatch")
	assert.Equal(t, []string{"one", "two", "three", "three", "four", "five"}, fileNames(c))
	assert.Equal(t, content[:50], readFile(t, c.Files[1]))
	_, err := c.Files[2].Open()
	assert.ErrorIs(t, err, ErrIncompleteSpan)
	_, err = c.Files[4].Open()
	assert.ErrorIs(t, err, ErrIncompleteSpan)
	assert.Equal(t, "five", string(readFile(t, c.Files[5])))
}

func TestSpannedSetUnnamedSources(t *testing.T) {
	first, second, content := spannedSet()
	c := openSet(t, nil, source("", first), source("", second))
	assert.Equal(t, content[50:150], readFile(t, c.Files[2]))
}

func TestSpannedSetCompressionMismatch(t *testing.T) {
	first, _, _ := spannedSet()

	b := newBuilder()
	b.setID = 1234
	b.index = 1
	b.flags = FlagPreviousCabinet
	b.prevFile = "disk1.cab"
	cont := b.addFolder(CompressionMSZIP, mszipBlocks(t, make([]byte, 90))...)
	b.addFile("four", cont, 150, 10)

	c := openSet(t, nil, source("disk1.cab", first), source("disk2.cab", b.bytes()))
	_, err := c.Files[1].Open()
	assert.ErrorIs(t, err, ErrFormat)
	assert.Equal(t, "one", string(readFile(t, c.Files[0])))
}

// threeVolumeSet builds a set whose folder runs through all three volumes.
// The middle volume holds a file continued from the first and into the last.
func threeVolumeSet() (vols [3][]byte, content []byte) {
	content = pattern(300, 23)

	b := newBuilder()
	b.setID = 77
	b.flags = FlagNextCabinet
	b.nextFile = "disk2.cab"
	one := b.addFolder(CompressionNone, storedBlocks([]byte("one"), maxBlockSize)...)
	span := b.addFolder(CompressionNone, testBlock{payload: content[0:80], size: 80})
	b.addFile("one", one, 0, 3)
	b.addFile("a", span, 0, 50)
	b.addFile("big", folderContinuedToNext, 50, 200)
	vols[0] = b.bytes()

	b = newBuilder()
	b.setID = 77
	b.index = 1
	b.flags = FlagPreviousCabinet | FlagNextCabinet
	b.prevFile, b.nextFile = "disk1.cab", "disk3.cab"
	b.addFolder(CompressionNone,
		testBlock{payload: content[80:180], size: 100},
		testBlock{payload: content[180:220], size: 0},
	)
	b.addFile("big", folderContinuedPreviousAndNext, 50, 200)
	vols[1] = b.bytes()

	b = newBuilder()
	b.setID = 77
	b.index = 2
	b.flags = FlagPreviousCabinet
	b.prevFile = "disk2.cab"
	cont := b.addFolder(CompressionNone,
		testBlock{payload: content[220:240], size: 60},
		testBlock{payload: content[240:300], size: 60},
	)
	three := b.addFolder(CompressionNone, storedBlocks([]byte("three"), maxBlockSize)...)
	b.addFile("big", folderContinuedFromPrevious, 50, 200)
	b.addFile("tail", cont, 250, 50)
	b.addFile("three", three, 0, 5)
	vols[2] = b.bytes()
	return vols, content
}

func TestSpannedSetThreeVolumes(t *testing.T) {
	vols, content := threeVolumeSet()
	c := openSet(t, nil, source("disk1.cab", vols[0]), source("disk2.cab", vols[1]), source("disk3.cab", vols[2]))

	assert.Equal(t, []string{"one", "a", "big", "tail", "three"}, fileNames(c))
	big := c.Files[2]
	assert.Equal(t, ContinuedToNext, big.Continuation())
	assert.Equal(t, big.Folder(), c.Files[1].Folder())
	assert.Equal(t, big.Folder(), c.Files[3].Folder())

	assert.Equal(t, content[250:], readFile(t, c.Files[3]))
	assert.Equal(t, content[50:250], readFile(t, big))
	assert.Equal(t, content[:50], readFile(t, c.Files[1]))
	assert.Equal(t, "one", string(readFile(t, c.Files[0])))
	assert.Equal(t, "three", string(readFile(t, c.Files[4])))
}

func TestSpannedSetThreeVolumesOutOfOrder(t *testing.T) {
	vols, content := threeVolumeSet()
	c := openSet(t, nil, source("disk1.cab", vols[0]), source("disk3.cab", vols[2]), source("disk2.cab", vols[1]))

	assert.Equal(t, []string{"one", "a", "big", "big", "tail", "three", "big"}, fileNames(c))
	assert.Equal(t, "one", string(readFile(t, c.Files[0])))
	assert.Equal(t, content[:50], readFile(t, c.Files[1]))
	assert.Equal(t, "three", string(readFile(t, c.Files[5])))

	for _, i := range []int{2, 3, 4, 6} {
		_, err := c.Files[i].Open()
		assert.ErrorIs(t, err, ErrIncompleteSpan, "file %d %s", i, c.Files[i].Name())
	}
}
