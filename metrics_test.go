package cab

import (
	"bytes"
	"io"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, RegisterMetrics(reg))
	require.NoError(t, RegisterMetrics(reg))

	b := newBuilder()
	folder := b.addFolder(CompressionMSZIP, mszipBlocks(t, pattern(2*maxBlockSize, 3))...)
	b.addFile("a", folder, 0, 10)
	b.addFile("b", folder, maxBlockSize, maxBlockSize)
	c := openBytes(t, b.bytes(), WithCacheSize(0))

	decoded := testutil.ToFloat64(blocksDecoded.WithLabelValues("mszip"))
	restarts := testutil.ToFloat64(folderRestarts)
	readFile(t, c.Files[1])
	readFile(t, c.Files[0])
	assert.Equal(t, decoded+3, testutil.ToFloat64(blocksDecoded.WithLabelValues("mszip")))
	assert.Equal(t, restarts+1, testutil.ToFloat64(folderRestarts))

	n, err := testutil.GatherAndCount(reg, "cab_blocks_decoded_total", "cab_folder_restarts_total")
	require.NoError(t, err)
	assert.Greater(t, n, 0)
}

func TestChecksumFailureMetric(t *testing.T) {
	b := newBuilder()
	folder := b.addFolder(CompressionNone, storedBlocks([]byte("HELLO"), maxBlockSize)...)
	b.addFile("hello.txt", folder, 0, 5)
	raw := b.bytes()
	raw[bytes.Index(raw, []byte("HELLO"))] = 'J'
	c := openBytes(t, raw)

	failures := testutil.ToFloat64(checksumFailures)
	r, err := c.Files[0].Open()
	require.NoError(t, err)
	_, err = io.ReadAll(r)
	assert.ErrorIs(t, err, ErrCorruptData)
	assert.Equal(t, failures+1, testutil.ToFloat64(checksumFailures))
}

func TestCacheLookups(t *testing.T) {
	b := newBuilder()
	folder := b.addFolder(CompressionNone, storedBlocks([]byte("cached"), maxBlockSize)...)
	b.addFile("a", folder, 0, 6)
	c := openBytes(t, b.bytes())

	hits := testutil.ToFloat64(cacheLookups.WithLabelValues("hit"))
	readFile(t, c.Files[0])
	readFile(t, c.Files[0])
	assert.Equal(t, hits+1, testutil.ToFloat64(cacheLookups.WithLabelValues("hit")))
}

func TestBlockCache(t *testing.T) {
	assert.Nil(t, newBlockCache(0))
	var nilCache *blockCache
	nilCache.add(blockKey{0, 0}, []byte("x"))
	_, ok := nilCache.get(blockKey{0, 0})
	assert.False(t, ok)

	cache := newBlockCache(1)
	cache.add(blockKey{1, 2}, []byte("data"))
	data, ok := cache.get(blockKey{1, 2})
	require.True(t, ok)
	assert.Equal(t, []byte("data"), data)
	assert.NotEqual(t, hashBlockKey(blockKey{1, 2}), hashBlockKey(blockKey{2, 1}))
}
