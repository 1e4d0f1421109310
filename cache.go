package cab

import (
	"encoding/binary"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/dgryski/go-tinylfu"
)

type blockKey struct {
	folder, block int
}

func hashBlockKey(k blockKey) uint64 {
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[0:], uint64(k.folder))
	binary.LittleEndian.PutUint64(buf[8:], uint64(k.block))
	return xxhash.Sum64(buf[:])
}

// blockCache keeps recently decompressed data blocks. A nil cache stores
// nothing.
type blockCache struct {
	mu    sync.Mutex
	cache *tinylfu.T[blockKey, []byte]
}

func newBlockCache(blocks int) *blockCache {
	if blocks <= 0 {
		return nil
	}
	blocks = max(blocks, 2)
	return &blockCache{
		cache: tinylfu.New[blockKey, []byte](blocks, blocks*10, hashBlockKey),
	}
}

func (c *blockCache) get(k blockKey) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.Lock()
	data, ok := c.cache.Get(k)
	c.mu.Unlock()
	if ok {
		cacheLookups.WithLabelValues("hit").Inc()
	} else {
		cacheLookups.WithLabelValues("miss").Inc()
	}
	return data, ok
}

func (c *blockCache) add(k blockKey, data []byte) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.cache.Add(k, data)
	c.mu.Unlock()
}
