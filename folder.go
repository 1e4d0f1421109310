package cab

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
)

// folder is a logical folder: a compression unit whose blocks may be spread
// over several volumes.
type folder struct {
	index       int
	compression CompressionType
	segments    []*cabinetFileFolder
	blocks      []block
	size        int64
	files       []*File

	// err is reported when a file of the folder is opened.
	err error
	// incomplete is reported for files extending past the available blocks.
	incomplete *IncompleteSpanError

	cab   *Cabinet
	state folderState
}

// folderState is the decompression state of a folder. Blocks are decoded in
// order; reading an earlier block than the current position restarts the
// codec from the first block.
type folderState struct {
	mu       sync.Mutex
	decoder  *folderDecoder
	err      error // sticky error of block errBlock
	errBlock int
}

type folderDecoder struct {
	src   *blockSource
	codec codec
}

func (f *folder) setErr(err error) {
	if f.err == nil {
		f.err = err
	}
}

// blockAt returns the index of the block containing the uncompressed offset.
func (f *folder) blockAt(offset int64) int {
	lo, hi := 0, len(f.blocks)
	for lo < hi {
		mid := (lo + hi) / 2
		if f.blocks[mid].offset+int64(f.blocks[mid].size) <= offset {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// blockData returns the uncompressed contents of block k.
func (f *folder) blockData(ctx context.Context, k int) ([]byte, error) {
	cache := f.cab.blockCache()
	key := blockKey{folder: f.index, block: k}
	if data, ok := cache.get(key); ok {
		return data, nil
	}

	f.state.mu.Lock()
	defer f.state.mu.Unlock()
	st := &f.state
	if st.err != nil && k >= st.errBlock {
		return nil, st.err
	}
	if st.decoder != nil && st.decoder.src.next > k {
		f.cab.opts.logger.Debug().Int("folder", f.index).Int("block", k).Msg("restarting folder decompression")
		folderRestarts.Inc()
		st.decoder = nil
	}
	if st.decoder == nil {
		src := &blockSource{f: f}
		c, err := newCodec(f, src)
		if err != nil {
			return nil, err
		}
		st.decoder = &folderDecoder{src: src, codec: c}
	}

	dec := st.decoder
	for {
		// Cancellation is only checked between blocks
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n := dec.src.next
		data, err := dec.codec.nextBlock(f.blocks[n].size)
		if err != nil {
			err = f.blockError(n, err)
			st.err, st.errBlock = err, n
			st.decoder = nil
			return nil, err
		}
		// Stream codecs may read ahead; the position is that of the produced block
		dec.src.produced(n)
		blocksDecoded.WithLabelValues(methodLabel(f.compression)).Inc()
		cache.add(blockKey{folder: f.index, block: n}, data)
		if n == k {
			return data, nil
		}
	}
}

// blockError attributes a decoding error to block n.
func (f *folder) blockError(n int, err error) error {
	var corrupt *CorruptDataError
	if errors.As(err, &corrupt) {
		if corrupt.Err == nil {
			checksumFailures.Inc()
		}
		return corrupt
	}
	var formatErr *FormatError
	if errors.As(err, &formatErr) {
		return formatErr
	}
	return &CorruptDataError{Folder: f.index, Block: n, Err: err}
}

// reset drops the decompression state.
func (f *folder) reset() {
	f.state.mu.Lock()
	f.state.decoder = nil
	f.state.mu.Unlock()
}

// blockSource hands out the verified payloads of a folder's blocks. For
// stream codecs it also serves as the continuous input stream.
type blockSource struct {
	f       *folder
	next    int // next block whose output is expected
	fetched int // next block whose payload is read
	trailer bool

	buf  []byte
	err  error
	last *block
}

func (s *blockSource) produced(n int) {
	s.next = n + 1
}

// nextPayload returns the verified payload of the next block.
func (s *blockSource) nextPayload() ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.fetched >= len(s.f.blocks) {
		return nil, fmt.Errorf("folder %d has no more data blocks", s.f.index)
	}
	n := s.fetched
	b := &s.f.blocks[n]
	payload, corrupt := readPayload(b)
	if corrupt != nil {
		corrupt.Folder, corrupt.Block = s.f.index, n
		s.err = corrupt
		return nil, corrupt
	}
	s.fetched++
	s.last = b
	return payload, nil
}

func (s *blockSource) current() *block {
	return s.last
}

// Read implements io.Reader over the concatenated payloads. A failing block is
// reported to the codec, which only surfaces it if the data is actually needed.
func (s *blockSource) Read(p []byte) (int, error) {
	for len(s.buf) == 0 {
		if s.err != nil {
			return 0, s.err
		}
		if s.fetched >= len(s.f.blocks) {
			return 0, io.EOF
		}
		payload, err := s.nextPayload()
		if err != nil {
			return 0, err
		}
		if s.trailer {
			payload = append(payload, 0xFF)
		}
		s.buf = payload
	}
	n := copy(p, s.buf)
	s.buf = s.buf[n:]
	return n, nil
}
