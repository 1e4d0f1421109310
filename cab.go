package cab

import (
	"errors"
	"io"
	"sync"
	"sync/atomic"
)

// State is the lifecycle state of a Cabinet.
type State int32

const (
	StateUnopened State = iota
	StateHeaderParsed
	StateDirectoryParsed
	StateReady
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnopened:
		return "unopened"
	case StateHeaderParsed:
		return "header parsed"
	case StateDirectoryParsed:
		return "directory parsed"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	}
	return "invalid"
}

// Volume is one physical cabinet file of a set.
type Volume struct {
	Name                string
	Size                int64
	VersionMajor        byte
	VersionMinor        byte
	Flags               Flags
	ReservedHeaderBlock []byte
	SignatureHeader     *SignatureHeader
	MultiCabinetInfo

	r        *io.SectionReader
	header   cabinetFileHeader
	reserved cabinetFileReservedSizes
	folders  []*cabinetFileFolder
	files    []cabinetFileEntry

	continuesFromPrevious bool
	continuesToNext       bool
}

// Cabinet is an opened cabinet or cabinet set. Files lists the files of all
// volumes in declaration order.
type Cabinet struct {
	Files   []*File
	Volumes []*Volume

	// Header information of the first volume
	ReservedHeaderBlock []byte
	MultiCabinetInfo

	folders []*folder
	opts    options
	state   atomic.Int32

	mu      sync.Mutex
	cache   *blockCache
	closers []io.Closer
}

// Open reads a single cabinet file.
func Open(reader io.ReaderAt, size int64, opts ...Option) (*Cabinet, error) {
	return OpenVolumes([]VolumeSource{{ReaderAt: reader, Size: size}}, opts...)
}

// OpenVolumes reads a cabinet set. The volumes must be given in set order;
// folders and files continued across volumes are only joined if the
// neighbouring volumes link to each other.
func OpenVolumes(sources []VolumeSource, opts ...Option) (*Cabinet, error) {
	if len(sources) == 0 {
		return nil, errors.New("cab: no volumes given")
	}
	c := &Cabinet{opts: buildOptions(opts)}
	c.setState(StateUnopened)

	cursors := make([]*byteCursor, len(sources))
	for i, src := range sources {
		v := &Volume{Name: src.Name, r: io.NewSectionReader(src.ReaderAt, 0, src.Size)}
		cursors[i] = newCursor(v.r)
		if err := decodeHeader(cursors[i], v, &c.opts); err != nil {
			return nil, err
		}
		c.Volumes = append(c.Volumes, v)
	}
	c.setState(StateHeaderParsed)

	for i, v := range c.Volumes {
		if err := decodeDirectory(cursors[i], v, &c.opts); err != nil {
			return nil, err
		}
	}
	c.setState(StateDirectoryParsed)

	first := c.Volumes[0]
	c.ReservedHeaderBlock = first.ReservedHeaderBlock
	c.MultiCabinetInfo = first.MultiCabinetInfo
	c.link()
	c.cache = newBlockCache(c.opts.cacheBlocks)
	c.setState(StateReady)
	return c, nil
}

func (c *Cabinet) setState(s State) {
	c.state.Store(int32(s))
	c.opts.logger.Debug().Stringer("state", s).Msg("cabinet state")
}

// State returns the lifecycle state of the cabinet.
func (c *Cabinet) State() State {
	return State(c.state.Load())
}

func (c *Cabinet) closed() bool {
	return c.State() == StateClosed
}

func (c *Cabinet) blockCache() *blockCache {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache
}

// Entries returns the files of the cabinet in declaration order.
func (c *Cabinet) Entries() []Entry {
	entries := make([]Entry, len(c.Files))
	for i, f := range c.Files {
		entries[i] = f
	}
	return entries
}

// Close releases all decompression state. Files can no longer be opened
// afterwards. Volumes opened by OpenFile or OpenFS are closed.
func (c *Cabinet) Close() error {
	if State(c.state.Swap(int32(StateClosed))) == StateClosed {
		return nil
	}
	c.opts.logger.Debug().Stringer("state", StateClosed).Msg("cabinet state")
	for _, f := range c.folders {
		f.reset()
	}
	c.mu.Lock()
	c.cache = nil
	closers := c.closers
	c.closers = nil
	c.mu.Unlock()

	var errs []error
	for _, closer := range closers {
		if err := closer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
