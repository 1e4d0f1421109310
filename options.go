package cab

import (
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// Option configures how a cabinet is opened.
type Option func(*options)

type options struct {
	logger       zerolog.Logger
	strictSize   bool
	nameEncoding encoding.Encoding
	location     *time.Location
	cacheBlocks  int
}

const defaultCacheBlocks = 64 // 2 MiB of 32 KiB blocks

func defaultOptions() options {
	return options{
		logger:       zerolog.Nop(),
		nameEncoding: charmap.ISO8859_1,
		location:     time.Local,
		cacheBlocks:  defaultCacheBlocks,
	}
}

func buildOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLogger sets the logger used for warnings about recoverable problems.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithStrictSize makes a mismatch between the declared cabinet size and the
// actual volume size a FormatError. By default the actual size is trusted and a
// warning is logged.
func WithStrictSize() Option {
	return func(o *options) { o.strictSize = true }
}

// WithNameEncoding sets the encoding of file names without the UTF-8 attribute.
func WithNameEncoding(enc encoding.Encoding) Option {
	return func(o *options) {
		if enc != nil {
			o.nameEncoding = enc
		}
	}
}

// WithLocation sets the time zone the DOS timestamps are interpreted in.
func WithLocation(loc *time.Location) Option {
	return func(o *options) {
		if loc != nil {
			o.location = loc
		}
	}
}

// WithCacheSize sets how many decompressed data blocks are kept in memory.
// Zero disables the cache.
func WithCacheSize(blocks int) Option {
	return func(o *options) {
		if blocks >= 0 {
			o.cacheBlocks = blocks
		}
	}
}
