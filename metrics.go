package cab

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	blocksDecoded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cab_blocks_decoded_total",
			Help: "Number of data blocks decompressed, by compression method",
		},
		[]string{"method"},
	)
	checksumFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cab_checksum_failures_total",
		Help: "Number of data blocks rejected because of a checksum mismatch",
	})
	folderRestarts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cab_folder_restarts_total",
		Help: "Number of times folder decompression restarted from the first block",
	})
	cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cab_block_cache_lookups_total",
			Help: "Decompressed block cache lookups, by result",
		},
		[]string{"result"},
	)
)

// RegisterMetrics registers the decompression metrics with reg. Registering
// with the same registry twice is not an error.
func RegisterMetrics(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{blocksDecoded, checksumFailures, folderRestarts, cacheLookups} {
		if err := reg.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if !errors.As(err, &already) {
				return err
			}
		}
	}
	return nil
}

func methodLabel(c CompressionType) string {
	switch c.Method() {
	case CompressionNone:
		return "none"
	case CompressionMSZIP:
		return "mszip"
	case CompressionQuantum:
		return "quantum"
	case CompressionLZX:
		return "lzx"
	}
	return "unknown"
}
