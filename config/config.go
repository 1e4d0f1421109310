// Package config reads the YAML configuration of the cabinet command.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/text/encoding/ianaindex"
	"gopkg.in/yaml.v3"

	cab "github.com/secDre4mer/cabreader"
)

type Config struct {
	StrictSize   bool   `yaml:"strict_size"`   // Reject cabinets whose declared size does not match
	NameEncoding string `yaml:"name_encoding"` // IANA name of the encoding of non-UTF-8 file names
	TimeZone     string `yaml:"time_zone"`     // Time zone of stored timestamps, default local
	CacheBlocks  *int   `yaml:"cache_blocks"`  // Decompressed blocks kept in memory, 0 disables the cache
	Workers      int    `yaml:"workers"`       // Folders decompressed in parallel
	LogLevel     string `yaml:"log_level"`
}

func ReadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	config := new(Config)
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}
	if _, err := config.Level(); err != nil {
		return nil, err
	}
	if config.Workers < 0 {
		return nil, fmt.Errorf("workers must not be negative, got %d", config.Workers)
	}
	return config, nil
}

// Level returns the configured log level, info if unset.
func (config *Config) Level() (zerolog.Level, error) {
	if config.LogLevel == "" {
		return zerolog.InfoLevel, nil
	}
	level, err := zerolog.ParseLevel(config.LogLevel)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("invalid log level %q: %w", config.LogLevel, err)
	}
	return level, nil
}

// Options converts the configuration to options for opening cabinets.
func (config *Config) Options(logger zerolog.Logger) ([]cab.Option, error) {
	opts := []cab.Option{cab.WithLogger(logger)}
	if config.StrictSize {
		opts = append(opts, cab.WithStrictSize())
	}
	if config.NameEncoding != "" {
		enc, err := ianaindex.IANA.Encoding(config.NameEncoding)
		if err != nil {
			return nil, fmt.Errorf("name encoding %q: %w", config.NameEncoding, err)
		}
		if enc == nil {
			return nil, fmt.Errorf("name encoding %q is not supported", config.NameEncoding)
		}
		opts = append(opts, cab.WithNameEncoding(enc))
	}
	if config.TimeZone != "" {
		loc, err := time.LoadLocation(config.TimeZone)
		if err != nil {
			return nil, fmt.Errorf("time zone %q: %w", config.TimeZone, err)
		}
		opts = append(opts, cab.WithLocation(loc))
	}
	if config.CacheBlocks != nil {
		opts = append(opts, cab.WithCacheSize(*config.CacheBlocks))
	}
	return opts, nil
}
