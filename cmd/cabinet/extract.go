package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"

	cab "github.com/secDre4mer/cabreader"
)

var ExtractCmd = &cobra.Command{
	Use:   "extract cabinet [pattern...]",
	Short: "Extract files matching the given glob patterns",
	Args:  cobra.MinimumNArgs(1),
	RunE:  extractCmd,
}

var argOutput string

func init() {
	RootCmd.AddCommand(ExtractCmd)
	ExtractCmd.Flags().StringVarP(&argOutput, "output", "o", ".", "Directory to extract to")
}

// localName converts a stored name to a slash separated relative path.
// Names escaping the output directory are rejected.
func localName(name string) (string, error) {
	name = strings.ReplaceAll(name, `\`, "/")
	name = strings.TrimLeft(name, "/")
	if name == "" || !filepath.IsLocal(filepath.FromSlash(name)) {
		return "", fmt.Errorf("unsafe file name %q", name)
	}
	return name, nil
}

func matchAny(patterns []string, name string) bool {
	if len(patterns) == 0 {
		return true
	}
	for _, pattern := range patterns {
		if ok, _ := doublestar.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

func extractCmd(cmd *cobra.Command, args []string) error {
	patterns := args[1:]
	for _, pattern := range patterns {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("invalid pattern %q", pattern)
		}
	}
	c, err := openCabinet(args[0])
	if err != nil {
		return err
	}
	defer c.Close()

	var failed atomic.Int32
	err = c.Walk(context.Background(), currentConfig.Workers, func(f *cab.File, r io.Reader, err error) error {
		name, nameErr := localName(f.Name())
		if nameErr != nil {
			logger.Error().Err(nameErr).Msg("skipping file")
			failed.Add(1)
			return nil
		}
		if !matchAny(patterns, name) {
			return nil
		}
		if err == nil {
			err = writeFile(filepath.Join(argOutput, filepath.FromSlash(name)), f, r)
		}
		if err != nil {
			logger.Error().Err(err).Str("file", f.Name()).Msg("extraction failed")
			failed.Add(1)
			return nil
		}
		logger.Info().Str("file", name).Int64("size", f.Size()).Msg("extracted")
		return nil
	})
	if err != nil {
		return err
	}
	if n := failed.Load(); n > 0 {
		return fmt.Errorf("%d files could not be extracted", n)
	}
	return nil
}

func writeFile(path string, f *cab.File, r io.Reader) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	out, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, f.Stat().Mode())
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, out.Close())
		if err == nil {
			err = os.Chtimes(path, f.ModTime(), f.ModTime())
		}
	}()
	_, err = io.Copy(out, r)
	return err
}
