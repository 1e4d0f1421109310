package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/spf13/cobra"

	cab "github.com/secDre4mer/cabreader"
)

var TestCmd = &cobra.Command{
	Use:   "test cabinet",
	Short: "Decompress all files and verify their checksums",
	Args:  cobra.ExactArgs(1),
	RunE:  testCmd,
}

func init() {
	RootCmd.AddCommand(TestCmd)
}

func testCmd(cmd *cobra.Command, args []string) error {
	c, err := openCabinet(args[0])
	if err != nil {
		return err
	}
	defer c.Close()

	var failed, passed atomic.Int32
	err = c.Walk(context.Background(), currentConfig.Workers, func(f *cab.File, r io.Reader, err error) error {
		if err == nil {
			_, err = io.Copy(io.Discard, r)
		}
		if err != nil {
			failed.Add(1)
			event := logger.Error().Err(err).Str("file", f.Name())
			var corrupt *cab.CorruptDataError
			if errors.As(err, &corrupt) {
				event = event.Int("folder", corrupt.Folder).Int("block", corrupt.Block)
			}
			event.Msg("FAILED")
			return nil
		}
		passed.Add(1)
		logger.Debug().Str("file", f.Name()).Msg("OK")
		return nil
	})
	if err != nil {
		return err
	}
	fmt.Printf("%d files OK, %d failed\n", passed.Load(), failed.Load())
	if failed.Load() > 0 {
		return errors.New("cabinet contains errors")
	}
	return nil
}
