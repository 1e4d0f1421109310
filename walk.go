package cab

import (
	"cmp"
	"context"
	"io"
	"slices"

	"golang.org/x/sync/errgroup"
)

// WalkFunc is called by Walk for every file. If the file cannot be opened, r
// is nil and err describes the problem. Returning an error stops the walk.
// WalkFunc is called concurrently for files of different folders.
type WalkFunc func(f *File, r io.Reader, err error) error

// Walk visits all files, decompressing up to workers folders in parallel.
// Files of one folder are visited in folder order so each folder is only
// decompressed once. workers <= 0 means no limit.
func (c *Cabinet) Walk(ctx context.Context, workers int, fn WalkFunc) error {
	if c.closed() {
		return ErrClosed
	}
	g, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for _, f := range c.folders {
		files := slices.Clone(f.files)
		slices.SortStableFunc(files, func(a, b *File) int {
			return cmp.Compare(a.offset, b.offset)
		})
		g.Go(func() error {
			for _, file := range files {
				if err := ctx.Err(); err != nil {
					return err
				}
				rc, err := file.OpenContext(ctx)
				if err != nil {
					if err := fn(file, nil, err); err != nil {
						return err
					}
					continue
				}
				err = fn(file, rc, nil)
				rc.Close()
				if err != nil {
					return err
				}
			}
			return nil
		})
	}
	return g.Wait()
}
