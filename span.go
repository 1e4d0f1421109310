package cab

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// volumeKey identifies a volume within all cabinet sets.
type volumeKey struct {
	set, index uint16
}

// link builds the logical folders and the file list from the volumes. Folders
// continued across volumes are merged when the volumes link to each other;
// otherwise the affected folder is marked with an IncompleteSpanError.
func (c *Cabinet) link() {
	table := make(map[volumeKey]int, len(c.Volumes))
	for i, v := range c.Volumes {
		key := volumeKey{v.SetId, v.SetIndex}
		if prev, dup := table[key]; dup {
			c.opts.logger.Warn().Int("volume", i).Int("previous", prev).
				Uint16("set", v.SetId).Uint16("index", v.SetIndex).
				Msg("duplicate cabinet in set")
			continue
		}
		table[key] = i
	}

	linked := make([]bool, len(c.Volumes))
	for i := 0; i+1 < len(c.Volumes); i++ {
		if c.Volumes[i].continuesToNext || c.Volumes[i+1].continuesFromPrevious {
			linked[i] = c.linked(table, i)
		}
	}

	var open *folder // folder continued into the current volume
	for i, v := range c.Volumes {
		linkedPrev := i > 0 && linked[i-1]
		local := make([]*folder, len(v.folders))
		for fi, pf := range v.folders {
			if fi == 0 && v.continuesFromPrevious {
				if linkedPrev && open != nil {
					open.appendSegment(pf)
					local[fi] = open
					open = nil
					continue
				}
				f := c.newFolder(pf)
				f.setErr(&IncompleteSpanError{Folder: f.index, Missing: v.PreviousFile})
				local[fi] = f
				continue
			}
			local[fi] = c.newFolder(pf)
		}
		if open != nil {
			// The previous volume continues a folder this volume does not pick up
			open.truncate(&IncompleteSpanError{Folder: open.index, Missing: v.Name, Next: true})
			open = nil
		}
		if v.continuesToNext && len(local) > 0 {
			last := local[len(local)-1]
			if linked[i] {
				open = last
			} else {
				last.truncate(&IncompleteSpanError{Folder: last.index, Missing: v.NextFile, Next: true})
			}
		}

		for _, rec := range v.files {
			f := local[rec.folder]
			if rec.continuation&ContinuedFromPrevious != 0 && f.segments[0] != v.folders[rec.folder] && f.hasFile(rec) {
				continue
			}
			file := &File{
				name:         rec.fileName,
				modified:     parseCabTimestamp(rec.Date, rec.Time, c.opts.location),
				attributes:   rec.Attributes,
				size:         rec.UncompressedFileSize,
				offset:       rec.UncompressedOffsetInFolder,
				continuation: rec.continuation,
				volume:       v,
				folder:       f,
			}
			f.files = append(f.files, file)
			c.Files = append(c.Files, file)
		}
	}

	for _, f := range c.folders {
		f.buildBlocks()
		if f.err != nil {
			c.opts.logger.Warn().Err(f.err).Int("folder", f.index).Msg("folder cannot be decompressed")
		} else if f.incomplete != nil {
			c.opts.logger.Warn().Err(f.incomplete).Int("folder", f.index).Int64("available", f.size).Msg("folder is incomplete")
		}
	}
}

// linked reports whether volume i is continued by volume i+1.
func (c *Cabinet) linked(table map[volumeKey]int, i int) bool {
	v, next := c.Volumes[i], c.Volumes[i+1]
	warn := func() *zerolog.Event {
		return c.opts.logger.Warn().Int("volume", i).Str("name", v.Name)
	}
	if v.Flags&FlagNextCabinet == 0 || next.Flags&FlagPreviousCabinet == 0 {
		warn().Msg("volumes are not linked by their headers")
		return false
	}
	if pos, ok := table[volumeKey{v.SetId, v.SetIndex + 1}]; !ok || pos != i+1 {
		warn().Uint16("set", v.SetId).Uint16("index", v.SetIndex+1).Msg("next cabinet of set not found in sequence")
		return false
	}
	if next.Name != "" && v.NextFile != "" && !strings.EqualFold(baseName(next.Name), baseName(v.NextFile)) {
		warn().Str("expected", v.NextFile).Str("found", next.Name).Msg("next cabinet name mismatch")
		return false
	}
	if v.Name != "" && next.PreviousFile != "" && !strings.EqualFold(baseName(v.Name), baseName(next.PreviousFile)) {
		warn().Str("expected", next.PreviousFile).Str("found", v.Name).Msg("previous cabinet name mismatch")
		return false
	}
	return true
}

func baseName(name string) string {
	return name[strings.LastIndexAny(name, `\/`)+1:]
}

func (c *Cabinet) newFolder(pf *cabinetFileFolder) *folder {
	f := &folder{
		index:       len(c.folders),
		compression: pf.CompressionType,
		segments:    []*cabinetFileFolder{pf},
		cab:         c,
	}
	if pf.CfDataCount == 0 {
		f.setErr(formatError(fmt.Sprintf("folder %d", pf.index), pf.offset, "folder has no data blocks"))
	}
	if msg := pf.CompressionType.validate(); msg != "" {
		f.setErr(&UnsupportedCodecError{Folder: f.index, Compression: pf.CompressionType, Msg: msg})
	}
	if pf.err != nil {
		f.setErr(pf.err)
	}
	c.folders = append(c.folders, f)
	return f
}

func (f *folder) appendSegment(pf *cabinetFileFolder) {
	if pf.CompressionType != f.compression {
		f.setErr(formatError(fmt.Sprintf("folder %d", pf.index), pf.offset+6,
			fmt.Sprintf("continued folder changes compression from %s to %s", f.compression, pf.CompressionType)))
	}
	if pf.err != nil {
		f.setErr(pf.err)
	}
	f.segments = append(f.segments, pf)
}

// truncate marks the folder as ending before its last volume. Files within
// the available blocks stay readable.
func (f *folder) truncate(err *IncompleteSpanError) {
	if f.incomplete == nil {
		f.incomplete = err
	}
}

// hasFile reports whether a record continued from the previous volume
// describes a file already listed for the folder.
func (f *folder) hasFile(rec cabinetFileEntry) bool {
	for _, file := range f.files {
		if file.name == rec.fileName && file.offset == rec.UncompressedOffsetInFolder && file.size == rec.UncompressedFileSize {
			return true
		}
	}
	return false
}

// buildBlocks lists the logical data blocks of the folder. A block whose
// first part has no uncompressed size continues in the next segment.
func (f *folder) buildBlocks() {
	var pending []*cabinetFileData
	var offset int64
	for si, seg := range f.segments {
		for bi := range seg.dataEntries {
			d := &seg.dataEntries[bi]
			pending = append(pending, d)
			if d.UncompressedBytes == 0 {
				if bi == len(seg.dataEntries)-1 {
					if si+1 < len(f.segments) {
						continue
					}
					f.truncate(&IncompleteSpanError{Folder: f.index, Next: true})
				} else {
					f.setErr(formatError(fmt.Sprintf("data block %d of folder %d", len(f.blocks), f.index), d.offset, "empty data block"))
				}
				f.size = offset
				return
			}
			f.blocks = append(f.blocks, block{parts: pending, size: int(d.UncompressedBytes), offset: offset})
			offset += int64(d.UncompressedBytes)
			pending = nil
		}
	}
	f.size = offset
}
