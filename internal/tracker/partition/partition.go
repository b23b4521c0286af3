// Package partition implements the InputPartitioner of spec §2/§4.1: it
// turns a job's input paths into the initial map id-space, either by
// splitting files into fixed-size byte ranges or by grouping input lines
// N at a time. Grounded on resource_manager.cc's ResourceManager /
// NLineResourceManager constructors and on the teacher's FindLocalFiles
// (github.com/bmatcuk/doublestar/v4 glob expansion).
package partition

import (
	"bufio"
	"fmt"
	"os"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/orbitmr/shuttle/internal/tracker/core"
)

// Partitioner produces the initial dense 0..M-1 map id-space from a job's
// input paths.
type Partitioner interface {
	Partition(inputPaths []string) ([]core.ResourceItem, error)
}

// ByteRange splits every input file into chunks of SplitSize bytes, with a
// trailing remainder chunk. A SplitSize of zero falls back to
// DefaultSplitSize (the spec's default inputBlockSize, 500 MiB).
type ByteRange struct {
	SplitSize int64
}

// DefaultSplitSize is the spec §6 default for inputBlockSize.
const DefaultSplitSize int64 = 500 * 1024 * 1024

func (b ByteRange) Partition(inputPaths []string) ([]core.ResourceItem, error) {
	files, err := expand(inputPaths)
	if err != nil {
		return nil, err
	}
	splitSize := b.SplitSize
	if splitSize <= 0 {
		splitSize = DefaultSplitSize
	}

	var items []core.ResourceItem
	no := 0
	for _, f := range files {
		info, err := os.Stat(f)
		if err != nil {
			return nil, fmt.Errorf("partition: stat %s: %w", f, err)
		}
		size := info.Size()
		blocks := size / splitSize
		var i int64
		for i = 0; i < blocks; i++ {
			items = append(items, core.ResourceItem{
				IdItem:    core.IdItem{No: no, Status: core.ResPending},
				InputPath: f,
				Offset:    i * splitSize,
				Length:    splitSize,
			})
			no++
		}
		if rest := size - blocks*splitSize; rest > 0 || size == 0 {
			items = append(items, core.ResourceItem{
				IdItem:    core.IdItem{No: no, Status: core.ResPending},
				InputPath: f,
				Offset:    blocks * splitSize,
				Length:    rest,
			})
			no++
		}
	}
	return items, nil
}

// NLine groups every N lines of each input file into one ResourceItem.
type NLine struct {
	N int
}

// DefaultNLine is a reasonable per-item line count when N is unset.
const DefaultNLine = 10000

func (nl NLine) Partition(inputPaths []string) ([]core.ResourceItem, error) {
	files, err := expand(inputPaths)
	if err != nil {
		return nil, err
	}
	n := nl.N
	if n <= 0 {
		n = DefaultNLine
	}

	var items []core.ResourceItem
	no := 0
	for _, f := range files {
		fh, err := os.Open(f)
		if err != nil {
			return nil, fmt.Errorf("partition: open %s: %w", f, err)
		}
		scanner := bufio.NewScanner(fh)
		scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

		var offset int64
		lineStart := offset
		lines := 0
		for scanner.Scan() {
			lineLen := int64(len(scanner.Bytes())) + 1
			lines++
			offset += lineLen
			if lines == n {
				items = append(items, core.ResourceItem{
					IdItem:    core.IdItem{No: no, Status: core.ResPending},
					InputPath: f,
					Offset:    lineStart,
					Length:    offset - lineStart,
				})
				no++
				lineStart = offset
				lines = 0
			}
		}
		scanErr := scanner.Err()
		fh.Close()
		if scanErr != nil {
			return nil, fmt.Errorf("partition: scan %s: %w", f, scanErr)
		}
		if lines > 0 {
			items = append(items, core.ResourceItem{
				IdItem:    core.IdItem{No: no, Status: core.ResPending},
				InputPath: f,
				Offset:    lineStart,
				Length:    offset - lineStart,
			})
			no++
		}
	}
	return items, nil
}

// expand resolves globs in inputPaths into a flat list of regular files,
// in a stable order so partitioning is reproducible across a
// checkpoint/resume boundary. Directories and other non-regular matches
// are skipped; their contents are not listed.
func expand(inputPaths []string) ([]string, error) {
	var files []string
	for _, pattern := range inputPaths {
		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			return nil, fmt.Errorf("partition: glob %s: %w", pattern, err)
		}
		if len(matches) == 0 {
			if info, err := os.Stat(pattern); err == nil && info.Mode().IsRegular() {
				matches = []string{pattern}
			}
		}
		for _, m := range matches {
			info, err := os.Stat(m)
			if err != nil || !info.Mode().IsRegular() {
				continue
			}
			files = append(files, m)
		}
	}
	return files, nil
}
