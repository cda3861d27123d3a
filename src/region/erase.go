package region

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"os"

	logs "github.com/danmuck/smplog"
)

// EraseResult reports what Erase did per region.
type EraseResult struct {
	Erased  map[Pos][]ChunkPos // chunks whose offset entry was zeroed
	Skipped []Pos              // regions missing or too short to carry a header
}

func (r EraseResult) ChunkCount() int {
	n := 0
	for _, chunks := range r.Erased {
		n += len(chunks)
	}
	return n
}

// Erase deletes chunks by zeroing their sector-offset entries. The chunk payload
// sectors are left in place. Missing and short regions are skipped. Other failures are collected per region and returned
// together once every region has been attempted.
func Erase(dir Dir, selection map[Pos][]ChunkPos) (EraseResult, error) {
	result := EraseResult{Erased: make(map[Pos][]ChunkPos, len(selection))}
	var failures Collector

	for _, pos := range SortedPositions(selection) {
		chunks := selection[pos]
		erased, err := eraseRegion(dir.Path(pos), pos, chunks)
		if err != nil {
			failures.Add(pos, "erase", err)
			continue
		}
		if !erased {
			result.Skipped = append(result.Skipped, pos)
			continue
		}
		result.Erased[pos] = chunks
	}

	return result, failures.Err()
}

func eraseRegion(path string, pos Pos, chunks []ChunkPos) (bool, error) {
	for _, c := range chunks {
		if c.Region() != pos {
			return false, fmt.Errorf("chunk %s does not belong to region %s", c, pos)
		}
	}

	file, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logs.Warnf("region %s does not exist; nothing to delete there", pos.FileName())
			return false, nil
		}
		return false, fmt.Errorf("failed to open region file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return false, fmt.Errorf("failed to stat region file: %w", err)
	}
	if info.Size() < MinRegionBytes {
		logs.Warnf("region %s is %d bytes, missing its header tables; skipping chunk deletion", pos.FileName(), info.Size())
		return false, nil
	}

	var zero [4]byte
	binary.BigEndian.PutUint32(zero[:], 0)
	for _, c := range chunks {
		if _, err := file.WriteAt(zero[:], c.HeaderOffset()); err != nil {
			return false, fmt.Errorf("failed to clear offset entry for chunk %s: %w", c, err)
		}
	}

	if err := file.Sync(); err != nil {
		return false, fmt.Errorf("failed to sync region file: %w", err)
	}
	return true, nil
}
