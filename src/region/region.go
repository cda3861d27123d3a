package region

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

const (
	HeaderSizeBytes     = 4096 // sector-offset table: 1024 big-endian uint32 entries
	TimestampTableBytes = 4096 // follows the offset table, not part of a header snapshot
	MinRegionBytes      = HeaderSizeBytes + TimestampTableBytes
	ChunksPerAxis       = 32
	FileExtension       = ".mca"
	RegionDirName       = "region"
)

// Pos identifies one region file within a world.
type Pos struct {
	X int32
	Z int32
}

func (p Pos) FileName() string {
	return fmt.Sprintf("r.%d.%d%s", p.X, p.Z, FileExtension)
}

func (p Pos) String() string {
	return fmt.Sprintf("(%d, %d)", p.X, p.Z)
}

// ParseFileName is the inverse of Pos.FileName.
func ParseFileName(name string) (Pos, bool) {
	stem, ok := strings.CutSuffix(name, FileExtension)
	if !ok {
		return Pos{}, false
	}
	parts := strings.Split(stem, ".")
	if len(parts) != 3 || parts[0] != "r" {
		return Pos{}, false
	}
	x, err := strconv.ParseInt(parts[1], 10, 32)
	if err != nil {
		return Pos{}, false
	}
	z, err := strconv.ParseInt(parts[2], 10, 32)
	if err != nil {
		return Pos{}, false
	}
	return Pos{X: int32(x), Z: int32(z)}, true
}

// ChunkPos identifies one chunk in world chunk coordinates.
type ChunkPos struct {
	X int32
	Z int32
}

// Region returns the region containing c (floor division, so negatives map correctly).
func (c ChunkPos) Region() Pos {
	return Pos{X: c.X >> 5, Z: c.Z >> 5}
}

// HeaderIndex is the chunk's slot in its region's sector-offset table.
func (c ChunkPos) HeaderIndex() int {
	return int(c.X&31) + int(c.Z&31)*ChunksPerAxis
}

func (c ChunkPos) HeaderOffset() int64 {
	return 4 * int64(c.HeaderIndex())
}

func (c ChunkPos) String() string {
	return fmt.Sprintf("[%d, %d]", c.X, c.Z)
}

// Group buckets chunk positions by the region that holds them.
func Group(chunks []ChunkPos) map[Pos][]ChunkPos {
	selection := make(map[Pos][]ChunkPos)
	for _, c := range chunks {
		pos := c.Region()
		selection[pos] = append(selection[pos], c)
	}
	return selection
}

// SortedPositions returns the keys of selection in (x, z) order.
func SortedPositions[V any](selection map[Pos]V) []Pos {
	out := make([]Pos, 0, len(selection))
	for pos := range selection {
		out = append(out, pos)
	}
	SortPositions(out)
	return out
}

func SortPositions(positions []Pos) {
	sort.Slice(positions, func(i, j int) bool {
		if positions[i].X == positions[j].X {
			return positions[i].Z < positions[j].Z
		}
		return positions[i].X < positions[j].X
	})
}

// Dir is a world's region directory.
type Dir struct {
	root string
}

func NewDir(path string) Dir {
	return Dir{root: filepath.Clean(path)}
}

// WorldDir resolves the region directory of a world folder.
func WorldDir(worldDir string) Dir {
	return NewDir(filepath.Join(worldDir, RegionDirName))
}

func (d Dir) Root() string {
	return d.root
}

func (d Dir) Path(pos Pos) string {
	return filepath.Join(d.root, pos.FileName())
}

// List returns every region file present in the directory.
func (d Dir) List() ([]Pos, error) {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read region directory %s: %w", d.root, err)
	}
	positions := make([]Pos, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if pos, ok := ParseFileName(entry.Name()); ok {
			positions = append(positions, pos)
		}
	}
	SortPositions(positions)
	return positions, nil
}
