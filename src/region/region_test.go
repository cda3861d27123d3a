package region

import (
	"bytes"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

// writeRegionFile creates a region file of size bytes filled with a
// position-dependent pattern so accidental writes are visible.
func writeRegionFile(t *testing.T, dir Dir, pos Pos, size int) []byte {
	t.Helper()
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i*7 + 1)
	}
	if err := os.MkdirAll(dir.Root(), 0755); err != nil {
		t.Fatalf("failed to create region dir: %v", err)
	}
	if err := os.WriteFile(dir.Path(pos), data, 0644); err != nil {
		t.Fatalf("failed to write region file: %v", err)
	}
	return data
}

func TestFileNameRoundTrip(t *testing.T) {
	tests := []struct {
		pos  Pos
		name string
	}{
		{Pos{0, 0}, "r.0.0.mca"},
		{Pos{-1, 3}, "r.-1.3.mca"},
		{Pos{12, -40}, "r.12.-40.mca"},
	}
	for _, tt := range tests {
		if got := tt.pos.FileName(); got != tt.name {
			t.Errorf("FileName(%v) = %q, want %q", tt.pos, got, tt.name)
		}
		parsed, ok := ParseFileName(tt.name)
		if !ok || parsed != tt.pos {
			t.Errorf("ParseFileName(%q) = %v, %v; want %v", tt.name, parsed, ok, tt.pos)
		}
	}

	for _, bad := range []string{"r.0.mca", "r.a.0.mca", "x.0.0.mca", "r.0.0.mcr", "session.lock"} {
		if _, ok := ParseFileName(bad); ok {
			t.Errorf("ParseFileName(%q) should fail", bad)
		}
	}
}

func TestChunkGeometry(t *testing.T) {
	tests := []struct {
		name   string
		chunk  ChunkPos
		region Pos
		index  int
		offset int64
	}{
		{"origin", ChunkPos{0, 0}, Pos{0, 0}, 0, 0},
		{"grid 3,5", ChunkPos{3, 5}, Pos{0, 0}, 163, 652},
		{"last slot", ChunkPos{31, 31}, Pos{0, 0}, 1023, 4092},
		{"next region", ChunkPos{32, 0}, Pos{1, 0}, 0, 0},
		{"negative", ChunkPos{-1, -1}, Pos{-1, -1}, 1023, 4092},
		{"negative boundary", ChunkPos{-32, -33}, Pos{-1, -2}, 31 * 32, 4 * 31 * 32},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.chunk.Region(); got != tt.region {
				t.Errorf("Region() = %v, want %v", got, tt.region)
			}
			if got := tt.chunk.HeaderIndex(); got != tt.index {
				t.Errorf("HeaderIndex() = %d, want %d", got, tt.index)
			}
			if got := tt.chunk.HeaderOffset(); got != tt.offset {
				t.Errorf("HeaderOffset() = %d, want %d", got, tt.offset)
			}
		})
	}
}

func TestGroupAndSort(t *testing.T) {
	chunks := []ChunkPos{{33, 0}, {1, 1}, {-5, 2}, {2, 2}, {40, 40}}
	groups := Group(chunks)
	if len(groups) != 4 {
		t.Fatalf("expected 4 regions, got %d", len(groups))
	}
	if len(groups[Pos{0, 0}]) != 2 {
		t.Errorf("expected 2 chunks in r.0.0, got %d", len(groups[Pos{0, 0}]))
	}

	sorted := SortedPositions(groups)
	want := []Pos{{-1, 0}, {0, 0}, {1, 0}, {1, 1}}
	for i := range want {
		if sorted[i] != want[i] {
			t.Fatalf("sorted positions = %v, want %v", sorted, want)
		}
	}
}

func TestDirList(t *testing.T) {
	dir := WorldDir(t.TempDir())
	writeRegionFile(t, dir, Pos{1, 0}, MinRegionBytes)
	writeRegionFile(t, dir, Pos{0, 0}, MinRegionBytes)
	if err := os.WriteFile(filepath.Join(dir.Root(), "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	positions, err := dir.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(positions) != 2 || positions[0] != (Pos{0, 0}) || positions[1] != (Pos{1, 0}) {
		t.Errorf("List() = %v", positions)
	}
}

func TestEraseZeroesOnlyTargetEntry(t *testing.T) {
	dir := WorldDir(t.TempDir())
	pos := Pos{0, 0}
	original := writeRegionFile(t, dir, pos, MinRegionBytes+3*HeaderSizeBytes)

	result, err := Erase(dir, Group([]ChunkPos{{3, 5}}))
	if err != nil {
		t.Fatalf("Erase failed: %v", err)
	}
	if result.ChunkCount() != 1 {
		t.Errorf("expected 1 erased chunk, got %d", result.ChunkCount())
	}

	after, err := os.ReadFile(dir.Path(pos))
	if err != nil {
		t.Fatal(err)
	}
	if len(after) != len(original) {
		t.Fatalf("file length changed: %d -> %d", len(original), len(after))
	}
	if !bytes.Equal(after[652:656], []byte{0, 0, 0, 0}) {
		t.Errorf("offset entry not zeroed: %x", after[652:656])
	}
	if !bytes.Equal(after[:652], original[:652]) || !bytes.Equal(after[656:], original[656:]) {
		t.Error("bytes outside the erased entry changed")
	}
}

func TestEraseSkipsMissingAndShortRegions(t *testing.T) {
	dir := WorldDir(t.TempDir())
	short := Pos{0, 0}
	good := Pos{1, 0}
	missing := Pos{2, 0}
	writeRegionFile(t, dir, short, HeaderSizeBytes)
	writeRegionFile(t, dir, good, MinRegionBytes)

	result, err := Erase(dir, Group([]ChunkPos{{0, 0}, {32, 0}, {64, 0}}))
	if err != nil {
		t.Fatalf("Erase failed: %v", err)
	}
	if len(result.Skipped) != 2 || result.Skipped[0] != short || result.Skipped[1] != missing {
		t.Errorf("expected short and missing regions to be skipped, got %v", result.Skipped)
	}
	if _, ok := result.Erased[good]; !ok || result.ChunkCount() != 1 {
		t.Errorf("sibling region should still be erased, got %v", result.Erased)
	}

	data, _ := os.ReadFile(dir.Path(short))
	if len(data) != HeaderSizeBytes || data[0] == 0 && data[1] == 0 && data[2] == 0 && data[3] == 0 {
		t.Error("short region must be left untouched")
	}
	if _, err := os.Stat(dir.Path(missing)); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("missing region must not be created, stat err = %v", err)
	}
}

func TestEraseCollectsRegionErrors(t *testing.T) {
	dir := WorldDir(t.TempDir())
	good := Pos{0, 0}
	broken := Pos{1, 0}
	writeRegionFile(t, dir, good, MinRegionBytes)
	// a directory in place of the region file cannot be opened for writing
	if err := os.MkdirAll(dir.Path(broken), 0755); err != nil {
		t.Fatal(err)
	}

	result, err := Erase(dir, Group([]ChunkPos{{0, 0}, {32, 0}}))
	if err == nil {
		t.Fatal("expected an error for the unwritable region")
	}
	var regionErr *Error
	if !errors.As(err, &regionErr) || regionErr.Pos != broken {
		t.Errorf("expected *Error for %s, got %v", broken.FileName(), err)
	}
	if failed := FailedPositions(err); len(failed) != 1 || failed[0] != broken {
		t.Errorf("FailedPositions = %v", failed)
	}
	if _, ok := result.Erased[good]; !ok {
		t.Error("sibling region should still be erased")
	}
	if len(result.Skipped) != 0 {
		t.Errorf("failed region must not be reported as skipped: %v", result.Skipped)
	}
}
