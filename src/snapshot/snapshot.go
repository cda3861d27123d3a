package snapshot

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/danmuck/region_editor/src/region"
	"github.com/zeebo/xxh3"
)

const compareWindow = 64 * 1024

var ErrHeaderOperand = errors.New("operation requires a full snapshot")

// Kind discriminates the two snapshot shapes.
type Kind uint8

const (
	KindHeader Kind = iota + 1 // sector-offset table only
	KindFull                   // entire region file
)

func (k Kind) String() string {
	switch k {
	case KindHeader:
		return "header"
	case KindFull:
		return "full"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Snapshot is one captured version of one region file.
type Snapshot struct {
	kind    Kind
	payload *Payload
	dataSum xxh3.Uint128 // fingerprint of bytes past the header, full snapshots only
}

func newHeader(data []byte, spool *Spool) *Snapshot {
	return &Snapshot{kind: KindHeader, payload: newPayload(data, spool)}
}

func newFull(data []byte, spool *Spool) *Snapshot {
	return &Snapshot{
		kind:    KindFull,
		payload: newPayload(data, spool),
		dataSum: xxh3.Hash128(data[region.HeaderSizeBytes:]),
	}
}

// CaptureFull reads the whole region file at path.
func CaptureFull(path string, spool *Spool) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read region file: %w", err)
	}
	if len(data) < region.HeaderSizeBytes {
		return nil, fmt.Errorf("%s has %d bytes: %w", path, len(data), region.ErrShortRegion)
	}
	return newFull(data, spool), nil
}

// CaptureHeader reads only the sector-offset table of the region file at path.
func CaptureHeader(path string, spool *Spool) (*Snapshot, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open region file: %w", err)
	}
	defer file.Close()

	data := make([]byte, region.HeaderSizeBytes)
	if _, err := io.ReadFull(file, data); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%s: %w", path, region.ErrShortRegion)
		}
		return nil, fmt.Errorf("failed to read region header: %w", err)
	}
	return newHeader(data, spool), nil
}

func (s *Snapshot) Kind() Kind {
	return s.kind
}

func (s *Snapshot) IsHeader() bool {
	return s.kind == KindHeader
}

// Len is the number of captured bytes regardless of tier.
func (s *Snapshot) Len() int64 {
	return s.payload.Len()
}

func (s *Snapshot) header() ([]byte, error) {
	return s.payload.ReadRange(0, region.HeaderSizeBytes)
}

// HeaderMatches compares the sector-offset tables of s and other, whatever
// their kinds. Unreadable payloads never match.
func (s *Snapshot) HeaderMatches(other *Snapshot) bool {
	a, err := s.header()
	if err != nil {
		return false
	}
	b, err := other.header()
	if err != nil {
		return false
	}
	return bytes.Equal(a, b)
}

// DataMatches compares everything past the header. Both operands must be full
// snapshots; a header operand is a programming error and panics.
func (s *Snapshot) DataMatches(other *Snapshot) bool {
	if s.kind != KindFull || other.kind != KindFull {
		panic(fmt.Errorf("DataMatches(%s, %s): %w", s.kind, other.kind, ErrHeaderOperand))
	}
	if s.Len() != other.Len() || s.dataSum != other.dataSum {
		return false
	}

	// equal fingerprints: confirm byte for byte
	bufA := make([]byte, compareWindow)
	bufB := make([]byte, compareWindow)
	for off := int64(region.HeaderSizeBytes); off < s.Len(); off += compareWindow {
		n := min(int64(compareWindow), s.Len()-off)
		if _, err := s.payload.ReadAt(bufA[:n], off); err != nil && !errors.Is(err, io.EOF) {
			return false
		}
		if _, err := other.payload.ReadAt(bufB[:n], off); err != nil && !errors.Is(err, io.EOF) {
			return false
		}
		if !bytes.Equal(bufA[:n], bufB[:n]) {
			return false
		}
	}
	return true
}

// AsHeader derives a header snapshot from a full one. The header bytes are
// copied so the result does not pin the full payload.
func (s *Snapshot) AsHeader() *Snapshot {
	if s.kind != KindFull {
		panic(fmt.Errorf("AsHeader on %s snapshot: %w", s.kind, ErrHeaderOperand))
	}
	data, err := s.header()
	if err != nil {
		panic(fmt.Errorf("failed to slice header from full snapshot: %w", err))
	}
	return newHeader(data, s.payload.spool)
}

// WriteState restores the captured bytes to the region file at path. Header
// snapshots overwrite the table in place and leave the rest of the file alone;
// full snapshots truncate so the file length matches the capture.
func (s *Snapshot) WriteState(path string) error {
	switch s.kind {
	case KindHeader:
		return s.writeHeader(path)
	case KindFull:
		return s.writeFull(path)
	default:
		panic(fmt.Sprintf("unknown snapshot kind %d", s.kind))
	}
}

func (s *Snapshot) writeHeader(path string) error {
	data, err := s.header()
	if err != nil {
		return err
	}
	file, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("failed to open region file: %w", err)
	}
	defer file.Close()

	if _, err := file.WriteAt(data, 0); err != nil {
		return fmt.Errorf("failed to write region header: %w", err)
	}
	if err := file.Sync(); err != nil {
		return fmt.Errorf("failed to sync region file: %w", err)
	}
	return nil
}

func (s *Snapshot) writeFull(path string) error {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to open region file: %w", err)
	}
	defer file.Close()

	written, err := io.Copy(file, io.NewSectionReader(s.payload, 0, s.Len()))
	if err != nil {
		return fmt.Errorf("failed to write region file: %w", err)
	}
	if written != s.Len() {
		return fmt.Errorf("wrote %d of %d region bytes", written, s.Len())
	}
	if err := file.Sync(); err != nil {
		return fmt.Errorf("failed to sync region file: %w", err)
	}
	return nil
}

// Size is the snapshot's current in-memory footprint.
func (s *Snapshot) Size() int64 {
	return s.payload.Size()
}

// OnDiskSize is the snapshot's current spooled footprint.
func (s *Snapshot) OnDiskSize() int64 {
	return s.payload.OnDiskSize()
}

func (s *Snapshot) OnDisk() bool {
	return s.payload.OnDisk()
}

// AllowToDisk hints that the snapshot will live long enough to be worth
// spooling. Header snapshots stay in memory.
func (s *Snapshot) AllowToDisk() error {
	if s.kind == KindHeader {
		s.payload.assertLive()
		return nil
	}
	return s.payload.AllowToDisk()
}

func (s *Snapshot) Release() {
	s.payload.Release()
}
