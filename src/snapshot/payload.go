package snapshot

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	logs "github.com/danmuck/smplog"
	"golang.org/x/exp/mmap"
)

// ErrReleased is the panic value for any use of a payload after Release.
var ErrReleased = errors.New("snapshot payload used after release")

// Payload is an immutable byte buffer held either in memory or in a spooled
// temp file. Exactly one tier holds the bytes at any time; mu serialises the
// tier switch against reads.
type Payload struct {
	mu       sync.Mutex
	length   int64
	mem      []byte
	disk     *mmap.ReaderAt
	diskPath string
	spool    *Spool
	released bool
}

func newPayload(data []byte, spool *Spool) *Payload {
	return &Payload{
		length: int64(len(data)),
		mem:    data,
		spool:  spool,
	}
}

func (p *Payload) Len() int64 {
	return p.length
}

// must be called with mu held
func (p *Payload) checkLive() {
	if p.released {
		panic(ErrReleased)
	}
}

func (p *Payload) assertLive() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.checkLive()
}

// ReadAt implements io.ReaderAt over whichever tier currently holds the bytes.
func (p *Payload) ReadAt(b []byte, off int64) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.checkLive()

	if off < 0 {
		return 0, fmt.Errorf("negative payload offset %d", off)
	}
	if off >= p.length {
		return 0, io.EOF
	}
	if p.mem != nil {
		n := copy(b, p.mem[off:])
		if n < len(b) {
			return n, io.EOF
		}
		return n, nil
	}
	return p.disk.ReadAt(b, off)
}

// ReadRange copies bytes [from, to). A to of -1 means the end of the payload.
func (p *Payload) ReadRange(from, to int64) ([]byte, error) {
	if to == -1 {
		to = p.length
	}
	if from < 0 || to > p.length || from > to {
		return nil, fmt.Errorf("payload range [%d, %d) outside length %d", from, to, p.length)
	}
	out := make([]byte, to-from)
	n, err := p.ReadAt(out, from)
	if n == len(out) {
		return out, nil
	}
	if err == nil {
		err = io.ErrUnexpectedEOF
	}
	return nil, fmt.Errorf("failed to read payload range [%d, %d): only read %d bytes: %w", from, to, n, err)
}

// Size is the number of bytes currently held in memory.
func (p *Payload) Size() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.mem != nil {
		return p.length
	}
	return 0
}

// OnDiskSize is the number of bytes currently held in a spooled temp file.
func (p *Payload) OnDiskSize() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.disk != nil {
		return p.length
	}
	return 0
}

// OnDisk reports whether the payload has been spooled.
func (p *Payload) OnDisk() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.disk != nil
}

// AllowToDisk moves the bytes into a temp file. A failed spool leaves the
// payload in memory and reports the error. Calling it on a spooled payload is a
// no-op; calling it after Release panics.
func (p *Payload) AllowToDisk() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.checkLive()

	if p.disk != nil {
		return nil
	}

	tmp, err := p.spool.createTemp()
	if err != nil {
		return fmt.Errorf("failed to create spool file: %w", err)
	}
	path := tmp.Name()

	cleanupTmp := true
	defer func() {
		if cleanupTmp {
			_ = os.Remove(path)
			p.spool.forget(path)
		}
	}()

	if _, err := tmp.Write(p.mem); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write spool file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close spool file: %w", err)
	}

	reader, err := mmap.Open(path)
	if err != nil {
		return fmt.Errorf("failed to map spool file: %w", err)
	}
	if int64(reader.Len()) != p.length {
		_ = reader.Close()
		return fmt.Errorf("spool file %s has %d bytes, expected %d", path, reader.Len(), p.length)
	}

	cleanupTmp = false
	p.disk = reader
	p.diskPath = path
	p.mem = nil
	return nil
}

// Release drops the in-memory bytes or deletes the spooled temp file. It is
// safe to call more than once.
func (p *Payload) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.released {
		return
	}
	p.released = true
	p.mem = nil

	if p.disk == nil {
		return
	}
	if err := p.disk.Close(); err != nil {
		logs.Infof("failed to unmap spool file %s: %v", p.diskPath, err)
	}
	if err := os.Remove(p.diskPath); err != nil && !os.IsNotExist(err) {
		logs.Infof("failed to delete spool file %s: %v", p.diskPath, err)
	}
	p.spool.forget(p.diskPath)
	p.disk = nil
	p.diskPath = ""
}
