package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	logs "github.com/danmuck/smplog"
	"github.com/google/uuid"
)

const (
	ownerFileName   = "owner"
	spoolFilePrefix = "payload-"

	DefaultHeartbeatInterval = 30 * time.Second
	DefaultStaleAfter        = 10 * time.Minute
)

// SpoolConfig controls where spooled payloads live and how abandoned
// sessions from dead processes are detected.
type SpoolConfig struct {
	Dir               string        // root shared by every session
	HeartbeatInterval time.Duration // how often the owner record is touched
	StaleAfter        time.Duration // sessions untouched this long are swept
}

// Spool owns one session directory of spooled snapshot payloads. A background
// loop keeps the session's owner record fresh and sweeps sessions left behind
// by processes that exited without closing their spool.
type Spool struct {
	root       string
	session    string
	dir        string
	staleAfter time.Duration

	mu     sync.Mutex
	files  map[string]struct{}
	closed bool

	stop chan struct{}
	done chan struct{}
}

// OpenSpool creates a new session directory under cfg.Dir, sweeps abandoned
// sibling sessions and starts the heartbeat loop.
func OpenSpool(cfg SpoolConfig) (*Spool, error) {
	if cfg.Dir == "" {
		cfg.Dir = filepath.Join(os.TempDir(), "region-editor-spool")
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = DefaultStaleAfter
	}
	if cfg.StaleAfter <= cfg.HeartbeatInterval {
		return nil, fmt.Errorf("spool stale-after %s must exceed heartbeat interval %s", cfg.StaleAfter, cfg.HeartbeatInterval)
	}

	session := uuid.NewString()
	s := &Spool{
		root:       filepath.Clean(cfg.Dir),
		session:    session,
		dir:        filepath.Join(cfg.Dir, session),
		staleAfter: cfg.StaleAfter,
		files:      make(map[string]struct{}),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create spool session directory: %w", err)
	}
	if err := s.writeOwner(); err != nil {
		_ = os.RemoveAll(s.dir)
		return nil, err
	}

	if removed, err := s.Sweep(); err != nil {
		logs.Warnf("spool sweep failed: %v", err)
	} else if removed > 0 {
		logs.Infof("spool sweep removed %d abandoned session(s) from %s", removed, s.root)
	}

	go s.run(cfg.HeartbeatInterval)
	return s, nil
}

func (s *Spool) Dir() string {
	if s == nil {
		return os.TempDir()
	}
	return s.dir
}

func (s *Spool) Session() string {
	if s == nil {
		return ""
	}
	return s.session
}

// Files is the number of live spooled payload files owned by this session.
func (s *Spool) Files() int {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.files)
}

func (s *Spool) ownerPath() string {
	return filepath.Join(s.dir, ownerFileName)
}

// writeOwner publishes the owner record with a temp file + rename.
func (s *Spool) writeOwner() error {
	rec := ownerRecord{
		Session:   s.session,
		PID:       os.Getpid(),
		CreatedAt: time.Now(),
	}

	tmp, err := os.CreateTemp(s.dir, ownerFileName+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp owner record: %w", err)
	}
	tmpPath := tmp.Name()

	cleanupTmp := true
	defer func() {
		if cleanupTmp {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(rec.marshal()); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write temp owner record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp owner record: %w", err)
	}
	if err := os.Rename(tmpPath, s.ownerPath()); err != nil {
		return fmt.Errorf("failed to publish owner record: %w", err)
	}
	cleanupTmp = false
	return nil
}

func (s *Spool) heartbeat() error {
	now := time.Now()
	if err := os.Chtimes(s.ownerPath(), now, now); err != nil {
		if os.IsNotExist(err) {
			return s.writeOwner()
		}
		return fmt.Errorf("failed to touch owner record: %w", err)
	}
	return nil
}

func (s *Spool) run(interval time.Duration) {
	defer close(s.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			if err := s.heartbeat(); err != nil {
				logs.Warnf("spool heartbeat failed: %v", err)
			}
			if _, err := s.Sweep(); err != nil {
				logs.Warnf("spool sweep failed: %v", err)
			}
		}
	}
}

// Sweep removes sibling session directories whose owner record is missing,
// unreadable or older than StaleAfter. It returns the number removed.
func (s *Spool) Sweep() (int, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read spool root: %w", err)
	}

	removed := 0
	cutoff := time.Now().Add(-s.staleAfter)
	for _, entry := range entries {
		if !entry.IsDir() || entry.Name() == s.session {
			continue
		}
		sessionDir := filepath.Join(s.root, entry.Name())
		if !sessionAbandoned(sessionDir, cutoff) {
			continue
		}
		if err := os.RemoveAll(sessionDir); err != nil {
			logs.Warnf("failed to remove abandoned spool session %s: %v", sessionDir, err)
			continue
		}
		removed++
	}
	return removed, nil
}

func sessionAbandoned(sessionDir string, cutoff time.Time) bool {
	ownerPath := filepath.Join(sessionDir, ownerFileName)
	info, err := os.Stat(ownerPath)
	if err != nil {
		// owner not published yet; only sweep once the directory itself is old
		dirInfo, dirErr := os.Stat(sessionDir)
		return dirErr == nil && dirInfo.ModTime().Before(cutoff)
	}
	if info.ModTime().Before(cutoff) {
		return true
	}
	data, err := os.ReadFile(ownerPath)
	if err != nil {
		return false
	}
	rec, err := parseOwnerRecord(data)
	if err != nil {
		return true
	}
	return rec.Session != filepath.Base(sessionDir)
}

func (s *Spool) createTemp() (*os.File, error) {
	if s == nil {
		return os.CreateTemp("", "region-editor-"+spoolFilePrefix+"*.bin")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("spool %s is closed", s.session)
	}
	f, err := os.CreateTemp(s.dir, spoolFilePrefix+"*.bin")
	if err != nil {
		return nil, err
	}
	s.files[f.Name()] = struct{}{}
	return f, nil
}

func (s *Spool) forget(path string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, path)
}

// Close stops the background loop and deletes the session directory together
// with any payload files that were never released.
func (s *Spool) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	leaked := len(s.files)
	s.files = make(map[string]struct{})
	s.mu.Unlock()

	close(s.stop)
	<-s.done

	if leaked > 0 {
		logs.Warnf("spool %s closed with %d unreleased payload file(s)", s.session, leaked)
	}
	if err := os.RemoveAll(s.dir); err != nil {
		return fmt.Errorf("failed to remove spool session directory: %w", err)
	}
	return nil
}
