package editor

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/region_editor/src/snapshot"
	logs "github.com/danmuck/smplog"
)

const (
	DefaultQueueDepth        = 16
	DefaultHeartbeatSeconds  = 30
	DefaultStaleAfterSeconds = 600
)

// Config controls one editor instance.
type Config struct {
	WorldDir          string `toml:"world_dir"`           // world root holding region/ and session.lock
	SpoolDir          string `toml:"spool_dir"`           // root for spooled snapshot payloads, empty for the system temp dir
	SpoolToDisk       bool   `toml:"spool_to_disk"`       // move full snapshots of older states to disk
	HeartbeatSeconds  int    `toml:"heartbeat_seconds"`   // spool owner record refresh interval
	StaleAfterSeconds int    `toml:"stale_after_seconds"` // abandoned spool sessions older than this are swept
	QueueDepth        int    `toml:"queue_depth"`         // pending tasks before submission blocks
	Verbose           bool   `toml:"verbose"`
}

// DefaultConfig returns a Config for worldDir with spooling enabled.
func DefaultConfig(worldDir string) Config {
	return Config{
		WorldDir:          worldDir,
		SpoolDir:          filepath.Join(os.TempDir(), "region-editor-spool"),
		SpoolToDisk:       true,
		HeartbeatSeconds:  DefaultHeartbeatSeconds,
		StaleAfterSeconds: DefaultStaleAfterSeconds,
		QueueDepth:        DefaultQueueDepth,
	}
}

// LoadConfig decodes a toml file over the defaults. Unknown keys are logged
// and ignored.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig("")
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("failed to decode config %s: %w", path, err)
	}
	for _, key := range md.Undecoded() {
		logs.Warnf("ignoring unknown config key %q in %s", key.String(), path)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.HeartbeatSeconds < 0 || c.StaleAfterSeconds < 0 {
		return fmt.Errorf("spool intervals must not be negative")
	}
	if c.StaleAfterSeconds > 0 && c.StaleAfterSeconds <= c.HeartbeatSeconds {
		return fmt.Errorf("stale_after_seconds (%d) must exceed heartbeat_seconds (%d)", c.StaleAfterSeconds, c.HeartbeatSeconds)
	}
	if c.QueueDepth < 0 {
		return fmt.Errorf("queue_depth must not be negative")
	}
	return nil
}

// Save writes the config as toml through a temp file and rename.
func (c Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp config: %w", err)
	}
	tmpPath := tmp.Name()

	cleanupTmp := true
	defer func() {
		if cleanupTmp {
			_ = os.Remove(tmpPath)
		}
	}()

	encoder := toml.NewEncoder(tmp)
	encoder.Indent = "    "
	if err := encoder.Encode(c); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to publish config: %w", err)
	}
	cleanupTmp = false
	return nil
}

func (c Config) spoolConfig() snapshot.SpoolConfig {
	return snapshot.SpoolConfig{
		Dir:               c.SpoolDir,
		HeartbeatInterval: time.Duration(c.HeartbeatSeconds) * time.Second,
		StaleAfter:        time.Duration(c.StaleAfterSeconds) * time.Second,
	}
}
