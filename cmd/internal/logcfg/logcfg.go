package logcfg

import (
	"os"
	"path/filepath"

	logs "github.com/danmuck/smplog"
)

const (
	envConfigPath     = "REGION_EDITOR_LOG_CONFIG"
	envFallbackPath   = "SMPLOG_CONFIG"
	defaultConfigName = "smplog.config.toml"
)

// Load returns the first readable logging config. The environment wins, then
// the extra paths in order, then the working directory; defaults otherwise.
func Load(extra ...string) logs.Config {
	candidates := make([]string, 0, len(extra)+4)
	for _, env := range []string{envConfigPath, envFallbackPath} {
		if path := os.Getenv(env); path != "" {
			candidates = append(candidates, path)
		}
	}
	candidates = append(candidates, extra...)
	candidates = append(candidates,
		"./"+defaultConfigName,
		"./local/"+defaultConfigName,
	)

	for _, path := range candidates {
		if path == "" {
			continue
		}
		if cfg, err := logs.ConfigFromFile(path); err == nil {
			return cfg
		}
	}
	return logs.DefaultConfig()
}

// NextTo names the logging config that sits beside an editor config file.
func NextTo(configPath string) string {
	if configPath == "" {
		return ""
	}
	return filepath.Join(filepath.Dir(configPath), defaultConfigName)
}
