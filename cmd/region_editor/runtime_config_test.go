package main

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/danmuck/region_editor/src/region"
)

func TestParseChunkList(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []region.ChunkPos
	}{
		{"single", "1,2", []region.ChunkPos{{X: 1, Z: 2}}},
		{"negatives", "-1,-2;33,-40", []region.ChunkPos{{X: -1, Z: -2}, {X: 33, Z: -40}}},
		{"spaces", " 0,0  5,6 ", []region.ChunkPos{{X: 0, Z: 0}, {X: 5, Z: 6}}},
		{"range", "0,0..1,1", []region.ChunkPos{{X: 0, Z: 0}, {X: 1, Z: 0}, {X: 0, Z: 1}, {X: 1, Z: 1}}},
		{"reversed range", "1,1..0,0", []region.ChunkPos{{X: 0, Z: 0}, {X: 1, Z: 0}, {X: 0, Z: 1}, {X: 1, Z: 1}}},
		{"mixed", "7,7;-1,0..-1,1", []region.ChunkPos{{X: 7, Z: 7}, {X: -1, Z: 0}, {X: -1, Z: 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseChunkList(tt.raw)
			if err != nil {
				t.Fatalf("parseChunkList(%q) failed: %v", tt.raw, err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("parseChunkList(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestParseChunkListErrors(t *testing.T) {
	for _, raw := range []string{"", " ; ", "1", "a,b", "0,0..x", "1,2,3", "0,0..2000,2000", "99999999999,0", "5 , 6"} {
		if chunks, err := parseChunkList(raw); err == nil {
			t.Errorf("parseChunkList(%q) = %v, want error", raw, chunks)
		}
	}
}

func TestParseChunkListWideRanges(t *testing.T) {
	tests := []string{
		"0,0..2147483647,0",
		"-2147483648,0..2147483647,0",
		"-2147483648,-2147483648..2147483647,2147483647",
		"0,-2147483648..0,2147483647",
		"-1,0..2147483647,0",
	}
	for _, raw := range tests {
		if chunks, err := parseChunkList(raw); err == nil {
			t.Errorf("parseChunkList(%q) returned %d chunks, want error", raw, len(chunks))
		}
	}
}

func TestParseChunkListRangeAtCoordinateLimits(t *testing.T) {
	got, err := parseChunkList("2147483646,-2147483648..2147483647,-2147483647")
	if err != nil {
		t.Fatalf("parseChunkList failed: %v", err)
	}
	want := []region.ChunkPos{
		{X: 2147483646, Z: -2147483648},
		{X: 2147483647, Z: -2147483648},
		{X: 2147483646, Z: -2147483647},
		{X: 2147483647, Z: -2147483647},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("parseChunkList = %v, want %v", got, want)
	}
}

func TestParseCLIFlags(t *testing.T) {
	defaults := defaultRuntimeConfig()

	cfg, err := parseCLI([]string{"--world=/worlds/a", "delete", "--chunks", "3,4", "--yes", "--no-spool", "--verbose"}, defaults)
	if err != nil {
		t.Fatalf("parseCLI failed: %v", err)
	}
	if cfg.Editor.WorldDir != "/worlds/a" {
		t.Errorf("world dir = %q", cfg.Editor.WorldDir)
	}
	if !cfg.ActionProvided || cfg.Action != ActionDelete {
		t.Errorf("action = %q (provided %v), want delete", cfg.Action, cfg.ActionProvided)
	}
	if !reflect.DeepEqual(cfg.Chunks, []region.ChunkPos{{X: 3, Z: 4}}) {
		t.Errorf("chunks = %v", cfg.Chunks)
	}
	if !cfg.AssumeYes || cfg.Editor.SpoolToDisk || !cfg.Editor.Verbose {
		t.Errorf("flags not applied: yes=%v spool=%v verbose=%v", cfg.AssumeYes, cfg.Editor.SpoolToDisk, cfg.Editor.Verbose)
	}

	cfg, err = parseCLI(nil, defaults)
	if err != nil {
		t.Fatalf("parseCLI with no args failed: %v", err)
	}
	if cfg.ActionProvided || cfg.Action != ActionStats {
		t.Errorf("default action = %q (provided %v)", cfg.Action, cfg.ActionProvided)
	}
}

func TestParseCLIConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "region_editor.toml")
	body := "world_dir = \"/from/file\"\nqueue_depth = 3\nspool_to_disk = false\n"
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}

	// flags win over the file regardless of their position
	cfg, err := parseCLI([]string{"--spool", "/spool", "--config", path, "undo"}, defaultRuntimeConfig())
	if err != nil {
		t.Fatalf("parseCLI failed: %v", err)
	}
	if cfg.ConfigPath != path {
		t.Errorf("config path = %q", cfg.ConfigPath)
	}
	if cfg.Editor.WorldDir != "/from/file" || cfg.Editor.QueueDepth != 3 {
		t.Errorf("file values not loaded: %+v", cfg.Editor)
	}
	if !cfg.Editor.SpoolToDisk || cfg.Editor.SpoolDir != "/spool" {
		t.Errorf("--spool did not override the file: %+v", cfg.Editor)
	}

	cfg, err = parseCLI([]string{"--config", path, "--world", "/override"}, defaultRuntimeConfig())
	if err != nil {
		t.Fatalf("parseCLI failed: %v", err)
	}
	if cfg.Editor.WorldDir != "/override" {
		t.Errorf("world dir = %q, want /override", cfg.Editor.WorldDir)
	}
}

func TestParseCLIErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"empty world", []string{"--world="}},
		{"missing value", []string{"--world"}},
		{"delete without chunks", []string{"delete"}},
		{"bad chunks", []string{"--chunks", "1;2"}},
		{"two actions", []string{"undo", "redo"}},
		{"unknown argument", []string{"--frobnicate"}},
		{"missing config", []string{"--config", filepath.Join(t.TempDir(), "absent.toml")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseCLI(tt.args, defaultRuntimeConfig()); err == nil {
				t.Errorf("parseCLI(%v) succeeded, want error", tt.args)
			}
		})
	}
}
