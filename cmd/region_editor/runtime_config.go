package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/danmuck/region_editor/src/editor"
	"github.com/danmuck/region_editor/src/region"
)

type MenuAction string

const (
	ActionDelete  MenuAction = "delete"
	ActionUndo    MenuAction = "undo"
	ActionRedo    MenuAction = "redo"
	ActionClear   MenuAction = "clear"
	ActionStats   MenuAction = "stats"
	ActionRegions MenuAction = "regions"
)

type RuntimeConfig struct {
	ConfigPath     string
	SaveConfigPath string
	Action         MenuAction
	ActionProvided bool
	Chunks         []region.ChunkPos
	AssumeYes      bool
	Editor         editor.Config
}

func defaultRuntimeConfig() RuntimeConfig {
	return RuntimeConfig{
		Action: ActionStats,
		Editor: editor.DefaultConfig("."),
	}
}

const WORLD_FLAG = "--world"
const CONFIG_FLAG = "--config"
const SAVE_CONFIG_FLAG = "--save-config"
const SPOOL_FLAG = "--spool"
const NO_SPOOL_FLAG = "--no-spool"
const CHUNKS_FLAG = "--chunks"
const YES_FLAG = "--yes"
const VERBOSE_FLAG = "--verbose"

// flagValue matches "--flag VALUE" and "--flag=VALUE".
func flagValue(args []string, i *int, name string) (string, bool, error) {
	arg := args[*i]
	if after, ok := strings.CutPrefix(arg, name+"="); ok {
		return strings.TrimSpace(after), true, nil
	}
	if arg != name {
		return "", false, nil
	}
	if *i+1 >= len(args) {
		return "", true, fmt.Errorf("missing value after %q", name)
	}
	*i++
	return strings.TrimSpace(args[*i]), true, nil
}

func parseCLI(args []string, cfg RuntimeConfig) (RuntimeConfig, error) {
	runtimeCfg := cfg

	// a config file provides the base that every other flag overrides
	for i := 0; i < len(args); i++ {
		value, ok, err := flagValue(args, &i, CONFIG_FLAG)
		if err != nil {
			return runtimeCfg, err
		}
		if ok {
			loaded, err := editor.LoadConfig(value)
			if err != nil {
				return runtimeCfg, err
			}
			if loaded.WorldDir == "" {
				loaded.WorldDir = runtimeCfg.Editor.WorldDir
			}
			runtimeCfg.Editor = loaded
			runtimeCfg.ConfigPath = value
		}
	}

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch arg {
		case VERBOSE_FLAG:
			runtimeCfg.Editor.Verbose = true
			continue
		case NO_SPOOL_FLAG:
			runtimeCfg.Editor.SpoolToDisk = false
			continue
		case YES_FLAG:
			runtimeCfg.AssumeYes = true
			continue
		}

		if _, ok, err := flagValue(args, &i, CONFIG_FLAG); ok || err != nil {
			if err != nil {
				return runtimeCfg, err
			}
			continue
		}
		if value, ok, err := flagValue(args, &i, WORLD_FLAG); ok || err != nil {
			if err != nil {
				return runtimeCfg, err
			}
			runtimeCfg.Editor.WorldDir = value
			continue
		}
		if value, ok, err := flagValue(args, &i, SPOOL_FLAG); ok || err != nil {
			if err != nil {
				return runtimeCfg, err
			}
			runtimeCfg.Editor.SpoolDir = value
			runtimeCfg.Editor.SpoolToDisk = true
			continue
		}
		if value, ok, err := flagValue(args, &i, SAVE_CONFIG_FLAG); ok || err != nil {
			if err != nil {
				return runtimeCfg, err
			}
			runtimeCfg.SaveConfigPath = value
			continue
		}
		if value, ok, err := flagValue(args, &i, CHUNKS_FLAG); ok || err != nil {
			if err != nil {
				return runtimeCfg, err
			}
			chunks, err := parseChunkList(value)
			if err != nil {
				return runtimeCfg, fmt.Errorf("invalid %s value %q: %w", CHUNKS_FLAG, value, err)
			}
			runtimeCfg.Chunks = append(runtimeCfg.Chunks, chunks...)
			continue
		}

		normalized := MenuAction(strings.ToLower(strings.TrimSpace(arg)))
		switch normalized {
		case ActionDelete, ActionUndo, ActionRedo, ActionClear, ActionStats, ActionRegions:
			if runtimeCfg.ActionProvided {
				return runtimeCfg, fmt.Errorf("multiple actions provided: %q", arg)
			}
			runtimeCfg.Action = normalized
			runtimeCfg.ActionProvided = true
		default:
			return runtimeCfg, fmt.Errorf("unsupported argument %q", arg)
		}
	}

	if runtimeCfg.Editor.WorldDir == "" {
		return runtimeCfg, fmt.Errorf("%s is required", WORLD_FLAG)
	}
	if runtimeCfg.ActionProvided && runtimeCfg.Action == ActionDelete && len(runtimeCfg.Chunks) == 0 {
		return runtimeCfg, fmt.Errorf("%s action requires %s", ActionDelete, CHUNKS_FLAG)
	}
	return runtimeCfg, runtimeCfg.Editor.Validate()
}

const maxRangeChunks = 1 << 20

// parseChunkList reads chunk coordinates separated by spaces or semicolons.
// Each item is either "x,z" or an inclusive rectangle "x1,z1..x2,z2".
func parseChunkList(raw string) ([]region.ChunkPos, error) {
	var chunks []region.ChunkPos
	fields := strings.FieldsFunc(raw, func(r rune) bool { return r == ';' || r == ' ' || r == '\t' })
	for _, field := range fields {
		from, to, isRange := strings.Cut(field, "..")
		start, err := parseChunk(from)
		if err != nil {
			return nil, err
		}
		if !isRange {
			chunks = append(chunks, start)
			continue
		}
		end, err := parseChunk(to)
		if err != nil {
			return nil, err
		}
		// widen first: int32 spans overflow across the coordinate range
		minX, maxX := int64(min(start.X, end.X)), int64(max(start.X, end.X))
		minZ, maxZ := int64(min(start.Z, end.Z)), int64(max(start.Z, end.Z))
		width, depth := maxX-minX+1, maxZ-minZ+1
		if width > maxRangeChunks || depth > maxRangeChunks || width*depth > maxRangeChunks {
			return nil, fmt.Errorf("range %q selects too many chunks", field)
		}
		for z := minZ; z <= maxZ; z++ {
			for x := minX; x <= maxX; x++ {
				chunks = append(chunks, region.ChunkPos{X: int32(x), Z: int32(z)})
			}
		}
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("no chunks given")
	}
	return chunks, nil
}

func parseChunk(raw string) (region.ChunkPos, error) {
	xs, zs, ok := strings.Cut(strings.TrimSpace(raw), ",")
	if !ok {
		return region.ChunkPos{}, fmt.Errorf("chunk %q is not x,z", raw)
	}
	x, err := strconv.ParseInt(strings.TrimSpace(xs), 10, 32)
	if err != nil {
		return region.ChunkPos{}, fmt.Errorf("chunk %q: %w", raw, err)
	}
	z, err := strconv.ParseInt(strings.TrimSpace(zs), 10, 32)
	if err != nil {
		return region.ChunkPos{}, fmt.Errorf("chunk %q: %w", raw, err)
	}
	return region.ChunkPos{X: int32(x), Z: int32(z)}, nil
}

func printUsage(cfg RuntimeConfig) {
	fmt.Printf("Usage: region_editor %s PATH [delete|undo|redo|clear|stats|regions] [%s \"x,z;x1,z1..x2,z2\"] [%s PATH] [%s PATH] [%s PATH] [%s] [%s] [%s]\n",
		WORLD_FLAG,
		CHUNKS_FLAG,
		CONFIG_FLAG,
		SAVE_CONFIG_FLAG,
		SPOOL_FLAG,
		NO_SPOOL_FLAG,
		YES_FLAG,
		VERBOSE_FLAG,
	)
	fmt.Printf("Without an action an interactive menu is shown; non-interactive input defaults to %q.\n", cfg.Action)
	fmt.Printf("Snapshots of older states are spooled to %s; disable with %q.\n", cfg.Editor.SpoolDir, NO_SPOOL_FLAG)
	fmt.Printf("Edits on a world opened elsewhere need confirmation; %q confirms without prompting.\n", YES_FLAG)
	fmt.Println("Actions: delete (erase chunks from region headers), undo, redo, clear (drop undo history), stats (history + system), regions (list region files).")
	fmt.Println("History lives in memory only and is lost when the process exits.")
}
