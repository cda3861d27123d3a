package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/danmuck/region_editor/cmd/internal/logcfg"
	"github.com/danmuck/region_editor/src/editor"
	logs "github.com/danmuck/smplog"
)

func main() {
	logs.Configure(logcfg.Load())

	defaults := defaultRuntimeConfig()
	cfg, err := parseCLI(os.Args[1:], defaults)
	if err != nil {
		fmt.Printf("Error: %v\n\n", err)
		printUsage(defaults)
		os.Exit(1)
	}
	if cfg.ConfigPath != "" {
		logs.Configure(logcfg.Load(logcfg.NextTo(cfg.ConfigPath)))
	}

	if cfg.SaveConfigPath != "" {
		if err := cfg.Editor.Save(cfg.SaveConfigPath); err != nil {
			logs.Fatalf(err, "Failed to save config to %s", cfg.SaveConfigPath)
		}
		logs.Printf("Config written to %s\n", cfg.SaveConfigPath)
	}

	ed, err := editor.New(cfg.Editor, editor.WithListener(worldReporter{}))
	if err != nil {
		logs.Fatalf(err, "Failed to open world %s", cfg.Editor.WorldDir)
	}

	interactive := isInteractiveReader(os.Stdin)
	reader := getBufferedReader(os.Stdin)
	if cfg.ActionProvided || !interactive {
		err = executeActionOnce(cfg, ed, reader, interactive)
	} else {
		err = runInteractiveSession(cfg, ed, reader)
	}
	if closeErr := ed.Close(); closeErr != nil {
		logs.Warnf("failed to release editor resources: %v", closeErr)
	}
	if err != nil {
		logs.Fatalf(err, "Action %q failed", cfg.Action)
	}
}

func runInteractiveSession(cfg RuntimeConfig, ed *editor.Editor, reader *bufio.Reader) error {
	clearTerminalIfInteractive(os.Stdin)

	for {
		action, err := promptAction(reader, cfg, ed.Stats())
		if errors.Is(err, errMenuExit) {
			logs.Println("Exited region editor.")
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to select action: %w", err)
		}

		cfg.Action = action
		cfg.Chunks = nil
		clearTerminalIfInteractive(os.Stdin)
		err = executeActionOnce(cfg, ed, reader, true)
		if errors.Is(err, errMenuBack) {
			continue
		}
		if err != nil {
			logs.Printf("\nAction %q failed: %v\n", cfg.Action, err)
		}
	}
}

func executeActionOnce(cfg RuntimeConfig, ed *editor.Editor, reader *bufio.Reader, interactive bool) error {
	confirm := confirmPrompt(reader, cfg, interactive)

	switch cfg.Action {
	case ActionStats:
		return executeStatsAction(ed)
	case ActionRegions:
		return executeRegionsAction(ed)
	case ActionDelete:
		chunks := cfg.Chunks
		if len(chunks) == 0 {
			raw, err := promptChunks(reader)
			if err != nil {
				return err
			}
			chunks, err = parseChunkList(raw)
			if err != nil {
				return err
			}
		}
		return runTask(ed.DeleteChunks(chunks, confirm))
	case ActionUndo:
		return runTask(ed.Undo(confirm))
	case ActionRedo:
		return runTask(ed.Redo(confirm))
	case ActionClear:
		if interactive && !cfg.AssumeYes && !promptYesNo(reader, "Drop every undo state?") {
			return errMenuBack
		}
		return runTask(ed.ClearHistory())
	default:
		return fmt.Errorf("unsupported action: %s", cfg.Action)
	}
}

// runTask waits for a submitted task and prints its summary.
func runTask(task *editor.Task, err error) error {
	if err != nil {
		return err
	}
	out, err := task.Wait(context.Background())
	renderSummary(task.Name(), out)
	return err
}

func clearTerminalIfInteractive(input io.Reader) {
	if !isInteractiveReader(input) {
		return
	}
	fmt.Print("\033[H\033[2J")
}
