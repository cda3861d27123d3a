package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/danmuck/region_editor/src/editor"
	"github.com/danmuck/region_editor/src/worldlock"
	logs "github.com/danmuck/smplog"
)

var errMenuBack = errors.New("menu back")
var errMenuExit = errors.New("menu exit")

const repeatConfirmPhrase = "I DO NOT have this world open"

func isInteractiveInput(r *os.File) bool {
	info, err := r.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

func isInteractiveReader(input io.Reader) bool {
	file, ok := input.(*os.File)
	if !ok {
		// Non-file readers (e.g. buffered wrappers) are treated as interactive.
		return true
	}
	return isInteractiveInput(file)
}

func getBufferedReader(input io.Reader) *bufio.Reader {
	if reader, ok := input.(*bufio.Reader); ok {
		return reader
	}
	return bufio.NewReader(input)
}

// confirmPrompt builds the world-lock confirmation. The first warning asks for
// a plain yes; a repeat warning requires typing the full phrase.
func confirmPrompt(reader *bufio.Reader, cfg RuntimeConfig, interactive bool) worldlock.ConfirmFunc {
	return func(firstConfirmation bool) bool {
		if cfg.AssumeYes {
			logs.Warnf("world %s may be open elsewhere; continuing (%s)", cfg.Editor.WorldDir, YES_FLAG)
			return true
		}
		if !interactive {
			logs.Warnf("world %s may be open elsewhere; refusing to edit without %s", cfg.Editor.WorldDir, YES_FLAG)
			return false
		}

		logs.Printf("\n")
		if firstConfirmation {
			logs.StatusWarn("It looks like this world might be open in the game.")
			logs.Printf("\nIf it is, editing it WILL corrupt it. Be sure to have a backup!\n")
			logs.Promptf("Modify the world anyway? [y/N]: ")
		} else {
			logs.StatusWarn("The world was opened AGAIN since you last confirmed.")
			logs.Printf("\nClose the game before continuing. Edits to an open world are lost or corrupt it.\n")
			logs.Promptf("Type %q to continue: ", repeatConfirmPhrase)
		}

		line, err := reader.ReadString('\n')
		if err != nil {
			return false
		}
		answer := strings.TrimSpace(line)
		if firstConfirmation {
			answer = strings.ToLower(answer)
			return answer == "y" || answer == "yes"
		}
		return answer == repeatConfirmPhrase
	}
}

func promptAction(reader *bufio.Reader, cfg RuntimeConfig, stats editor.Stats) (MenuAction, error) {
	for {
		logs.Printf("\n")
		logs.Titlef("--[ region_editor | %s ]--\n\n", cfg.Editor.WorldDir)
		logs.Menuf("  delete 	(erase chunks from region headers)\n")
		logs.Menuf("  undo 		(%d state(s) behind)\n", max(stats.Cursor, 0))
		logs.Menuf("  redo 		(%d state(s) ahead)\n", max(stats.States-stats.Cursor-1, 0))
		logs.Menuf("  clear 	(drop undo history)\n")
		logs.Printf("\n")
		logs.Menuf("  regions 	(list region files)\n")
		logs.Menuf("  stats 	(history + system)\n")
		logs.Menuf("  exit\n")
		logs.Printf("\n")
		logs.DividerRune(0, '=')
		logs.Promptf("\nChoose action: ")

		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				return "", errMenuExit
			}
			return "", fmt.Errorf("failed to read action: %w", err)
		}

		choice := strings.ToLower(strings.TrimSpace(line))
		switch choice {
		case string(ActionDelete), "del", "d":
			return ActionDelete, nil
		case string(ActionUndo), "u", "z":
			if !stats.CanUndo {
				logs.StatusWarn("Nothing to undo.")
				logs.Printf("\n")
				continue
			}
			return ActionUndo, nil
		case string(ActionRedo), "r", "y":
			if !stats.CanRedo {
				logs.StatusWarn("Nothing to redo.")
				logs.Printf("\n")
				continue
			}
			return ActionRedo, nil
		case string(ActionClear), "cl":
			return ActionClear, nil
		case string(ActionRegions), "reg", "ls":
			return ActionRegions, nil
		case string(ActionStats), "stat", "s":
			return ActionStats, nil
		case "e", "exit", "q":
			return "", errMenuExit
		case "":
			continue
		default:
			logs.Printf("Invalid action %q.\n\n", choice)
			logs.Divider(0)
			logs.Printf("\n")
			logs.KeyHint("d, del", "delete - erase chunks from region headers")
			logs.Printf("\n")
			logs.KeyHint("u, z", "undo - restore the previous state")
			logs.Printf("\n")
			logs.KeyHint("r, y", "redo - reapply an undone state")
			logs.Printf("\n")
			logs.KeyHint("cl", "clear - drop undo history")
			logs.Printf("\n")
			logs.KeyHint("reg, ls", "regions - list region files")
			logs.Printf("\n")
			logs.KeyHint("s, stat", "stats - history + system info")
			logs.Printf("\n")
			logs.KeyHint("e, q", "exit - quit")
			logs.Printf("\n")
		}
	}
}

// promptChunks asks for a chunk list in the --chunks syntax.
func promptChunks(reader *bufio.Reader) (string, error) {
	for {
		logs.Promptf("\nChunks to delete (x,z;x1,z1..x2,z2) or e to cancel: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				return "", errMenuBack
			}
			return "", fmt.Errorf("failed to read chunks: %w", err)
		}
		choice := strings.TrimSpace(line)
		if strings.EqualFold(choice, "e") {
			return "", errMenuBack
		}
		if choice == "" {
			logs.Println("Chunk list cannot be empty.")
			continue
		}
		return choice, nil
	}
}

// promptYesNo asks a plain question for actions that do not touch the world.
func promptYesNo(reader *bufio.Reader, question string) bool {
	logs.Promptf("%s [y/N]: ", question)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
