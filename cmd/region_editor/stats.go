package main

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/danmuck/region_editor/src/editor"
	"github.com/danmuck/region_editor/src/region"
	logs "github.com/danmuck/smplog"
	"github.com/dustin/go-humanize"
)

type RuntimeStats struct {
	GoVersion    string
	NumCPU       int
	NumGoroutine int
	AllocBytes   uint64
	SysBytes     uint64
	NumGC        uint32
}

// worldReporter stands in for a world view: it reports which regions and
// chunks a task changed.
type worldReporter struct{}

func (worldReporter) RegionsChanged(regions []region.Pos) {
	for _, pos := range regions {
		logs.Infof("restored %s", pos.FileName())
	}
}

func (worldReporter) ChunksDeleted(chunks map[region.Pos][]region.ChunkPos) {
	for _, pos := range region.SortedPositions(chunks) {
		logs.Infof("deleted %d chunk(s) from %s", len(chunks[pos]), pos.FileName())
	}
}

func executeStatsAction(ed *editor.Editor) error {
	stats := ed.Stats()
	runtimeStats := collectRuntimeStats()

	logs.Titlef("\nHistory\n")
	logs.DataKV("States", fmt.Sprintf("%d (cursor %d)", stats.States, stats.Cursor))
	logs.DataKV("Can undo", fmt.Sprintf("%v", stats.CanUndo))
	logs.DataKV("Can redo", fmt.Sprintf("%v", stats.CanRedo))
	logs.DataKV("In memory", humanize.IBytes(uint64(stats.MemoryBytes)))
	logs.DataKV("On disk", fmt.Sprintf("%s in %d spool file(s)", humanize.IBytes(uint64(stats.DiskBytes)), stats.SpoolFiles))

	logs.Titlef("\nSystem Stats\n")
	logs.DataKV("Generated at", time.Now().Format(time.RFC3339))
	logs.DataKV("Go version", runtimeStats.GoVersion)
	logs.Dataf("CPUs: %d  Goroutines: %d\n", runtimeStats.NumCPU, runtimeStats.NumGoroutine)
	logs.Dataf("Memory: alloc=%s  sys=%s  num_gc=%d\n",
		humanize.IBytes(runtimeStats.AllocBytes),
		humanize.IBytes(runtimeStats.SysBytes),
		runtimeStats.NumGC,
	)
	return nil
}

func collectRuntimeStats() RuntimeStats {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	return RuntimeStats{
		GoVersion:    runtime.Version(),
		NumCPU:       runtime.NumCPU(),
		NumGoroutine: runtime.NumGoroutine(),
		AllocBytes:   mem.Alloc,
		SysBytes:     mem.Sys,
		NumGC:        mem.NumGC,
	}
}

func executeRegionsAction(ed *editor.Editor) error {
	dir := ed.Dir()
	positions, err := dir.List()
	if err != nil {
		return fmt.Errorf("failed to list regions: %w", err)
	}
	if len(positions) == 0 {
		logs.Println("No region files found.")
		return nil
	}

	logs.Titlef("\nRegions in %s (%d):\n", dir.Root(), len(positions))
	var total uint64
	for _, pos := range positions {
		info, err := os.Stat(dir.Path(pos))
		if err != nil {
			logs.Dataf("  %-16s unreadable (%v)\n", pos.FileName(), err)
			continue
		}
		size := uint64(info.Size())
		total += size
		note := ""
		if info.Size() < region.MinRegionBytes {
			note = "  (no chunk data)"
		}
		logs.Dataf("  %-16s %10s  modified %s%s\n", pos.FileName(), humanize.IBytes(size), humanize.Time(info.ModTime()), note)
	}
	logs.DataKV("Total", humanize.IBytes(total))
	return nil
}

// renderSummary prints a timing table after every task.
func renderSummary(name string, out editor.Outcome) {
	status := "OK"
	switch {
	case out.Err != nil:
		status = fmt.Sprintf("FAILED: %v", out.Err)
	case !out.Applied:
		status = "not applied"
	}

	logs.Printf("\n--- %s summary [%s] ---\n", name, status)
	if len(out.Regions) > 0 {
		logs.Printf("  %-20s %d\n", "regions", len(out.Regions))
	}
	if out.Chunks > 0 {
		logs.Printf("  %-20s %d\n", "chunks", out.Chunks)
	}
	for _, ph := range out.Phases {
		marker := ""
		if ph.Failed() {
			marker = fmt.Sprintf(" (error: %v)", ph.Err)
		}
		logs.Printf("  %-20s %-10s %3d region(s)%s\n", ph.Name, formatDuration(ph.Elapsed), ph.Regions, marker)
	}
	logs.Printf("  %-20s %s\n", "total", formatDuration(out.Elapsed))
}

// formatDuration formats a duration for summary display.
func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dus", d.Microseconds())
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.3fs", d.Seconds())
}
