// ABOUTME: Output helpers shared by the commands: JSON encoding, tables and status colors
// ABOUTME: Text output is colored with fatih/color, which disables itself off a terminal

package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/flareos/flareforge/internal/localfirst"
)

const (
	formatText = "text"
	formatJSON = "json"
)

type printer struct {
	out    io.Writer
	format string
}

func (p printer) isJSON() bool {
	return p.format == formatJSON
}

func (p printer) json(v any) error {
	enc := json.NewEncoder(p.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (p printer) table() *tabwriter.Writer {
	return tabwriter.NewWriter(p.out, 0, 0, 2, ' ', 0)
}

func (p printer) line(format string, args ...any) {
	fmt.Fprintf(p.out, format+"\n", args...)
}

// statusLabel colors a sync status for terminal output.
func statusLabel(s localfirst.Status) string {
	switch s {
	case localfirst.StatusOnline:
		return color.GreenString(string(s))
	case localfirst.StatusOffline:
		return color.YellowString(string(s))
	case localfirst.StatusLocal:
		return color.CyanString(string(s))
	default:
		return color.HiBlackString(string(s))
	}
}

// statusNote prints a hint when a mutation could not reach the backend.
func (p printer) statusNote(s localfirst.Status) {
	if s == localfirst.StatusOffline && !p.isJSON() {
		p.line("%s", color.YellowString("(offline: saved locally)"))
	}
}

func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

func formatMillis(ms int64) string {
	if ms == 0 {
		return "-"
	}
	return time.UnixMilli(ms).Local().Format("2006-01-02 15:04")
}
