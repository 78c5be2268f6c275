package logging

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// LogEntry is one parsed line of the JSON log file.
type LogEntry struct {
	Timestamp time.Time      `json:"time"`
	Level     string         `json:"level"`
	Message   string         `json:"msg"`
	RunID     string         `json:"run_id,omitempty"`
	Tick      uint64         `json:"tick,omitempty"`
	Behavior  string         `json:"behavior,omitempty"`
	Attrs     map[string]any `json:"attrs,omitempty"`
}

// LogFilter selects log entries. Zero-valued fields match everything and
// the remaining criteria are combined with AND.
type LogFilter struct {
	// Level keeps entries at or above this level.
	Level string
	// Since keeps entries at or after this time.
	Since time.Time
	// RunID keeps entries from a single driver run.
	RunID string
	// Behavior keeps entries tagged with this behavior id.
	Behavior string
	// MessageContains keeps entries whose message contains this substring.
	MessageContains string
}

var levelOrder = map[string]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
}

var standardFields = map[string]bool{
	"time":     true,
	"level":    true,
	"msg":      true,
	"run_id":   true,
	"tick":     true,
	"behavior": true,
}

// ReadLogs parses every entry of {dir}/arbiter.log, sorted by timestamp.
// Lines that are not valid JSON are skipped.
func ReadLogs(dir string) ([]LogEntry, error) {
	file, err := os.Open(filepath.Join(dir, LogFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no log file found in %s: %w", dir, err)
		}
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = file.Close() }()

	return ParseLogs(file)
}

// ParseLogs parses JSON log lines from r, sorted by timestamp.
func ParseLogs(r io.Reader) ([]LogEntry, error) {
	var entries []LogEntry
	scanner := bufio.NewScanner(r)

	const maxScanTokenSize = 1024 * 1024
	scanner.Buffer(make([]byte, 64*1024), maxScanTokenSize)

	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		entry, err := parseLogEntry(line)
		if err != nil {
			continue
		}
		entries = append(entries, entry)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading log file: %w", err)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})

	return entries, nil
}

func parseLogEntry(line string) (LogEntry, error) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return LogEntry{}, fmt.Errorf("invalid JSON: %w", err)
	}

	entry := LogEntry{Attrs: make(map[string]any)}

	if s, ok := raw["time"].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			entry.Timestamp = t
		}
	}
	entry.Level, _ = raw["level"].(string)
	entry.Message, _ = raw["msg"].(string)
	entry.RunID, _ = raw["run_id"].(string)
	entry.Behavior, _ = raw["behavior"].(string)
	if tick, ok := raw["tick"].(float64); ok && tick >= 0 {
		entry.Tick = uint64(tick)
	}

	for k, v := range raw {
		if !standardFields[k] {
			entry.Attrs[k] = v
		}
	}

	return entry, nil
}

// FilterLogs returns the entries matching filter.
func FilterLogs(entries []LogEntry, filter LogFilter) []LogEntry {
	var filtered []LogEntry
	for _, entry := range entries {
		if matchesFilter(entry, filter) {
			filtered = append(filtered, entry)
		}
	}
	return filtered
}

func matchesFilter(entry LogEntry, filter LogFilter) bool {
	if filter.Level != "" {
		want, ok := levelOrder[strings.ToUpper(filter.Level)]
		got, entryOk := levelOrder[entry.Level]
		if ok && entryOk && got < want {
			return false
		}
	}
	if !filter.Since.IsZero() && entry.Timestamp.Before(filter.Since) {
		return false
	}
	if filter.RunID != "" && entry.RunID != filter.RunID {
		return false
	}
	if filter.Behavior != "" && entry.Behavior != filter.Behavior {
		return false
	}
	if filter.MessageContains != "" && !strings.Contains(entry.Message, filter.MessageContains) {
		return false
	}
	return true
}

// FormatEntry renders an entry as a single human-readable line.
func FormatEntry(entry LogEntry) string {
	parts := []string{
		fmt.Sprintf("[%s]", entry.Timestamp.Format("15:04:05.000")),
		fmt.Sprintf("%-5s", entry.Level),
		entry.Message,
	}

	var ctx []string
	if entry.Tick > 0 {
		ctx = append(ctx, fmt.Sprintf("tick=%d", entry.Tick))
	}
	if entry.Behavior != "" {
		ctx = append(ctx, fmt.Sprintf("behavior=%s", entry.Behavior))
	}
	if len(ctx) > 0 {
		parts = append(parts, fmt.Sprintf("(%s)", strings.Join(ctx, ", ")))
	}

	if len(entry.Attrs) > 0 {
		if b, err := json.Marshal(entry.Attrs); err == nil {
			parts = append(parts, string(b))
		}
	}

	return strings.Join(parts, " ")
}
