package models

import (
	"fmt"
	"time"
)

// TimestampLayout is the ISO-8601 local time layout written into records.
const TimestampLayout = "2006-01-02T15:04:05.000000"

// VersionStampLayout names record files with second resolution.
const VersionStampLayout = "20060102_150405"

// SentinelReturnCode marks runs that never produced an exit status.
const SentinelReturnCode = -1

const TimeoutMarker = "Timeout"

const Unknown = "unknown"

type RunRecord struct {
	Timestamp  string `json:"timestamp"`
	File       string `json:"file"`
	GitCommit  string `json:"git_commit"`
	GitBranch  string `json:"git_branch"`
	Output     string `json:"output"`
	Error      string `json:"error"`
	ReturnCode int    `json:"returncode"`
}

func (r *RunRecord) Validate() error {
	if r.File == "" {
		return fmt.Errorf("missing file")
	}
	if r.Timestamp == "" {
		return fmt.Errorf("missing timestamp")
	}
	return nil
}

func (r *RunRecord) Succeeded() bool {
	return r.ReturnCode == 0
}

type IndexEntry struct {
	File        string `json:"file"`
	Timestamp   string `json:"timestamp"`
	VersionFile string `json:"version_file"`
	GitCommit   string `json:"git_commit"`
}

func (e *IndexEntry) Validate() error {
	if e.File == "" {
		return fmt.Errorf("missing file")
	}
	if e.Timestamp == "" {
		return fmt.Errorf("missing timestamp")
	}
	if e.VersionFile == "" {
		return fmt.Errorf("missing version_file")
	}
	return nil
}

// RunResult is what the executor hands to the recorder and reporter.
// LaunchFailed is set when the interpreter could not be started at all.
type RunResult struct {
	File         string        `json:"file"`
	Output       string        `json:"output"`
	Error        string        `json:"error"`
	ReturnCode   int           `json:"return_code"`
	TimedOut     bool          `json:"timed_out"`
	LaunchFailed bool          `json:"launch_failed"`
	Duration     time.Duration `json:"duration"`
}

// ParseTimestamp accepts the record layout and RFC 3339.
func ParseTimestamp(s string) (time.Time, error) {
	if t, err := time.ParseInLocation(TimestampLayout, s, time.Local); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("2006-01-02T15:04:05", s, time.Local); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

// DisplayTime renders a record timestamp as "2006-01-02 15:04:05", falling
// back to the raw string when it cannot be parsed.
func DisplayTime(s string) string {
	t, err := ParseTimestamp(s)
	if err != nil {
		return s
	}
	return t.Format("2006-01-02 15:04:05")
}

// ScriptStats aggregates the catalog rows of one script.
type ScriptStats struct {
	File      string `json:"file"`
	Runs      int    `json:"runs"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
	TimedOut  int    `json:"timed_out"`
	LastRun   string `json:"last_run"`
}

type Batch struct {
	ID        string       `json:"id"`
	StartedAt time.Time    `json:"started_at"`
	Host      HostSnapshot `json:"host"`
	Runs      int          `json:"runs"`
}
