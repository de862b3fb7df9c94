package runner

import (
	"context"
	"fmt"
	"log"
	"path/filepath"

	"github.com/metorial/runhistory/internal/models"
)

// Recorder persists one run and returns the index entry it appended.
type Recorder interface {
	Record(ctx context.Context, result *models.RunResult) (*models.IndexEntry, error)
}

// Sink receives every recorded run. Sink failures are logged and ignored.
type Sink interface {
	Publish(ctx context.Context, result *models.RunResult, entry *models.IndexEntry) error
}

type Reporter interface {
	Start(host *models.HostSnapshot)
	NoScripts()
	ScriptStarted(name string)
	ScriptFinished(result *models.RunResult)
	RecordFailed(name string, err error)
	Finish(summary *Summary, versionsDir string)
}

type Summary struct {
	Total     int
	Succeeded int
	Failed    int
	TimedOut  int
}

type Batch struct {
	Dir         string
	Extensions  []string
	Exclude     []string
	VersionsDir string
	Host        *models.HostSnapshot

	Executor *ScriptExecutor
	Recorder Recorder
	Reporter Reporter
	Sinks    []Sink
}

// Run executes every discovered script one at a time. Script outcomes never
// fail the batch; only an unreadable scripts directory does.
func (b *Batch) Run(ctx context.Context) (*Summary, error) {
	scripts, err := Discover(b.Dir, b.Extensions, b.Exclude)
	if err != nil {
		return nil, err
	}

	summary := &Summary{}
	if len(scripts) == 0 {
		b.Reporter.NoScripts()
		return summary, nil
	}

	b.Reporter.Start(b.Host)

	for _, name := range scripts {
		if ctx.Err() != nil {
			log.Printf("Batch interrupted before %s", name)
			break
		}

		b.Reporter.ScriptStarted(name)

		result := b.Executor.Execute(ctx, filepath.Join(b.Dir, name))
		summary.add(result)

		entry, err := b.Recorder.Record(ctx, result)
		b.Reporter.ScriptFinished(result)
		if err != nil {
			b.Reporter.RecordFailed(name, fmt.Errorf("record run: %w", err))
			continue
		}

		b.publish(ctx, result, entry)
	}

	b.Reporter.Finish(summary, b.VersionsDir)
	return summary, nil
}

func (b *Batch) publish(ctx context.Context, result *models.RunResult, entry *models.IndexEntry) {
	for _, sink := range b.Sinks {
		if err := sink.Publish(ctx, result, entry); err != nil {
			log.Printf("Error publishing run of %s: %v", result.File, err)
		}
	}
}

func (s *Summary) add(result *models.RunResult) {
	s.Total++
	switch {
	case result.TimedOut:
		s.TimedOut++
	case result.ReturnCode == 0 && !result.LaunchFailed:
		s.Succeeded++
	default:
		s.Failed++
	}
}
