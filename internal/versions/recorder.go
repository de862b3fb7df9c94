package versions

import (
	"context"
	"fmt"
	"time"

	"github.com/metorial/runhistory/internal/models"
)

// Recorder writes one run record per execution and appends its index entry.
// The record is written before the index; a crash in between leaves an
// orphaned record that no index entry points at.
type Recorder struct {
	store    *Store
	revision RevisionSource
	now      func() time.Time
}

func NewRecorder(store *Store, revision RevisionSource) *Recorder {
	return &Recorder{
		store:    store,
		revision: revision,
		now:      time.Now,
	}
}

func (r *Recorder) Record(ctx context.Context, result *models.RunResult) (*models.IndexEntry, error) {
	// A cancelled batch still records its last run against the real revision.
	lookupCtx := context.WithoutCancel(ctx)
	commit := r.revision.Commit(lookupCtx)
	branch := r.revision.Branch(lookupCtx)

	now := r.now()
	record := &models.RunRecord{
		Timestamp:  now.Format(models.TimestampLayout),
		File:       result.File,
		GitCommit:  commit,
		GitBranch:  branch,
		Output:     result.Output,
		Error:      result.Error,
		ReturnCode: result.ReturnCode,
	}

	versionFile, err := r.store.WriteRecord(VersionFileName(result.File, now), record)
	if err != nil {
		return nil, fmt.Errorf("write record: %w", err)
	}

	entry := models.IndexEntry{
		File:        record.File,
		Timestamp:   record.Timestamp,
		VersionFile: versionFile,
		GitCommit:   commit,
	}
	if err := r.store.AppendIndex(entry); err != nil {
		return nil, fmt.Errorf("update index: %w", err)
	}

	return &entry, nil
}
