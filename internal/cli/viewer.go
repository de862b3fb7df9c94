package cli

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/metorial/runhistory/internal/models"
	"github.com/metorial/runhistory/internal/versions"
)

// StatsSource is satisfied by the run catalog.
type StatsSource interface {
	GetScriptStats(filter string) ([]models.ScriptStats, error)
}

// Viewer renders the read-only views over a versions store. Lookup misses
// are printed for the user and reported as success; only I/O failures and
// malformed records come back as errors.
type Viewer struct {
	store *versions.Store
	out   io.Writer
	st    styles

	// JSON switches every view to machine-readable output.
	JSON bool
}

func NewViewer(store *versions.Store, out io.Writer) *Viewer {
	return &Viewer{
		store: store,
		out:   out,
		st:    newStyles(out),
	}
}

func (v *Viewer) List(filter string) error {
	entries, err := v.store.LoadIndex()
	if err != nil {
		return err
	}

	if len(entries) == 0 && !v.JSON {
		fmt.Fprintln(v.out, "No versions saved yet.")
		fmt.Fprintln(v.out, v.st.hint.Render("Run 'runall' first to generate versions."))
		return nil
	}

	groups := make(map[string][]models.IndexEntry)
	for _, entry := range entries {
		if filter != "" && !strings.Contains(entry.File, filter) {
			continue
		}
		groups[entry.File] = append(groups[entry.File], entry)
	}

	files := make([]string, 0, len(groups))
	for file := range groups {
		files = append(files, file)
	}
	sort.Strings(files)

	if v.JSON {
		listing := make(map[string][]models.IndexEntry, len(groups))
		for file, group := range groups {
			versions.SortNewestFirst(group)
			listing[file] = group
		}
		return FormatJSON(v.out, listing)
	}

	fmt.Fprintln(v.out, rule("=", wideRule))
	fmt.Fprintln(v.out, v.st.title.Render("VERSION HISTORY"))
	fmt.Fprintln(v.out, rule("=", wideRule))

	if len(files) == 0 {
		fmt.Fprintf(v.out, "\nNo versions match %q\n", filter)
	}

	for _, file := range files {
		group := groups[file]
		versions.SortNewestFirst(group)

		fmt.Fprintf(v.out, "\n📄 %s\n", file)
		fmt.Fprintln(v.out, rule("-", wideRule))
		for i, entry := range group {
			fmt.Fprintf(v.out, "  %d. %s | Commit: %s | File: %s\n",
				i+1, models.DisplayTime(entry.Timestamp), entry.GitCommit, entry.VersionFile)
		}
	}

	fmt.Fprintf(v.out, "\n%s\n", rule("=", wideRule))
	return nil
}

func (v *Viewer) Show(file string, version int) error {
	entry, total, ok, err := v.selectVersion(file, version)
	if err != nil || !ok {
		return err
	}

	record, err := v.store.LoadEntry(entry)
	if err != nil {
		return err
	}

	if v.JSON {
		return FormatJSON(v.out, record)
	}

	fmt.Fprintln(v.out, rule("=", wideRule))
	fmt.Fprintln(v.out, v.st.title.Render("OUTPUT OF: "+file))
	fmt.Fprintf(v.out, "Version %d of %d\n", version, total)
	fmt.Fprintf(v.out, "Date: %s\n", models.DisplayTime(record.Timestamp))
	fmt.Fprintf(v.out, "Commit: %s | Branch: %s\n", record.GitCommit, record.GitBranch)
	fmt.Fprintln(v.out, rule("=", wideRule))

	if record.Output != "" {
		fmt.Fprintln(v.out, "\n--- OUTPUT ---")
		fmt.Fprintln(v.out, strings.TrimRight(record.Output, "\n"))
	}

	if record.Error != "" {
		fmt.Fprintln(v.out, "\n--- ERRORS ---")
		fmt.Fprintln(v.out, strings.TrimRight(record.Error, "\n"))
	}

	if record.Succeeded() {
		fmt.Fprintf(v.out, "\n%s\n", v.st.success.Render(markSuccess+" Execution succeeded"))
	} else {
		fmt.Fprintf(v.out, "\n%s\n", v.st.warning.Render(fmt.Sprintf("%s  Return code: %d", markWarning, record.ReturnCode)))
	}

	fmt.Fprintln(v.out, rule("=", wideRule))
	return nil
}

func (v *Viewer) Compare(file string, version1, version2 int) error {
	entry1, _, ok, err := v.selectVersion(file, version1)
	if err != nil || !ok {
		return err
	}
	entry2, _, ok, err := v.selectVersion(file, version2)
	if err != nil || !ok {
		return err
	}

	record1, err := v.store.LoadEntry(entry1)
	if err != nil {
		return err
	}
	record2, err := v.store.LoadEntry(entry2)
	if err != nil {
		return err
	}

	if v.JSON {
		return FormatJSON(v.out, map[string]interface{}{
			"file":      file,
			"versions":  []*models.RunRecord{record1, record2},
			"identical": record1.Output == record2.Output,
		})
	}

	fmt.Fprintln(v.out, rule("=", wideRule))
	fmt.Fprintln(v.out, v.st.title.Render("VERSION COMPARISON: "+file))
	fmt.Fprintln(v.out, rule("=", wideRule))

	v.printSide(version1, record1)
	v.printSide(version2, record2)

	if record1.Output == record2.Output {
		fmt.Fprintf(v.out, "\n%s\n", v.st.success.Render(markSuccess+" Outputs are identical"))
	} else {
		fmt.Fprintf(v.out, "\n%s\n", v.st.warning.Render(markWarning+"  Outputs differ"))
	}

	fmt.Fprintln(v.out, rule("=", wideRule))
	return nil
}

func (v *Viewer) printSide(version int, record *models.RunRecord) {
	fmt.Fprintf(v.out, "\nVERSION %d:\n", version)
	fmt.Fprintf(v.out, "  Date: %s\n", models.DisplayTime(record.Timestamp))
	fmt.Fprintf(v.out, "  Commit: %s\n", record.GitCommit)
	fmt.Fprintf(v.out, "  Output:\n%s\n", record.Output)
}

// selectVersion prints the lookup miss itself and reports ok=false.
func (v *Viewer) selectVersion(file string, version int) (*models.IndexEntry, int, bool, error) {
	entry, total, err := v.store.Select(file, version)

	var rangeErr *versions.VersionRangeError
	switch {
	case errors.Is(err, versions.ErrNoVersions):
		fmt.Fprintf(v.out, "No versions found for %s\n", file)
		return nil, 0, false, nil
	case errors.As(err, &rangeErr):
		fmt.Fprintf(v.out, "Only %d version(s) available for %s\n", rangeErr.Available, file)
		return nil, rangeErr.Available, false, nil
	case err != nil:
		return nil, 0, false, err
	}

	return entry, total, true, nil
}

func (v *Viewer) Stats(source StatsSource, filter string) error {
	if source == nil {
		fmt.Fprintln(v.out, "No run catalog found.")
		fmt.Fprintln(v.out, v.st.hint.Render("Run 'runall' with the catalog enabled to collect statistics."))
		return nil
	}

	stats, err := source.GetScriptStats(filter)
	if err != nil {
		return fmt.Errorf("query catalog: %w", err)
	}

	if v.JSON {
		return FormatJSON(v.out, stats)
	}

	if len(stats) == 0 {
		fmt.Fprintln(v.out, "No runs recorded in the catalog.")
		return nil
	}

	return FormatStatsTable(v.out, stats)
}

func (v *Viewer) Help() {
	fmt.Fprint(v.out, HelpText)
}

// UsageError prints msg followed by the help text.
func (v *Viewer) UsageError(msg string) {
	fmt.Fprintln(v.out, v.st.error.Render("Error: "+msg))
	v.Help()
}

func (v *Viewer) UnknownCommand(name string) {
	fmt.Fprintf(v.out, "unknown command %q\n", name)
	v.Help()
}

const HelpText = `
USAGE: viewer [command] [arguments]

COMMANDS:
  list [file]                 List all versions (optionally filtered by file name substring)
  show <file> [version]       Show the output of one version (default: 1 = most recent)
  compare <file> [v1] [v2]    Compare two versions (default: v1=1, v2=2)
  stats [file]                Per-script run totals from the run catalog
  help                        Show this help

EXAMPLES:
  viewer list
  viewer list hola_mundo
  viewer show hola_mundo.py
  viewer show hola_mundo.py 2
  viewer compare leccion1.py 1 2
  viewer stats

`
