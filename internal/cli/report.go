package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/metorial/runhistory/internal/hostinfo"
	"github.com/metorial/runhistory/internal/models"
	"github.com/metorial/runhistory/internal/runner"
)

// Reporter prints batch progress. It holds no state besides its writers.
type Reporter struct {
	out    io.Writer
	errOut io.Writer
	dir    string
	st     styles
}

func NewReporter(out, errOut io.Writer, dir string) *Reporter {
	return &Reporter{
		out:    out,
		errOut: errOut,
		dir:    dir,
		st:     newStyles(out),
	}
}

func (r *Reporter) NoScripts() {
	fmt.Fprintln(r.out, "No scripts found to run.")
}

func (r *Reporter) Start(host *models.HostSnapshot) {
	fmt.Fprintln(r.out, rule("=", narrowRule))
	fmt.Fprintln(r.out, r.st.title.Render("Running scripts in "+r.dir))
	if host != nil {
		fmt.Fprintf(r.out, "%s %s\n", r.st.label.Render("Host:"), hostinfo.Describe(host))
	}
	fmt.Fprintln(r.out, rule("=", narrowRule))
}

func (r *Reporter) ScriptStarted(name string) {
	fmt.Fprintf(r.out, "\n%s\n", rule("=", narrowRule))
	fmt.Fprintf(r.out, "Running: %s\n", name)
	fmt.Fprintln(r.out, rule("=", narrowRule))
}

func (r *Reporter) ScriptFinished(result *models.RunResult) {
	switch {
	case result.TimedOut:
		fmt.Fprintln(r.out, r.st.warning.Render(fmt.Sprintf("%s  Timeout running %s", markWarning, result.File)))
		return
	case result.LaunchFailed:
		fmt.Fprintln(r.out, r.st.error.Render(fmt.Sprintf("%s Error running %s: %s", markError, result.File, result.Error)))
		return
	}

	if result.Output != "" {
		fmt.Fprintln(r.out, strings.TrimRight(result.Output, "\n"))
	}
	if result.Error != "" {
		fmt.Fprintf(r.errOut, "Errors: %s\n", strings.TrimRight(result.Error, "\n"))
	}

	if result.ReturnCode != 0 {
		fmt.Fprintln(r.out, r.st.warning.Render(fmt.Sprintf("%s  %s exited with code %d", markWarning, result.File, result.ReturnCode)))
		return
	}
	fmt.Fprintln(r.out, r.st.success.Render(fmt.Sprintf("%s %s ran successfully", markSuccess, result.File)))
}

func (r *Reporter) RecordFailed(name string, err error) {
	fmt.Fprintln(r.out, r.st.error.Render(fmt.Sprintf("%s Could not save version of %s: %v", markError, name, err)))
}

func (r *Reporter) Finish(summary *runner.Summary, versionsDir string) {
	fmt.Fprintf(r.out, "\n%s\n", rule("=", narrowRule))
	fmt.Fprintln(r.out, "Run complete")
	fmt.Fprintf(r.out, "%d script(s): %d succeeded, %d failed, %d timed out\n",
		summary.Total, summary.Succeeded, summary.Failed, summary.TimedOut)
	fmt.Fprintf(r.out, "%s %s\n", r.st.label.Render("Versions saved to"), versionsDir)
	fmt.Fprintln(r.out, rule("=", narrowRule))
}
