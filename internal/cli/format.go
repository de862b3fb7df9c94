package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/metorial/runhistory/internal/models"
)

func FormatJSON(w io.Writer, data interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

func FormatStatsTable(w io.Writer, stats []models.ScriptStats) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tRUNS\tSUCCEEDED\tFAILED\tTIMED OUT\tSUCCESS RATE\tLAST RUN")

	for _, s := range stats {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%s\t%s\n",
			s.File,
			s.Runs,
			s.Succeeded,
			s.Failed,
			s.TimedOut,
			formatRate(s.Succeeded, s.Runs),
			models.DisplayTime(s.LastRun),
		)
	}

	return tw.Flush()
}

func formatRate(part, total int) string {
	if total == 0 {
		return "-"
	}
	return fmt.Sprintf("%.1f%%", float64(part)*100/float64(total))
}
