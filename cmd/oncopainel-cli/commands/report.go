package commands

import (
	"os"

	"oncopainel-backend/lib/serviceutil"
	"oncopainel-backend/lib/timezone"
	"oncopainel-backend/services/oncopainel/report"

	"github.com/spf13/cobra"
)

var reportYear *int
var reportOut *string

func init() {
	reportYear = reportCmd.Flags().Int("year", timezone.Now().Year()-1, "The reference year to summarize.")
	reportOut = reportCmd.Flags().String("out", "", "Writes the report to a file instead of stdout.")
	rootCmd.AddCommand(reportCmd)
}

var reportCmd = &cobra.Command{
	Use:   "report [--year <year>] [--out <path/to/report.md>]",
	Short: "Renders a markdown summary of one year of panel data.",
	Run: func(cmd *cobra.Command, args []string) {
		client := createClient()

		summary, err := report.Collect(cmd.Context(), client, *reportYear)
		if err != nil {
			serviceutil.Fatal("failed to collect region totals", err)
		}

		out := os.Stdout
		if *reportOut != "" {
			f, err := os.Create(*reportOut)
			if err != nil {
				serviceutil.Fatal("failed to create output file", err)
			}
			defer f.Close()
			out = f
		}

		err = report.Write(out, summary)
		if err != nil {
			serviceutil.Fatal("failed to render report", err)
		}
	},
}
