package commands

import (
	"log/slog"
	"time"

	"oncopainel-backend/lib/scrapers/tabnet"
	"oncopainel-backend/lib/serviceutil"
	"oncopainel-backend/lib/sqliteutil"
	"oncopainel-backend/lib/timezone"
	"oncopainel-backend/services/oncopainel/export"

	"github.com/spf13/cobra"
)

var exportDb *string
var exportYear *int
var exportParallel *bool
var exportMaxWorkers *int

func init() {
	exportDb = exportCmd.Flags().String("db", "oncopainel.db", "The sqlite database to write the snapshot to.")
	exportYear = exportCmd.Flags().Int("year", timezone.Now().Year()-1, "The reference year to snapshot.")
	exportParallel = exportCmd.Flags().Bool("parallel", true, "Fetches batch breakdowns concurrently.")
	exportMaxWorkers = exportCmd.Flags().Int("max-workers", tabnet.DefaultMaxWorkers, "Concurrent request cap for parallel batches.")
	rootCmd.AddCommand(exportCmd)
}

var exportCmd = &cobra.Command{
	Use:   "export [--db <path/to/output.db>] [--year <year>]",
	Short: "Snapshots a full year of panel data into a sqlite database.",
	Run: func(cmd *cobra.Command, args []string) {
		client := createClient()

		db, err := sqliteutil.OpenDB(export.Schema, *exportDb)
		if err != nil {
			serviceutil.Fatal("failed to open db", err)
		}
		defer db.Close()

		slog.Info("exporting", "year", *exportYear, "db", *exportDb)
		t1 := time.Now()

		err = export.NewExporter(db, client).Run(cmd.Context(), export.Options{
			Year:       *exportYear,
			Parallel:   *exportParallel,
			MaxWorkers: *exportMaxWorkers,
		})
		if err != nil {
			serviceutil.Fatal("export failed", err)
		}

		slog.Info("export time", "seconds", time.Since(t1).Seconds())
	},
}
