package commands

import (
	"encoding/json"
	"log/slog"
	"os"
	"sort"
	"time"

	"oncopainel-backend/lib/icd"
	"oncopainel-backend/lib/scrapers/tabnet"
	"oncopainel-backend/lib/serviceutil"
	"oncopainel-backend/lib/timezone"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var queryYear *int
var querySex *string
var queryAgeGroup *string
var queryDiagnosis *string
var queryRegion *string
var queryParallel *bool
var queryMaxWorkers *int
var queryJson *bool

func init() {
	// the panel's data lags, the latest complete year is the previous one
	queryYear = queryCmd.Flags().Int("year", timezone.Now().Year()-1, "The reference year to tabulate.")
	querySex = queryCmd.Flags().String("sex", "ALL", "Sex category: ALL, M or F.")
	queryAgeGroup = queryCmd.Flags().String("age-group", "", "Breaks the query down by one age group, or all of them when set to 'all'.")
	queryDiagnosis = queryCmd.Flags().String("cid", "", "Breaks the query down by one detailed ICD-10 code, or all of them when set to 'all'.")
	queryRegion = queryCmd.Flags().String("region", "", "Narrows region totals to a single region.")
	queryParallel = queryCmd.Flags().Bool("parallel", false, "Fetches batch breakdowns concurrently.")
	queryMaxWorkers = queryCmd.Flags().Int("max-workers", tabnet.DefaultMaxWorkers, "Concurrent request cap for parallel batches.")
	queryJson = queryCmd.Flags().Bool("json", false, "Prints the raw result as json instead of a table.")
	rootCmd.AddCommand(queryCmd)
}

var queryCmd = &cobra.Command{
	Use:   "query [--year <year>] [--sex ALL|M|F] [--age-group <label>|all] [--cid <code>|all] [--region <name>]",
	Short: "Tabulates cancer case counts from the panel.",
	Run: func(cmd *cobra.Command, args []string) {
		client := createClient()

		q := tabnet.Query{
			Year:       *queryYear,
			Sex:        *querySex,
			Region:     *queryRegion,
			Parallel:   *queryParallel,
			MaxWorkers: *queryMaxWorkers,
		}
		// "all" selects the whole catalog, which the library spells as ""
		if *queryAgeGroup != "" && *queryAgeGroup != "all" {
			q.AgeGroup = *queryAgeGroup
		}
		if *queryDiagnosis != "" && *queryDiagnosis != "all" {
			q.Diagnosis = *queryDiagnosis
		}
		t1 := time.Now()
		var res *tabnet.Result
		var err error
		switch {
		case *queryDiagnosis == "all":
			res, err = client.QueryDiagnoses(cmd.Context(), q.Year, q.Sex, "", q.Parallel, q.MaxWorkers)
		case *queryAgeGroup == "all":
			res, err = client.QueryAgeGroups(cmd.Context(), q.Year, q.Sex, "", q.Parallel, q.MaxWorkers)
		default:
			res, err = client.Query(cmd.Context(), q)
		}
		if err != nil {
			serviceutil.Fatal("query failed", err)
		}
		slog.Debug("query finished", "duration", time.Since(t1))

		if *queryJson {
			printJson(res)
			return
		}

		switch res.Mode {
		case tabnet.ModeRegionTotals:
			printRegionTotals(res)
		default:
			printFragments(res)
		}
	},
}

func printJson(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	err := enc.Encode(v)
	if err != nil {
		serviceutil.Fatal("failed to encode result", err)
	}
}

func printRegionTotals(res *tabnet.Result) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Região", "Casos"})

	for _, region := range tabnet.Regions {
		count, ok := res.Regions[region.Name]
		if !ok {
			continue
		}
		t.AppendRow(table.Row{region.Name, count.Formatted})
	}
	t.AppendFooter(table.Row{"Total", res.Regions[tabnet.TotalLabel].Formatted})

	t.SetStyle(table.StyleRounded)
	t.Render()
}

func printFragments(res *tabnet.Result) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{labelHeader(res.Mode), "Casos"})

	// age groups render in catalog order, diagnosis codes sort fine
	// lexically
	var labels []string
	if res.Mode == tabnet.ModeAgeGroups {
		for _, label := range tabnet.AgeGroupLabels() {
			if _, ok := res.Fragments[label]; ok {
				labels = append(labels, label)
			}
		}
	} else {
		for label := range res.Fragments {
			labels = append(labels, label)
		}
		sort.Strings(labels)
	}

	for _, label := range labels {
		display := label
		if res.Mode == tabnet.ModeDiagnoses {
			display = icd.Label(label)
		}

		frag := res.Fragments[label]
		if frag == nil {
			t.AppendRow(table.Row{display, "sem registros"})
			continue
		}
		rows, err := frag.Rows()
		if err != nil {
			serviceutil.Fatal("failed to parse chart fragment", err)
		}
		var total float64
		for _, row := range rows {
			if row.RegionCode == 0 {
				continue
			}
			total += row.Value
		}
		t.AppendRow(table.Row{display, tabnet.FormatCount(total)})
	}

	t.SetStyle(table.StyleRounded)
	t.Render()
}

func labelHeader(mode tabnet.Mode) string {
	if mode == tabnet.ModeDiagnoses {
		return "Diagnóstico"
	}
	return "Faixa etária"
}
