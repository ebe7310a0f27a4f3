package commands

import (
	"fmt"
	"os"

	"oncopainel-backend/lib/icd"
	"oncopainel-backend/lib/scrapers/tabnet"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var catalogSearch *string

func init() {
	catalogSearch = catalogCmd.Flags().String("search", "", "Filters diagnoses by description, e.g. --search mama.")
	rootCmd.AddCommand(catalogCmd)
}

var catalogCmd = &cobra.Command{
	Use:       "catalog regions|age-groups|diagnoses",
	Short:     "Prints the filter catalogs the panel accepts.",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"regions", "age-groups", "diagnoses"},
	Run: func(cmd *cobra.Command, args []string) {
		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)

		switch args[0] {
		case "regions":
			t.AppendHeader(table.Row{"Código", "Região"})
			for _, region := range tabnet.Regions {
				t.AppendRow(table.Row{region.Code, region.Name})
			}

		case "age-groups":
			t.AppendHeader(table.Row{"Faixa etária"})
			for _, label := range tabnet.AgeGroupLabels() {
				t.AppendRow(table.Row{label})
			}

		case "diagnoses":
			codes := tabnet.DiagnosisCodes
			if *catalogSearch != "" {
				codes = icd.Search(*catalogSearch)
			}
			t.AppendHeader(table.Row{"Código", "Descrição"})
			for _, code := range codes {
				t.AppendRow(table.Row{code, icd.Describe(code)})
			}

		default:
			fmt.Fprintf(os.Stderr, "unknown catalog %q\n", args[0])
			os.Exit(1)
		}

		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}
