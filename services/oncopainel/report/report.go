// Package report renders a Markdown summary of one year of panel
// data, region totals broken down by sex category.
package report

import (
	"context"
	"fmt"
	"io"
	"time"

	"oncopainel-backend/lib/scrapers/tabnet"
	"oncopainel-backend/lib/telemetry"
	"oncopainel-backend/lib/timezone"

	"github.com/nao1215/markdown"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = telemetry.Tracer("oncopainel.services.oncopainel.report")

type YearSummary struct {
	Year        int
	GeneratedAt time.Time
	// sex category -> region name -> count
	Totals map[string]map[string]tabnet.RegionCount
}

// Collect fetches the region totals for all three sex categories.
func Collect(ctx context.Context, client *tabnet.Client, year int) (*YearSummary, error) {
	ctx, span := tracer.Start(ctx, "report:Collect")
	defer span.End()
	span.SetAttributes(attribute.Int("year", year))

	summary := &YearSummary{
		Year:        year,
		GeneratedAt: timezone.Now(),
		Totals:      map[string]map[string]tabnet.RegionCount{},
	}
	for _, sex := range []string{"ALL", "M", "F"} {
		res, err := client.QueryRegionTotals(ctx, year, sex, "")
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "region totals fetch failed")
			return nil, fmt.Errorf("collect year %d sex %s: %w", year, sex, err)
		}
		summary.Totals[sex] = res.Regions
	}
	return summary, nil
}

// Write renders the summary as a Markdown document.
func Write(w io.Writer, summary *YearSummary) error {
	md := markdown.NewMarkdown(w)

	md.H1(fmt.Sprintf("Painel Oncológico – %d", summary.Year))
	md.PlainText("")
	md.PlainTextf(
		"Casos registrados por região e sexo. Gerado em %s.",
		summary.GeneratedAt.Format("02/01/2006 15:04"),
	)
	md.PlainText("")

	md.H2("Casos por região")
	md.PlainText("")

	rows := make([][]string, 0, len(tabnet.Regions)+1)
	for _, region := range tabnet.Regions {
		rows = append(rows, summaryRow(summary, region.Name))
	}
	rows = append(rows, summaryRow(summary, tabnet.TotalLabel))

	md.Table(markdown.TableSet{
		Header: []string{"Região", "Todos", "Masculino", "Feminino"},
		Rows:   rows,
	})
	md.PlainText("")

	return md.Build()
}

func summaryRow(summary *YearSummary, region string) []string {
	row := []string{region}
	for _, sex := range []string{"ALL", "M", "F"} {
		count, ok := summary.Totals[sex][region]
		if !ok {
			row = append(row, "-")
			continue
		}
		row = append(row, count.Formatted)
	}
	if region == tabnet.TotalLabel {
		row[0] = "**" + row[0] + "**"
	}
	return row
}
