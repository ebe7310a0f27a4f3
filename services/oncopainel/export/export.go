// Package export snapshots one year of panel data into a sqlite
// database. The database is a write-only sink, nothing in the scraper
// ever reads it back.
package export

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"time"

	"oncopainel-backend/lib/scrapers/tabnet"
	"oncopainel-backend/lib/telemetry"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = telemetry.Tracer("oncopainel.services.oncopainel.export")

//go:embed schema.sql
var Schema string

// the three sex categories a snapshot covers
var sexes = []string{"ALL", "M", "F"}

type Exporter struct {
	db     *sql.DB
	client *tabnet.Client
}

func NewExporter(db *sql.DB, client *tabnet.Client) Exporter {
	return Exporter{db: db, client: client}
}

type Options struct {
	Year       int
	Parallel   bool
	MaxWorkers int
}

// Run fetches region totals, the age-group batch and the diagnosis
// batch for every sex category and writes them all. Rows for the same
// (year, sex) are replaced, re-running an export refreshes the
// snapshot in place.
func (e Exporter) Run(ctx context.Context, opts Options) error {
	ctx, span := tracer.Start(ctx, "exporter:Run")
	defer span.End()
	span.SetAttributes(attribute.Int("year", opts.Year))

	start := time.Now()

	for _, sex := range sexes {
		err := e.exportSex(ctx, opts, sex)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "export failed")
			return fmt.Errorf("export year %d sex %s: %w", opts.Year, sex, err)
		}
	}

	slog.InfoContext(ctx, "export finished",
		"year", opts.Year,
		"duration", time.Since(start),
	)
	return nil
}

func (e Exporter) exportSex(ctx context.Context, opts Options, sex string) error {
	totals, err := e.client.QueryRegionTotals(ctx, opts.Year, sex, "")
	if err != nil {
		return err
	}
	err = e.writeRegionTotals(ctx, opts.Year, sex, totals)
	if err != nil {
		return err
	}

	ages, err := e.client.QueryAgeGroups(ctx, opts.Year, sex, "", opts.Parallel, opts.MaxWorkers)
	if err != nil {
		return err
	}
	err = e.writeFragments(ctx, opts.Year, sex, ages)
	if err != nil {
		return err
	}

	diagnoses, err := e.client.QueryDiagnoses(ctx, opts.Year, sex, "", opts.Parallel, opts.MaxWorkers)
	if err != nil {
		return err
	}
	return e.writeFragments(ctx, opts.Year, sex, diagnoses)
}

func (e Exporter) writeRegionTotals(ctx context.Context, year int, sex string, res *tabnet.Result) error {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for region, count := range res.Regions {
		_, err = tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO region_totals (year, sex, region, value, formatted)
			 VALUES (?, ?, ?, ?, ?)`,
			year, sex, region, count.Value, count.Formatted,
		)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (e Exporter) writeFragments(ctx context.Context, year int, sex string, res *tabnet.Result) error {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for label, frag := range res.Fragments {
		noData := 0
		raw := ""
		if frag == nil {
			noData = 1
		} else {
			raw = frag.Raw
		}
		_, err = tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO fragments (year, sex, mode, label, no_data, raw)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			year, sex, res.Mode.String(), label, noData, raw,
		)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}
