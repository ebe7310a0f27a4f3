package tabnet

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/antzucaro/matchr"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultMaxWorkers = 12
	// hard cap on batch parallelism, the upstream is a single legacy
	// CGI and does not appreciate being hammered
	MaxWorkersLimit = 32
)

// InvalidArgumentError means the caller passed a sex, age group or
// region outside the catalogs. No network request was made.
type InvalidArgumentError struct {
	Field      string
	Value      string
	Suggestion string
}

func (e *InvalidArgumentError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("invalid %s %q (did you mean %q?)", e.Field, e.Value, e.Suggestion)
	}
	return fmt.Sprintf("invalid %s %q", e.Field, e.Value)
}

// StatusError is a non-2xx upstream response. Label names the
// sub-query when the failure happened inside a batch.
type StatusError struct {
	Label      string
	StatusCode int
}

func (e *StatusError) Error() string {
	if e.Label != "" {
		return fmt.Sprintf("upstream returned status %d for %q", e.StatusCode, e.Label)
	}
	return fmt.Sprintf("upstream returned status %d", e.StatusCode)
}

type Mode int

const (
	ModeRegionTotals Mode = iota
	ModeAgeGroups
	ModeDiagnoses
)

func (m Mode) String() string {
	switch m {
	case ModeRegionTotals:
		return "region_totals"
	case ModeAgeGroups:
		return "age_groups"
	case ModeDiagnoses:
		return "diagnoses"
	}
	return "unknown"
}

type RegionCount struct {
	Value float64 `json:"v"`
	// brazilian digit grouping, e.g. "12.345"
	Formatted string `json:"f"`
}

// Fragment is the raw chart-data text of one sub-query. A nil
// *Fragment in a result map means the upstream reported no records
// for that label.
type Fragment struct {
	Raw string `json:"raw"`
}

func (f *Fragment) Rows() ([]ChartRow, error) {
	return parseChartRows(f.Raw)
}

// Result is tagged by Mode: region-totals queries populate Regions,
// the two batch modes populate Fragments (keyed by age-group label or
// diagnosis code).
type Result struct {
	Mode      Mode
	Regions   map[string]RegionCount
	Fragments map[string]*Fragment
}

// Query mirrors the panel's filter form. Diagnosis and AgeGroup are
// mutually exclusive breakdown selectors, Diagnosis wins when both
// are set; with neither the query is region totals filtered by Sex.
type Query struct {
	Year int
	// "ALL", "M" or "F" (case-insensitive), empty means "ALL"
	Sex       string
	AgeGroup  string
	Diagnosis string
	// narrows a region-totals result to {Region, Total}
	Region     string
	Parallel   bool
	MaxWorkers int
}

// Query is the single entry point dashboard consumers use. Breakdown
// precedence is strictly first-match: diagnosis code, then age group,
// then region totals.
func (c *Client) Query(ctx context.Context, q Query) (*Result, error) {
	ctx, span := tracer.Start(ctx, "client:Query")
	defer span.End()
	span.SetAttributes(attribute.Int("year", q.Year))

	maxWorkers := q.MaxWorkers
	if maxWorkers == 0 {
		maxWorkers = DefaultMaxWorkers
	}

	if q.Diagnosis != "" {
		return c.QueryDiagnoses(ctx, q.Year, q.Sex, q.Diagnosis, q.Parallel, maxWorkers)
	}
	if q.AgeGroup != "" {
		return c.QueryAgeGroups(ctx, q.Year, q.Sex, q.AgeGroup, q.Parallel, maxWorkers)
	}
	return c.QueryRegionTotals(ctx, q.Year, q.Sex, q.Region)
}

// QueryRegionTotals fetches per-region case counts for one sex
// category. Total is computed as the sum of the per-region values. A
// non-empty `region` narrows the result to {region, Total} without
// changing any value.
func (c *Client) QueryRegionTotals(ctx context.Context, year int, sex, region string) (*Result, error) {
	ctx, span := tracer.Start(ctx, "client:QueryRegionTotals")
	defer span.End()

	sexFilter, err := sexFilterFor(sex)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if region != "" && !isRegion(region) {
		err := &InvalidArgumentError{
			Field:      "region",
			Value:      region,
			Suggestion: closestMatch(region, RegionNames()),
		}
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	frag, err := c.roundTrip(ctx, "", regionsPayload(year, sexFilter))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "region totals fetch failed")
		return nil, err
	}

	regions := map[string]RegionCount{}
	var total float64
	if frag != nil {
		rows, err := frag.Rows()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "bad chart fragment")
			return nil, err
		}
		for _, row := range rows {
			// the upstream emits its own grand-total row, skip it and
			// recompute so the invariant Total == sum(regions) holds
			if row.RegionCode == 0 {
				continue
			}
			name := RegionName(row.RegionCode)
			if name == "" {
				name = row.Label
			}
			regions[name] = RegionCount{Value: row.Value, Formatted: formatCount(row.Value)}
			total += row.Value
		}
	}
	regions[TotalLabel] = RegionCount{Value: total, Formatted: formatCount(total)}

	if region != "" {
		regions = map[string]RegionCount{
			region:     regions[region],
			TotalLabel: regions[TotalLabel],
		}
	}

	return &Result{Mode: ModeRegionTotals, Regions: regions}, nil
}

// QueryAgeGroups fetches chart fragments by age group. An empty
// `label` runs the full 14-group catalog batch.
func (c *Client) QueryAgeGroups(ctx context.Context, year int, sex, label string, parallel bool, maxWorkers int) (*Result, error) {
	ctx, span := tracer.Start(ctx, "client:QueryAgeGroups")
	defer span.End()

	sexFilter, err := sexFilterFor(sex)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if label != "" {
		filter, ok := AgeGroupFilter(label)
		if !ok {
			err := &InvalidArgumentError{
				Field:      "age group",
				Value:      label,
				Suggestion: closestMatch(label, AgeGroupLabels()),
			}
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		frag, err := c.roundTrip(ctx, label, ageGroupPayload(year, filter, sexFilter))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "age group fetch failed")
			return nil, err
		}
		return &Result{
			Mode:      ModeAgeGroups,
			Fragments: map[string]*Fragment{label: frag},
		}, nil
	}

	items := make([]workItem, 0, len(AgeGroups))
	for _, g := range AgeGroups {
		items = append(items, workItem{
			label:   g.Label,
			payload: ageGroupPayload(year, g.Filter, sexFilter),
		})
	}
	frags, err := c.runBatch(ctx, items, parallel, maxWorkers)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "age group batch failed")
		return nil, err
	}
	return &Result{Mode: ModeAgeGroups, Fragments: frags}, nil
}

// QueryDiagnoses fetches chart fragments by detailed ICD-10 code. An
// empty `code` runs the full catalog batch. Codes are not validated,
// an unknown code simply tabulates to no records upstream.
func (c *Client) QueryDiagnoses(ctx context.Context, year int, sex, code string, parallel bool, maxWorkers int) (*Result, error) {
	ctx, span := tracer.Start(ctx, "client:QueryDiagnoses")
	defer span.End()

	sexFilter, err := sexFilterFor(sex)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if code != "" {
		frag, err := c.roundTrip(ctx, code, diagnosisPayload(year, code, sexFilter))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "diagnosis fetch failed")
			return nil, err
		}
		return &Result{
			Mode:      ModeDiagnoses,
			Fragments: map[string]*Fragment{code: frag},
		}, nil
	}

	items := make([]workItem, 0, len(DiagnosisCodes))
	for _, dc := range DiagnosisCodes {
		items = append(items, workItem{
			label:   dc,
			payload: diagnosisPayload(year, dc, sexFilter),
		})
	}
	frags, err := c.runBatch(ctx, items, parallel, maxWorkers)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "diagnosis batch failed")
		return nil, err
	}
	return &Result{Mode: ModeDiagnoses, Fragments: frags}, nil
}

type workItem struct {
	label   string
	payload string
}

// runBatch executes independent round trips either in catalog order
// or on a bounded goroutine pool. Completion order under parallelism
// is non-deterministic but the result is keyed by label, callers that
// need catalog order re-sort by label. Fail-fast: the first failed
// round trip aborts the batch and no partial map is returned.
func (c *Client) runBatch(ctx context.Context, items []workItem, parallel bool, maxWorkers int) (map[string]*Fragment, error) {
	ctx, span := tracer.Start(ctx, "client:runBatch")
	defer span.End()
	span.SetAttributes(
		attribute.Int("items", len(items)),
		attribute.Bool("parallel", parallel),
	)

	// handshake before any workers spawn so the cookie jar is settled
	// by the time requests go out concurrently
	if err := c.ensureSession(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "session handshake failed")
		return nil, err
	}

	out := make(map[string]*Fragment, len(items))

	if !parallel {
		for _, item := range items {
			frag, err := c.roundTrip(ctx, item.label, item.payload)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "batch aborted")
				return nil, err
			}
			out[item.label] = frag
		}
		return out, nil
	}

	if maxWorkers < 1 {
		maxWorkers = 1
	}
	if maxWorkers > MaxWorkersLimit {
		maxWorkers = MaxWorkersLimit
	}

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(maxWorkers)
	var mu sync.Mutex

	for _, item := range items {
		item := item
		group.Go(func() error {
			frag, err := c.roundTrip(ctx, item.label, item.payload)
			if err != nil {
				return err
			}
			mu.Lock()
			out[item.label] = frag
			mu.Unlock()
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "batch aborted")
		return nil, err
	}
	return out, nil
}

func sexFilterFor(sex string) (string, error) {
	if sex == "" {
		sex = "ALL"
	}
	filter, ok := sexFilters[strings.ToUpper(sex)]
	if !ok {
		return "", &InvalidArgumentError{Field: "sex", Value: sex}
	}
	return filter, nil
}

// "did you mean" helper for catalog validation errors
func closestMatch(value string, candidates []string) string {
	best := ""
	bestSimilarity := 0.7
	for _, candidate := range candidates {
		similarity := matchr.JaroWinkler(value, candidate, false)
		if similarity > bestSimilarity {
			best = candidate
			bestSimilarity = similarity
		}
	}
	return best
}

// FormatCount renders a count with brazilian digit grouping, e.g.
// 12345 -> "12.345".
func FormatCount(v float64) string {
	return formatCount(v)
}

// renders a count with brazilian digit grouping, e.g. 12345 -> "12.345"
func formatCount(v float64) string {
	digits := strconv.FormatFloat(v, 'f', 0, 64)
	if len(digits) <= 3 {
		return digits
	}
	var out []byte
	for i := 0; i < len(digits); i++ {
		if i > 0 && (len(digits)-i)%3 == 0 {
			out = append(out, '.')
		}
		out = append(out, digits[i])
	}
	return string(out)
}
