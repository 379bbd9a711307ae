// Package aggregate implements the streaming completions aggregator.
//
// For one normalized CIP code the aggregator reads every registered year's
// completions file exactly once, row by row, and sums matching rows per
// institution and year (optionally per award level). Files are never held in
// memory; only the accumulator for the matching rows is.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nicktill/ipedscomps/pkg/cip"
	"github.com/nicktill/ipedscomps/pkg/metrics"
	"github.com/nicktill/ipedscomps/pkg/tabular"
)

// cancelCheckInterval is how many rows are read between context checks.
const cancelCheckInterval = 1000

// ErrNoSource is returned when a registered year has no resource.
var ErrNoSource = errors.New("no completions resource registered")

// Query selects the rows to aggregate. Code must already be normalized.
type Query struct {
	Code string

	// AwLevel restricts rows to one award level when non-nil
	AwLevel *int

	// GroupByAward keys counts by award level instead of one flat group
	GroupByAward bool
}

// Stats describes one fold.
type Stats struct {
	Rows    int
	Matched int
}

// ScanError reports a year whose resource could not be opened or read.
type ScanError struct {
	Year   int
	Source string
	Err    error
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("scan of year %d (%s) failed: %v", e.Year, e.Source, e.Err)
}

func (e *ScanError) Unwrap() error {
	return e.Err
}

// Registry is the set of years the aggregator scans.
type Registry interface {
	Years() []int
	SourceFor(year int) (tabular.Source, bool)
}

// Fold reads rows and adds every row matching q into acc under year.
//
// Rows without an institution id are skipped, as are rows whose normalized
// code differs from q.Code and rows outside the award-level filter. Counts
// that are missing or non-numeric add 0; zero and negative counts are added
// as they are. A read error ends the fold and is returned.
func Fold(ctx context.Context, acc *Accumulator, year int, rows iter.Seq2[tabular.Row, error], q Query) (Stats, error) {
	var s Stats
	for row, err := range rows {
		if err != nil {
			return s, err
		}
		s.Rows++
		if s.Rows%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return s, err
			}
		}

		unitID := row.Get(tabular.UnitIDKeys)
		if unitID == "" {
			continue
		}
		if cip.Normalize(row.Get(tabular.CIPKeys)) != q.Code {
			continue
		}

		awLevel, hasLevel := tabular.ParseOptionalInt(row.Get(tabular.AwLevelKeys))
		if q.AwLevel != nil && (!hasLevel || awLevel != *q.AwLevel) {
			continue
		}

		group := AllLevels
		if q.GroupByAward {
			group = awLevel
		}

		acc.Add(unitID, group, year, tabular.ParseCount(row.Get(tabular.CountKeys)))
		s.Matched++
	}
	return s, ctx.Err()
}

// Aggregator scans every registered year for a query.
type Aggregator struct {
	parallelism int
	logger      *zap.SugaredLogger
}

// New creates an aggregator that scans up to parallelism years at once.
func New(parallelism int, logger *zap.SugaredLogger) *Aggregator {
	if parallelism < 1 {
		parallelism = 1
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Aggregator{parallelism: parallelism, logger: logger}
}

// Aggregate scans every year in reg and returns the combined accumulator.
//
// Each year is folded into its own accumulator, then the results are merged
// in ascending year order, so institution order does not depend on which scan
// finishes first. Any year that fails to open or read fails the whole query;
// no partial accumulator is returned.
func (a *Aggregator) Aggregate(ctx context.Context, reg Registry, q Query) (*Accumulator, error) {
	years := reg.Years()
	parts := make([]*Accumulator, len(years))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.parallelism)
	for i, year := range years {
		g.Go(func() error {
			acc, err := a.scanYear(gctx, reg, year, q)
			if err != nil {
				return err
			}
			parts[i] = acc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := NewAccumulator()
	for _, part := range parts {
		result.Merge(part)
	}
	return result, nil
}

func (a *Aggregator) scanYear(ctx context.Context, reg Registry, year int, q Query) (*Accumulator, error) {
	yearLabel := strconv.Itoa(year)
	src, ok := reg.SourceFor(year)
	if !ok {
		metrics.ScanErrors.WithLabelValues(yearLabel).Inc()
		return nil, &ScanError{Year: year, Source: "<none>", Err: ErrNoSource}
	}

	start := time.Now()
	rc, err := src.Open(ctx)
	if err != nil {
		metrics.ScanErrors.WithLabelValues(yearLabel).Inc()
		a.logger.Warnw("Failed to open completions resource", "year", year, "source", src.Name(), "error", err)
		return nil, &ScanError{Year: year, Source: src.Name(), Err: err}
	}
	defer rc.Close()

	acc := NewAccumulator()
	stats, err := Fold(ctx, acc, year, tabular.Scan(rc), q)
	metrics.RowsScanned.WithLabelValues(yearLabel).Add(float64(stats.Rows))
	metrics.RowsMatched.WithLabelValues(yearLabel).Add(float64(stats.Matched))
	metrics.ScanDuration.WithLabelValues(yearLabel).Observe(time.Since(start).Seconds())
	if err != nil {
		if ctx.Err() == nil {
			metrics.ScanErrors.WithLabelValues(yearLabel).Inc()
			a.logger.Warnw("Completions scan failed", "year", year, "source", src.Name(), "rows", stats.Rows, "error", err)
		}
		return nil, &ScanError{Year: year, Source: src.Name(), Err: err}
	}

	a.logger.Debugw("Scanned completions",
		"year", year, "cip", q.Code, "rows", stats.Rows, "matched", stats.Matched,
		"elapsed", time.Since(start).Round(time.Millisecond))
	return acc, nil
}
