// Package comps answers completions lookups: for one program code, which
// institutions awarded completions in each dataset year.
package comps

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/nicktill/ipedscomps/pkg/aggregate"
	"github.com/nicktill/ipedscomps/pkg/cache"
	"github.com/nicktill/ipedscomps/pkg/cip"
	"github.com/nicktill/ipedscomps/pkg/directory"
	"github.com/nicktill/ipedscomps/pkg/years"
)

// ErrMissingCIP is returned when a request carries no usable program code.
var ErrMissingCIP = errors.New("missing required query param: cip")

// Request is one lookup.
type Request struct {
	// CIP is the raw program code as supplied by the caller
	CIP string

	// AwLevel restricts results to one award level when non-nil
	AwLevel *int

	// Grouped breaks counts out by award level
	Grouped bool
}

// Recorder observes query outcomes.
type Recorder interface {
	RecordSuccess(elapsed time.Duration)
	RecordFailure(err error)
}

// Service runs lookups against the loaded dataset and caches their payloads.
type Service struct {
	dir        *directory.Directory
	reg        *years.Registry
	aggregator *aggregate.Aggregator
	cache      *cache.FIFO
	recorder   Recorder
	logger     *zap.SugaredLogger

	flight singleflight.Group
}

// Config wires a Service. Recorder and Logger are optional.
type Config struct {
	Directory  *directory.Directory
	Registry   *years.Registry
	Aggregator *aggregate.Aggregator
	Cache      *cache.FIFO
	Recorder   Recorder
	Logger     *zap.SugaredLogger
}

// NewService creates a Service.
func NewService(cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Service{
		dir:        cfg.Directory,
		reg:        cfg.Registry,
		aggregator: cfg.Aggregator,
		cache:      cfg.Cache,
		recorder:   cfg.Recorder,
		logger:     logger,
	}
}

// Health reports the registered years and the directory size.
func (s *Service) Health() Health {
	return Health{
		OK:                 true,
		Years:              s.reg.Years(),
		InstitutionsLoaded: s.dir.Len(),
	}
}

// Lookup returns the encoded JSON payload for req.
//
// Payloads are served from the cache when present, so repeated lookups
// return identical bytes. On a miss every registered year is scanned;
// concurrent misses for the same key share one scan. Failed or cancelled
// lookups are never cached.
func (s *Service) Lookup(ctx context.Context, req Request) ([]byte, error) {
	if strings.TrimSpace(req.CIP) == "" {
		return nil, ErrMissingCIP
	}
	code := cip.Normalize(req.CIP)
	if code == "" {
		return nil, ErrMissingCIP
	}

	key := cache.Key{Code: code, AwLevel: req.AwLevel, Grouped: req.Grouped}
	if payload, ok := s.cache.Get(ctx, key); ok {
		return payload, nil
	}

	for {
		ch := s.flight.DoChan(key.String(), func() (interface{}, error) {
			return s.build(ctx, key)
		})

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case res := <-ch:
			// A shared scan cancelled by its leader says nothing about this
			// caller; run again under our own context.
			if res.Err != nil && res.Shared && isCancellation(res.Err) && ctx.Err() == nil {
				continue
			}
			if res.Err != nil {
				return nil, res.Err
			}
			return res.Val.([]byte), nil
		}
	}
}

func (s *Service) build(ctx context.Context, key cache.Key) ([]byte, error) {
	start := time.Now()
	q := aggregate.Query{Code: key.Code, AwLevel: key.AwLevel, GroupByAward: key.Grouped}

	acc, err := s.aggregator.Aggregate(ctx, s.reg, q)
	if err != nil {
		if !isCancellation(err) {
			s.record(err, 0)
			s.logger.Errorw("Lookup failed", "key", key.String(), "error", err)
		}
		return nil, err
	}

	payload, err := s.encode(key, acc)
	if err != nil {
		s.record(err, 0)
		return nil, fmt.Errorf("failed to encode response: %w", err)
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err := s.cache.Put(ctx, key, payload); err != nil {
		s.logger.Warnw("Failed to cache response", "key", key.String(), "error", err)
	}

	elapsed := time.Since(start)
	s.record(nil, elapsed)
	s.logger.Infow("Lookup completed",
		"key", key.String(), "institutions", acc.Len(),
		"elapsed", elapsed.Round(time.Millisecond))
	return payload, nil
}

func (s *Service) encode(key cache.Key, acc *aggregate.Accumulator) ([]byte, error) {
	entries := acc.Entries()
	yrs := s.reg.Years()

	if key.Grouped {
		resp := GroupedResponse{
			CIP:     key.Code,
			AwLevel: key.AwLevel,
			Years:   yrs,
			Results: make([]GroupedResult, 0, len(entries)),
		}
		for _, e := range entries {
			resp.Results = append(resp.Results, groupedResult(s.dir, e))
		}
		return json.Marshal(resp)
	}

	resp := Response{
		CIP:     key.Code,
		AwLevel: key.AwLevel,
		Years:   yrs,
		Results: make([]Result, 0, len(entries)),
	}
	for _, e := range entries {
		resp.Results = append(resp.Results, flatResult(s.dir, e))
	}
	sort.SliceStable(resp.Results, func(i, j int) bool {
		return resp.Results[i].Total > resp.Results[j].Total
	})
	return json.Marshal(resp)
}

func (s *Service) record(err error, elapsed time.Duration) {
	if s.recorder == nil {
		return
	}
	if err != nil {
		s.recorder.RecordFailure(err)
		return
	}
	s.recorder.RecordSuccess(elapsed)
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
