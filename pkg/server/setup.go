package server

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/nicktill/ipedscomps/pkg/aggregate"
	"github.com/nicktill/ipedscomps/pkg/cache"
	"github.com/nicktill/ipedscomps/pkg/comps"
	"github.com/nicktill/ipedscomps/pkg/config"
	"github.com/nicktill/ipedscomps/pkg/directory"
	"github.com/nicktill/ipedscomps/pkg/export"
	"github.com/nicktill/ipedscomps/pkg/metrics"
	"github.com/nicktill/ipedscomps/pkg/server/monitor"
	"github.com/nicktill/ipedscomps/pkg/storage"
	"github.com/nicktill/ipedscomps/pkg/storage/badger"
	"github.com/nicktill/ipedscomps/pkg/storage/memory"
	"github.com/nicktill/ipedscomps/pkg/tabular"
	"github.com/nicktill/ipedscomps/pkg/years"
)

// Dataset is everything loaded from disk at startup.
type Dataset struct {
	Directory *directory.Directory
	Registry  *years.Registry

	// Files lists the directory file and every completions file
	Files []string
}

// LoadDataset loads the institution directory and builds the year registry.
// Any failure is fatal for the process.
func LoadDataset(ctx context.Context, cfg config.Config, logger *zap.SugaredLogger) (*Dataset, error) {
	dirPath := cfg.DirectoryPath()
	logger.Infow("Loading institution directory", "path", dirPath)
	dir, err := directory.Load(ctx, tabular.FileSource{Path: dirPath})
	if err != nil {
		return nil, err
	}
	logger.Infow("Institution directory loaded", "institutions", dir.Len())

	reg, err := cfg.Registry()
	if err != nil {
		return nil, fmt.Errorf("failed to build year registry: %w", err)
	}
	if reg.Len() == 0 {
		logger.Warnw("No completions files registered; lookups will return empty results",
			"data_dir", cfg.DataDir, "pattern", cfg.YearPattern)
	}

	files := []string{dirPath}
	for _, year := range reg.Years() {
		src, _ := reg.SourceFor(year)
		if fs, ok := src.(tabular.FileSource); ok {
			if _, err := os.Stat(fs.Path); err != nil {
				// Not fatal: the year fails per query until the file appears
				logger.Warnw("Completions file not readable", "year", year, "path", fs.Path, "error", err)
				continue
			}
			files = append(files, fs.Path)
		}
		logger.Infow("Registered completions year", "year", year, "source", src.Name())
	}

	metrics.DatasetYears.Set(float64(reg.Len()))
	metrics.DatasetInstitutions.Set(float64(dir.Len()))

	return &Dataset{Directory: dir, Registry: reg, Files: files}, nil
}

// InitializeStorage creates the cache payload backend.
func InitializeStorage(cfg config.Config, logger *zap.SugaredLogger) (storage.Storage, error) {
	if cfg.CacheBackend != "badger" {
		logger.Infow("Using in-memory cache storage")
		return memory.New(), nil
	}

	bcfg := badger.Config{
		Path:        cfg.CacheDir,
		InMemory:    cfg.CacheDir == "",
		MaxMemoryMB: cfg.CacheMaxMemory,
		Logger:      logger.Named("badger"),
	}
	if !bcfg.InMemory {
		if err := os.MkdirAll(cfg.CacheDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}
	logger.Infow("Initializing BadgerDB cache storage", "in_memory", bcfg.InMemory, "path", bcfg.Path)
	store, err := badger.New(bcfg)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// Components bundles the wired service graph.
type Components struct {
	Service        *comps.Service
	Cache          *cache.FIFO
	Comps          *comps.Handler
	Export         *export.Handler
	QueryMonitor   *monitor.QueryMonitor
	DatasetMonitor *monitor.DatasetMonitor
	Dataset        *Dataset
}

// InitializeComponents wires the lookup service and its handlers.
func InitializeComponents(cfg config.Config, ds *Dataset, store storage.Storage, logger *zap.SugaredLogger) *Components {
	queryMonitor := &monitor.QueryMonitor{}
	fifo := cache.NewFIFO(cfg.CacheSize, store, logger.Named("cache"))

	svc := comps.NewService(comps.Config{
		Directory:  ds.Directory,
		Registry:   ds.Registry,
		Aggregator: aggregate.New(cfg.ScanParallelism, logger.Named("aggregate")),
		Cache:      fifo,
		Recorder:   queryMonitor,
		Logger:     logger.Named("comps"),
	})
	logger.Infow("Lookup service ready",
		"cache_size", cfg.CacheSize, "scan_parallelism", cfg.ScanParallelism)

	return &Components{
		Service:        svc,
		Cache:          fifo,
		Comps:          comps.NewHandler(svc),
		Export:         export.NewHandler(svc),
		QueryMonitor:   queryMonitor,
		DatasetMonitor: monitor.NewDatasetMonitor(ds.Files),
		Dataset:        ds,
	}
}
