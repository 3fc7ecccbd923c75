// Package demesim is the public entry point: run simulations from
// demes-style graph files, persist their results, and export trajectories.
package demesim

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"demesim/internal/demograph"
	"demesim/internal/model"
	"demesim/internal/sim"
	"demesim/internal/simconfig"
	"demesim/internal/stats"
	"demesim/internal/storage"
)

const (
	defaultDBPath     = "demesim.db"
	defaultExportsDir = "exports"
)

type Options struct {
	StoreKind  string
	DBPath     string
	ExportsDir string
}

type Client struct {
	store      storage.Store
	exportsDir string

	initOnce sync.Once
	initErr  error
}

type RunRequest struct {
	GraphPath  string
	ConfigPath string
	// RunID overrides the generated identifier, mainly for tests.
	RunID string
	// Seed overrides the config file's seed. With neither set, the run is
	// seeded from the wall clock and is not reproducible.
	Seed             *int64
	AncestryPolicy   string
	MigrantPlacement string
	Logf             func(format string, args ...any)
}

type RunSummary struct {
	RunID        string
	Seed         int64
	Horizon      int
	Populations  []string
	Warnings     []string
	Trajectories []stats.TrajectorySummary
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID        string
	CreatedAtUTC string
	GraphPath    string
	Seed         int64
	Horizon      int
	Populations  int
}

type HistoryRequest struct {
	RunID  string
	Latest bool
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID string
	Path  string
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:      store,
		exportsDir: exportsDir,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	if req.GraphPath == "" {
		return RunSummary{}, errors.New("graph path is required")
	}
	if err := c.ensureInit(ctx); err != nil {
		return RunSummary{}, err
	}

	graph, err := demograph.Load(req.GraphPath)
	if err != nil {
		return RunSummary{}, err
	}

	cfg := &simconfig.Config{WildType: "0"}
	if req.ConfigPath != "" {
		cfg, err = simconfig.Load(req.ConfigPath)
		if err != nil {
			return RunSummary{}, err
		}
	}

	seed := time.Now().UnixNano()
	switch {
	case req.Seed != nil:
		seed = *req.Seed
	case cfg.Seed != nil:
		seed = *cfg.Seed
	}

	engine, err := sim.New(engineConfig(graph, cfg, seed, req))
	if err != nil {
		return RunSummary{}, err
	}
	result, err := engine.Run(ctx)
	if err != nil {
		return RunSummary{}, err
	}

	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	populations := make([]string, 0, len(result.History))
	for name := range result.History {
		populations = append(populations, name)
	}
	sort.Strings(populations)

	histories := make([]model.PopulationHistory, 0, len(populations))
	for _, name := range populations {
		histories = append(histories, model.PopulationHistory{
			VersionedRecord: versionedRecord(),
			Population:      name,
			BirthGeneration: result.Births[name],
			Records:         result.History[name],
		})
	}

	run := model.RunRecord{
		VersionedRecord: versionedRecord(),
		ID:              runID,
		CreatedAtUTC:    time.Now().UTC().Format(time.RFC3339),
		GraphPath:       req.GraphPath,
		ConfigPath:      req.ConfigPath,
		Seed:            seed,
		Horizon:         result.Horizon,
		Populations:     populations,
		Warnings:        result.Warnings,
	}
	if err := c.store.SaveRun(ctx, run); err != nil {
		return RunSummary{}, err
	}
	if err := c.store.SaveHistory(ctx, runID, histories); err != nil {
		return RunSummary{}, err
	}

	return RunSummary{
		RunID:        runID,
		Seed:         seed,
		Horizon:      result.Horizon,
		Populations:  populations,
		Warnings:     result.Warnings,
		Trajectories: stats.Summarize(histories),
	}, nil
}

func (c *Client) Runs(ctx context.Context, req RunsRequest) ([]RunItem, error) {
	if err := c.ensureInit(ctx); err != nil {
		return nil, err
	}

	runs, err := c.store.ListRuns(ctx)
	if err != nil {
		return nil, err
	}
	if req.Limit > 0 && len(runs) > req.Limit {
		runs = runs[len(runs)-req.Limit:]
	}

	out := make([]RunItem, 0, len(runs))
	for _, run := range runs {
		out = append(out, RunItem{
			RunID:        run.ID,
			CreatedAtUTC: run.CreatedAtUTC,
			GraphPath:    run.GraphPath,
			Seed:         run.Seed,
			Horizon:      run.Horizon,
			Populations:  len(run.Populations),
		})
	}
	return out, nil
}

func (c *Client) History(ctx context.Context, req HistoryRequest) ([]model.PopulationHistory, error) {
	if err := c.ensureInit(ctx); err != nil {
		return nil, err
	}

	runID, err := c.resolveRunID(ctx, req.RunID, req.Latest)
	if err != nil {
		return nil, err
	}
	histories, ok, err := c.store.GetHistory(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("no history for run %s", runID)
	}
	return histories, nil
}

func (c *Client) Export(ctx context.Context, req ExportRequest) (ExportSummary, error) {
	if err := c.ensureInit(ctx); err != nil {
		return ExportSummary{}, err
	}

	runID, err := c.resolveRunID(ctx, req.RunID, req.Latest)
	if err != nil {
		return ExportSummary{}, err
	}
	histories, ok, err := c.store.GetHistory(ctx, runID)
	if err != nil {
		return ExportSummary{}, err
	}
	if !ok {
		return ExportSummary{}, fmt.Errorf("no history for run %s", runID)
	}

	outDir := req.OutDir
	if outDir == "" {
		outDir = c.exportsDir
	}
	path, err := stats.WriteHistoryCSV(outDir, runID, histories)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: runID, Path: path}, nil
}

func (c *Client) ensureInit(ctx context.Context) error {
	c.initOnce.Do(func() {
		c.initErr = c.store.Init(ctx)
	})
	return c.initErr
}

func (c *Client) resolveRunID(ctx context.Context, runID string, latest bool) (string, error) {
	if runID != "" {
		return runID, nil
	}
	if !latest {
		return "", errors.New("a run id or --latest is required")
	}
	runs, err := c.store.ListRuns(ctx)
	if err != nil {
		return "", err
	}
	if len(runs) == 0 {
		return "", errors.New("no runs recorded")
	}
	return runs[len(runs)-1].ID, nil
}

func engineConfig(graph *demograph.Graph, cfg *simconfig.Config, seed int64, req RunRequest) sim.Config {
	registry := sim.RegistryConfig{
		Alleles:               cfg.Alleles,
		WildType:              cfg.WildType,
		SelectionCoefficients: cfg.SelectionCoefficients,
	}
	if cfg.InitialFrequency != nil {
		freq := &sim.InitialFrequency{Scalar: cfg.InitialFrequency.Scalar}
		for _, allele := range cfg.InitialFrequency.ByAlleleOrder {
			freq.Alleles = append(freq.Alleles, allele)
			freq.Weights = append(freq.Weights, cfg.InitialFrequency.ByAllele[allele])
		}
		registry.InitialFrequency = freq
	}
	for _, entry := range cfg.NewAlleles {
		registry.Introductions = append(registry.Introductions, sim.Introduction{
			Allele:           entry.Allele,
			Population:       entry.Population,
			StartTime:        entry.StartTime,
			InitialFrequency: entry.InitialFrequency,
		})
	}

	return sim.Config{
		Graph:          graph,
		Registry:       registry,
		MutationRate:   cfg.MutationRate,
		Seed:           seed,
		AncestryPolicy: sim.AncestrySourcePolicy(req.AncestryPolicy),
		Placement:      sim.MigrantPlacement(req.MigrantPlacement),
		Logf:           req.Logf,
	}
}

func versionedRecord() model.VersionedRecord {
	return model.VersionedRecord{
		SchemaVersion: storage.CurrentSchemaVersion,
		CodecVersion:  storage.CurrentCodecVersion,
	}
}
