package storage

import (
	"context"
	"testing"

	"demesim/internal/model"
)

func versioned() model.VersionedRecord {
	return model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion}
}

func TestMemoryStoreRunRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	run := model.RunRecord{
		VersionedRecord: versioned(),
		ID:              "run-1",
		CreatedAtUTC:    "2026-08-24T10:00:00Z",
		GraphPath:       "graph.yaml",
		Seed:            42,
		Horizon:         100,
		Populations:     []string{"A", "B"},
	}
	if err := store.SaveRun(ctx, run); err != nil {
		t.Fatalf("save run: %v", err)
	}

	loaded, ok, err := store.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if !ok {
		t.Fatal("expected run-1")
	}
	if loaded.Seed != 42 || loaded.Horizon != 100 || len(loaded.Populations) != 2 {
		t.Fatalf("unexpected run loaded: %+v", loaded)
	}

	if _, ok, _ := store.GetRun(ctx, "missing"); ok {
		t.Fatal("unexpected hit for missing run")
	}
}

func TestMemoryStoreListRunsOrdered(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	for _, run := range []model.RunRecord{
		{VersionedRecord: versioned(), ID: "b", CreatedAtUTC: "2026-08-24T12:00:00Z"},
		{VersionedRecord: versioned(), ID: "a", CreatedAtUTC: "2026-08-24T11:00:00Z"},
		{VersionedRecord: versioned(), ID: "c", CreatedAtUTC: "2026-08-24T11:00:00Z"},
	} {
		if err := store.SaveRun(ctx, run); err != nil {
			t.Fatalf("save run %s: %v", run.ID, err)
		}
	}

	runs, err := store.ListRuns(ctx)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 3 || runs[0].ID != "a" || runs[1].ID != "c" || runs[2].ID != "b" {
		t.Fatalf("unexpected order: %+v", runs)
	}
}

func TestMemoryStoreHistoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	histories := []model.PopulationHistory{
		{
			VersionedRecord: versioned(),
			Population:      "A",
			BirthGeneration: 100,
			Records: []model.Frequencies{
				{"0": 0.5, "1": 0.5},
				{"0": 0.4, "1": 0.6},
			},
		},
	}
	if err := store.SaveHistory(ctx, "run-1", histories); err != nil {
		t.Fatalf("save history: %v", err)
	}

	loaded, ok, err := store.GetHistory(ctx, "run-1")
	if err != nil {
		t.Fatalf("get history: %v", err)
	}
	if !ok {
		t.Fatal("expected history for run-1")
	}
	if len(loaded) != 1 || loaded[0].Population != "A" || len(loaded[0].Records) != 2 {
		t.Fatalf("unexpected history loaded: %+v", loaded)
	}
	if loaded[0].Records[1]["1"] != 0.6 {
		t.Fatalf("unexpected record content: %+v", loaded[0].Records[1])
	}
}
