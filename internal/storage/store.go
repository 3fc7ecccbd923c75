package storage

import (
	"context"

	"demesim/internal/model"
)

// Store defines persistence operations for simulation runs and their
// per-population frequency histories.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run model.RunRecord) error
	GetRun(ctx context.Context, id string) (model.RunRecord, bool, error)
	ListRuns(ctx context.Context) ([]model.RunRecord, error)
	SaveHistory(ctx context.Context, runID string, histories []model.PopulationHistory) error
	GetHistory(ctx context.Context, runID string) ([]model.PopulationHistory, bool, error)
}
