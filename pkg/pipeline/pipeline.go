package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/codeready-toolchain/kgraph-pipeline/pkg/activity"
	"github.com/codeready-toolchain/kgraph-pipeline/pkg/store"
)

// ErrNoObjects is an InputError: the orchestrator was asked
// to run against an empty object set.
var ErrNoObjects = errors.New("pipeline: no canonical objects to process")

// Result is the structured outcome of one Run: success/error,
// duration, stats, plus the config name and timestamp for reporting.
type Result struct {
	Success    bool
	Config     string // experiment name, for a human-readable summary
	DurationMs float64
	Timestamp  time.Time
	Stats      Stats
	Error      error
}

// Pipeline is an ordered, mutable list of stages.
type Pipeline struct {
	stages []Stage
	hooks  Hooks
	logger *activity.Logger
}

// New constructs an empty Pipeline. hooks may be the zero value.
func New(st store.Store, hooks Hooks) *Pipeline {
	return &Pipeline{hooks: hooks, logger: activity.New(st)}
}

// AddStage appends a stage, or inserts it at index when index is
// non-negative and within range.
func (p *Pipeline) AddStage(s Stage, index int) {
	if index < 0 || index > len(p.stages) {
		p.stages = append(p.stages, s)
		return
	}
	p.stages = append(p.stages[:index:index], append([]Stage{s}, p.stages[index:]...)...)
}

// RemoveStage removes the first stage with the given name, if present.
func (p *Pipeline) RemoveStage(name string) {
	for i, s := range p.stages {
		if s.Name() == name {
			p.stages = append(p.stages[:i], p.stages[i+1:]...)
			return
		}
	}
}

// Run executes every stage in order against pc, honoring ShouldRun,
// firing lifecycle hooks, and handling cancellation/failure. If pc was
// constructed without an object set, Run loads one from pc.Store before
// failing with ErrNoObjects.
func (p *Pipeline) Run(ctx context.Context, pc *Context) Result {
	start := time.Now()

	if len(pc.Objects) == 0 && pc.Store != nil {
		objects, err := pc.Store.SearchCanonicalObjects(ctx, store.ObjectFilter{}, 0)
		if err != nil {
			return p.fail(ctx, pc, start, fmt.Errorf("pipeline: loading canonical objects from store: %w", err))
		}
		pc.Objects = objects
	}

	if len(pc.Objects) == 0 {
		return p.fail(ctx, pc, start, ErrNoObjects)
	}

	if pc.Config.Validation.AutoSaveExperiment {
		configJSON, err := json.Marshal(pc.Config)
		if err != nil {
			slog.Warn("pipeline: failed to marshal config for experiment row, continuing without it", "error", err)
			configJSON = []byte("{}")
		}
		id, err := pc.Store.UpsertExperiment(ctx, store.ExperimentUpsert{
			Name:        pc.Config.Name,
			Description: pc.Config.Description,
			ConfigJSON:  string(configJSON),
			IsBaseline:  pc.Config.Metadata.Baseline,
			PaperIDs:    pc.Config.Metadata.PaperIDs,
			GitCommit:   pc.Config.Metadata.GitCommit,
			Status:      "running",
		})
		if err != nil {
			return p.fail(ctx, pc, start, fmt.Errorf("pipeline: upserting experiment row: %w", err))
		}
		pc.ExperimentID = &id
	}

	for _, stage := range p.stages {
		if err := ctx.Err(); err != nil {
			return p.cancel(ctx, pc, start, err)
		}

		if !stage.ShouldRun(pc) {
			continue
		}

		stageStart := time.Now()
		p.hooks.fireStart(stage)

		err := stage.Execute(ctx, pc)
		durationMs := float64(time.Since(stageStart).Microseconds()) / 1000.0

		if err != nil {
			p.hooks.fireError(stage, durationMs, err)
			return p.fail(ctx, pc, start, fmt.Errorf("stage %q failed: %w", stage.Name(), err))
		}
		p.hooks.fireComplete(stage, durationMs)
	}

	return p.succeed(ctx, pc, start)
}

func (p *Pipeline) succeed(ctx context.Context, pc *Context, start time.Time) Result {
	durationMs := float64(time.Since(start).Microseconds()) / 1000.0

	if pc.ExperimentID != nil {
		now := time.Now()
		if err := pc.Store.UpdateExperimentStatus(ctx, *pc.ExperimentID, "completed", &now); err != nil {
			slog.Warn("pipeline: failed to mark experiment completed, continuing", "error", err)
		}
		for _, row := range activity.BuildExperimentResults(*pc.ExperimentID, pc.Stats.Validation, pc.Stats.RetrievalTimeMs) {
			if err := pc.Store.UpsertExperimentResult(ctx, row); err != nil {
				slog.Warn("pipeline: failed to upsert experiment result, continuing", "scenario", row.Scenario, "error", err)
			}
		}
	}
	p.logger.RecordStageCompleted(ctx, pc.ExperimentID, durationMs)

	return Result{
		Success:    true,
		Config:     pc.Config.Name,
		DurationMs: durationMs,
		Timestamp:  time.Now(),
		Stats:      pc.Stats,
	}
}

func (p *Pipeline) fail(ctx context.Context, pc *Context, start time.Time, err error) Result {
	durationMs := float64(time.Since(start).Microseconds()) / 1000.0
	p.markFailed(ctx, pc, durationMs, err.Error())
	return Result{
		Success:    false,
		Config:     pc.Config.Name,
		DurationMs: durationMs,
		Timestamp:  time.Now(),
		Stats:      pc.Stats,
		Error:      err,
	}
}

func (p *Pipeline) cancel(ctx context.Context, pc *Context, start time.Time, cancelErr error) Result {
	durationMs := float64(time.Since(start).Microseconds()) / 1000.0
	// Use a background context for cleanup writes: ctx is already
	// cancelled, but the failure record must still land.
	p.markFailed(context.Background(), pc, durationMs, "cancelled")
	return Result{
		Success:    false,
		Config:     pc.Config.Name,
		DurationMs: durationMs,
		Timestamp:  time.Now(),
		Stats:      pc.Stats,
		Error:      fmt.Errorf("pipeline: run cancelled: %w", cancelErr),
	}
}

func (p *Pipeline) markFailed(ctx context.Context, pc *Context, durationMs float64, reason string) {
	if pc.ExperimentID != nil {
		if err := pc.Store.UpdateExperimentStatus(ctx, *pc.ExperimentID, "failed", nil); err != nil {
			slog.Warn("pipeline: failed to mark experiment failed, continuing", "error", err)
		}
	}
	p.logger.RecordStageFailed(ctx, pc.ExperimentID, reason, durationMs)
}
