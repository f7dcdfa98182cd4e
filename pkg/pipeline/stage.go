package pipeline

import "context"

// Stage is one named step of a Pipeline.
type Stage interface {
	Name() string
	Description() string
	// ShouldRun reports whether this stage applies to the given Context.
	// The orchestrator calls it before every stage and skips the stage
	// when it returns false.
	ShouldRun(pc *Context) bool
	Execute(ctx context.Context, pc *Context) error
}

// Hooks are optional lifecycle callbacks the orchestrator invokes around
// each stage; a zero-value Hooks is a valid no-op.
type Hooks struct {
	OnStageStart    func(stage Stage)
	OnStageComplete func(stage Stage, durationMs float64)
	OnStageError    func(stage Stage, durationMs float64, err error)
}

func (h Hooks) fireStart(s Stage) {
	if h.OnStageStart != nil {
		h.OnStageStart(s)
	}
}

func (h Hooks) fireComplete(s Stage, durationMs float64) {
	if h.OnStageComplete != nil {
		h.OnStageComplete(s, durationMs)
	}
}

func (h Hooks) fireError(s Stage, durationMs float64, err error) {
	if h.OnStageError != nil {
		h.OnStageError(s, durationMs, err)
	}
}
