package chain

import (
	"context"
	"fmt"

	"globule-detector/internal/logger"
	"globule-detector/internal/opencv/safe"
)

// Step transforms a Mat. Apply may return its input unchanged; any other
// result is owned by the chain from then on.
type Step interface {
	Apply(ctx context.Context, input *safe.Mat) (*safe.Mat, error)
	Name() string
}

type ProcessingChain struct {
	steps  []Step
	logger logger.Logger
}

func NewProcessingChain(log logger.Logger, steps ...Step) *ProcessingChain {
	return &ProcessingChain{
		steps:  steps,
		logger: logger.OrNoOp(log),
	}
}

// Execute runs every step in order. The caller keeps ownership of input and
// owns the returned Mat unless it is input itself.
func (pc *ProcessingChain) Execute(ctx context.Context, input *safe.Mat) (*safe.Mat, error) {
	current := input

	release := func() {
		if current != input {
			current.Close()
		}
	}

	for _, step := range pc.steps {
		select {
		case <-ctx.Done():
			release()
			return nil, ctx.Err()
		default:
		}

		result, err := step.Apply(ctx, current)
		if err != nil {
			release()
			return nil, fmt.Errorf("step %s failed: %w", step.Name(), err)
		}

		if result != current {
			release()
		}
		current = result

		pc.logger.Debug("ProcessingChain", "step complete", map[string]interface{}{
			"step": step.Name(),
			"rows": current.Rows(),
			"cols": current.Cols(),
		})
	}

	return current, nil
}

func (pc *ProcessingChain) AddStep(step Step) {
	pc.steps = append(pc.steps, step)
}

func (pc *ProcessingChain) InsertStep(index int, step Step) error {
	if index < 0 || index > len(pc.steps) {
		return fmt.Errorf("index out of range: %d", index)
	}

	pc.steps = append(pc.steps[:index], append([]Step{step}, pc.steps[index:]...)...)
	return nil
}

func (pc *ProcessingChain) RemoveStep(index int) error {
	if index < 0 || index >= len(pc.steps) {
		return fmt.Errorf("index out of range: %d", index)
	}

	pc.steps = append(pc.steps[:index], pc.steps[index+1:]...)
	return nil
}

func (pc *ProcessingChain) StepCount() int {
	return len(pc.steps)
}

func (pc *ProcessingChain) GetStepNames() []string {
	names := make([]string, len(pc.steps))
	for i, step := range pc.steps {
		names[i] = step.Name()
	}
	return names
}
