// Package saga runs ordered steps and undoes completed ones on failure.
package saga

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Step is one unit of work. Compensate may be nil.
type Step struct {
	Name       string
	Action     func(ctx context.Context) error
	Compensate func(ctx context.Context) error
}

// StepError reports the failed step and any compensation failures.
type StepError struct {
	Step             string
	Err              error
	CompensationErrs []error
}

func (e *StepError) Error() string {
	if len(e.CompensationErrs) == 0 {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s (compensation: %v)", e.Err.Error(), errors.Join(e.CompensationErrs...))
}

func (e *StepError) Unwrap() error { return e.Err }

type Saga struct {
	log   *zap.Logger
	steps []Step
}

func New(log *zap.Logger, steps ...Step) *Saga {
	if log == nil {
		log = zap.NewNop()
	}
	return &Saga{log: log, steps: steps}
}

// Run executes steps in order. When a step fails, the compensations of the
// steps that completed run once each in reverse order. Compensations are not
// cancelled with ctx.
func (s *Saga) Run(ctx context.Context) error {
	completed := make([]Step, 0, len(s.steps))
	for _, step := range s.steps {
		if err := step.Action(ctx); err != nil {
			stepErr := &StepError{Step: step.Name, Err: err}
			stepErr.CompensationErrs = s.compensate(context.WithoutCancel(ctx), completed)
			return stepErr
		}
		completed = append(completed, step)
	}
	return nil
}

func (s *Saga) compensate(ctx context.Context, completed []Step) []error {
	var errs []error
	for i := len(completed) - 1; i >= 0; i-- {
		step := completed[i]
		if step.Compensate == nil {
			continue
		}
		if err := step.Compensate(ctx); err != nil {
			s.log.Warn("compensation failed",
				zap.String("step", step.Name),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("%s: %w", step.Name, err))
		}
	}
	return errs
}
