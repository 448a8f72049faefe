package saga

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recorder(calls *[]string, name string, err error) func(context.Context) error {
	return func(context.Context) error {
		*calls = append(*calls, name)
		return err
	}
}

func TestRunCompensatesCompletedStepsInReverse(t *testing.T) {
	var calls []string
	boom := errors.New("boom")

	err := New(nil,
		Step{Name: "first", Action: recorder(&calls, "do:first", nil), Compensate: recorder(&calls, "undo:first", nil)},
		Step{Name: "second", Action: recorder(&calls, "do:second", nil)},
		Step{Name: "third", Action: recorder(&calls, "do:third", nil), Compensate: recorder(&calls, "undo:third", nil)},
		Step{Name: "fourth", Action: recorder(&calls, "do:fourth", boom), Compensate: recorder(&calls, "undo:fourth", nil)},
		Step{Name: "fifth", Action: recorder(&calls, "do:fifth", nil)},
	).Run(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, "fourth", stepErr.Step)
	assert.Empty(t, stepErr.CompensationErrs)
	assert.Equal(t, "boom", err.Error())

	assert.Equal(t, []string{
		"do:first", "do:second", "do:third", "do:fourth",
		"undo:third", "undo:first",
	}, calls)
}

func TestRunReportsCompensationFailures(t *testing.T) {
	var calls []string
	undoErr := errors.New("undo failed")

	err := New(nil,
		Step{Name: "first", Action: recorder(&calls, "do:first", nil), Compensate: recorder(&calls, "undo:first", undoErr)},
		Step{Name: "second", Action: recorder(&calls, "do:second", errors.New("boom"))},
	).Run(context.Background())

	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	require.Len(t, stepErr.CompensationErrs, 1)
	assert.ErrorIs(t, stepErr.CompensationErrs[0], undoErr)
	assert.Contains(t, err.Error(), "compensation")
}

func TestRunCompensatesWithCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var compensatedErr error

	err := New(nil,
		Step{
			Name:   "first",
			Action: func(context.Context) error { return nil },
			Compensate: func(ctx context.Context) error {
				compensatedErr = ctx.Err()
				return nil
			},
		},
		Step{
			Name: "second",
			Action: func(context.Context) error {
				cancel()
				return context.Canceled
			},
		},
	).Run(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	assert.NoError(t, compensatedErr)
}

func TestRunSucceeds(t *testing.T) {
	var calls []string
	err := New(nil,
		Step{Name: "only", Action: recorder(&calls, "do:only", nil), Compensate: recorder(&calls, "undo:only", nil)},
	).Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"do:only"}, calls)
}
