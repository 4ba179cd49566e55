package worker

import (
	"context"

	"github.com/alitto/pond/v2"
)

// Future holds the eventual result of a submitted task.
type Future struct {
	task pond.Task
	val  any
}

// Done is closed once the task has a result.
func (f *Future) Done() <-chan struct{} {
	return f.task.Done()
}

// Wait blocks until the task finishes or ctx is done. Abandoning the wait does
// not stop a task that is already running.
func (f *Future) Wait(ctx context.Context) (any, error) {
	select {
	case <-f.task.Done():
		if err := f.task.Wait(); err != nil {
			if poolErr := poolError(err); poolErr != nil {
				return nil, poolErr
			}
			return nil, err
		}
		return f.val, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
