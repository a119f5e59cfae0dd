package shard

import (
	"context"
	"errors"
	"fmt"

	"go-falcon-locations/internal/character/models"
	"go-falcon-locations/internal/locations/services"

	"github.com/google/uuid"
)

// Assignment is the account slice handed to a worker for one pass
type Assignment struct {
	Index    int
	Accounts []models.Character
}

// PassRunner executes one pass over a set of accounts
type PassRunner interface {
	RunPass(ctx context.Context, worker string, accounts []models.Character) services.PassReport
}

// Worker is an isolated unit running passes over the assignments it receives
type Worker struct {
	ID        string
	Index     int
	runner    PassRunner
	maxPasses int
}

// NewWorker creates a worker for slot index. maxPasses of zero means unlimited.
func NewWorker(index int, runner PassRunner, maxPasses int) *Worker {
	return &Worker{
		ID:        uuid.New().String(),
		Index:     index,
		runner:    runner,
		maxPasses: maxPasses,
	}
}

// Run consumes assignments until the channel closes, ctx ends, maxPasses is reached
// or a pass fails. A nil return is a clean exit.
func (w *Worker) Run(ctx context.Context, assignments <-chan Assignment, reports chan<- services.PassReport) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker %s panicked: %v", w.ID, r)
		}
	}()

	passes := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case assignment, ok := <-assignments:
			if !ok {
				return nil
			}

			report := w.runner.RunPass(ctx, w.ID, assignment.Accounts)
			report.WorkerID = w.ID
			report.Index = assignment.Index

			select {
			case reports <- report:
			case <-ctx.Done():
				return ctx.Err()
			}

			if report.Outcome == services.PassError {
				if report.Err == nil {
					return errors.New("pass failed")
				}
				return report.Err
			}

			passes++
			if w.maxPasses > 0 && passes >= w.maxPasses {
				return nil
			}
		}
	}
}
