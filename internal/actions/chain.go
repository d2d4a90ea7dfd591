package actions

import (
	"context"
	"fmt"

	"github.com/amaumene/torboxarr/internal/models"
	"github.com/amaumene/torboxarr/internal/status"
	"github.com/amaumene/torboxarr/internal/utils"
	"github.com/sirupsen/logrus"
)

// Stage is the position of a plan in the organization state machine
type Stage string

const (
	StageEntering     Stage = "entering"
	StageTransferring Stage = "transferring"
	StageExiting      Stage = "exiting"
	StageDone         Stage = "done"
	StageError        Stage = "error"
)

// EntryHandler may rewrite where the files of a plan go
type EntryHandler interface {
	Name() string
	Applies(plan Plan) bool
	Enter(ctx context.Context, plan Plan) (Plan, error)
}

// ExitHandler runs once files are transferred
type ExitHandler interface {
	Name() string
	Applies(plan Plan) bool
	Exit(ctx context.Context, plan Plan) error
}

// Result is the outcome of one chain run
type Result struct {
	Stage Stage
	Plan  Plan
	Err   error
}

// Chain runs entry handlers, the transfer and exit handlers for one download
type Chain struct {
	entry     []EntryHandler
	exit      []ExitHandler
	transfer  *Transfer
	rootLocks *utils.KeyedMutex
	recorder  *status.Recorder
	logger    *logrus.Logger
}

// NewChain builds a chain. Handlers run in the given order.
func NewChain(entry []EntryHandler, transfer *Transfer, exit []ExitHandler, recorder *status.Recorder, logger *logrus.Logger) *Chain {
	return &Chain{
		entry:     entry,
		exit:      exit,
		transfer:  transfer,
		rootLocks: utils.NewKeyedMutex(),
		recorder:  recorder,
		logger:    logger,
	}
}

// Run walks a plan through every stage. Failures while entering or
// transferring stop the run before the exit handlers.
func (c *Chain) Run(ctx context.Context, plan Plan) Result {
	log := c.logger.WithFields(logrus.Fields{
		"download_id": plan.Download.ID,
		"category":    plan.Category.Name,
		"action":      plan.Category.Action,
	})

	if plan.Category.Action != models.ActionNothing {
		var err error
		plan, err = c.enter(ctx, plan)
		if err != nil {
			c.recorder.ActionError(plan.Download, fmt.Sprintf("Organization failed: %v", err))
			return Result{Stage: StageError, Plan: plan, Err: err}
		}
	}

	log.WithField("target", plan.TargetDir).Debug("Transferring files")
	if err := c.transfer.Run(ctx, plan); err != nil {
		c.recorder.ActionError(plan.Download, fmt.Sprintf("Transfer failed: %v", err))
		return Result{Stage: StageError, Plan: plan, Err: err}
	}

	for _, handler := range c.exit {
		if !handler.Applies(plan) {
			continue
		}
		if err := handler.Exit(ctx, plan); err != nil {
			c.recorder.ActionError(plan.Download, fmt.Sprintf("%s failed: %v", handler.Name(), err))
			return Result{Stage: StageError, Plan: plan, Err: err}
		}
	}

	return Result{Stage: StageDone, Plan: plan}
}

// enter holds the category root lock so two runs never both decide to
// create the same library folder
func (c *Chain) enter(ctx context.Context, plan Plan) (Plan, error) {
	unlock := c.rootLocks.Lock(plan.Category.TargetDir)
	defer unlock()

	for _, handler := range c.entry {
		if err := ctx.Err(); err != nil {
			return plan, err
		}
		if !handler.Applies(plan) {
			continue
		}
		next, err := handler.Enter(ctx, plan)
		if err != nil {
			return plan, fmt.Errorf("%s: %w", handler.Name(), err)
		}
		plan = next
	}
	return plan, nil
}
