package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/fwojciec/flatfinder"
	"github.com/fwojciec/flatfinder/pipeline"
)

// Run executes the watch command until the context is canceled.
func (c *WatchCmd) Run(deps *Dependencies) error {
	policy, err := pipeline.ParsePaginationPolicy(c.Pagination)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", flatfinder.ErrorMessage(err))
		return err
	}

	pipelines, err := deps.pipelines(policy)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", flatfinder.ErrorMessage(err))
		return err
	}

	interval := c.Interval
	if interval <= 0 {
		interval = deps.Interval
	}

	s := &pipeline.Scheduler{
		Interval: interval,
		Logger:   deps.Logger,
	}
	if err := s.Watch(deps.Ctx, pipelines); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
