package main

import (
	"fmt"

	"github.com/fwojciec/flatfinder"
	"github.com/fwojciec/flatfinder/pipeline"
)

// Run executes the run command. Failing sources are logged and do not
// fail the command.
func (c *RunCmd) Run(deps *Dependencies) error {
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

	found := pipeline.RunAll(deps.Ctx, pipelines)
	fmt.Fprintf(deps.Stdout, "%d new listing(s) from %d source(s)\n", len(found), len(pipelines))
	return nil
}
