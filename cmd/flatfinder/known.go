package main

import (
	"fmt"
	"time"

	"github.com/fwojciec/flatfinder"
)

// Run executes the known command.
func (c *KnownCmd) Run(deps *Dependencies) error {
	if c.Source == "" {
		return c.listSources(deps)
	}

	if deps.KnownListings != nil {
		listings, err := deps.KnownListings.FindKnownListings(deps.Ctx, flatfinder.KnownListingFilter{Source: &c.Source})
		if err != nil {
			fmt.Fprintf(deps.Stderr, "error: %s\n", flatfinder.ErrorMessage(err))
			return err
		}
		if len(listings) == 0 {
			fmt.Fprintf(deps.Stdout, "No known listings for %s.\n", c.Source)
			return nil
		}
		for _, l := range listings {
			fmt.Fprintf(deps.Stdout, "%s  %s\n", l.ID, l.CreatedAt.Local().Format(time.DateTime))
		}
		return nil
	}

	ids, err := deps.Store.FindKnownIDs(deps.Ctx, c.Source)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", flatfinder.ErrorMessage(err))
		return err
	}
	if len(ids) == 0 {
		fmt.Fprintf(deps.Stdout, "No known listings for %s.\n", c.Source)
		return nil
	}
	for _, id := range ids {
		fmt.Fprintln(deps.Stdout, id)
	}
	return nil
}

func (c *KnownCmd) listSources(deps *Dependencies) error {
	sources, err := deps.StoredSources.FindSources(deps.Ctx)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", flatfinder.ErrorMessage(err))
		return err
	}
	if len(sources) == 0 {
		fmt.Fprintln(deps.Stdout, "No listings recorded yet. Use 'flatfinder run' to check sources.")
		return nil
	}
	for _, s := range sources {
		fmt.Fprintln(deps.Stdout, s)
	}
	return nil
}
