package main

import (
	"fmt"
	"strings"
)

// Run executes the sources command.
func (c *SourcesCmd) Run(deps *Dependencies) error {
	for _, s := range deps.Sources {
		var traits []string
		switch {
		case !s.Paginates():
			traits = append(traits, "single page")
		case s.MaxPages > 0:
			traits = append(traits, fmt.Sprintf("paginated (max %d pages)", s.MaxPages))
		default:
			traits = append(traits, "paginated")
		}
		if s.Render {
			traits = append(traits, "rendered")
		}
		fmt.Fprintf(deps.Stdout, "%s  %s  %s\n", s.Name, s.URL, strings.Join(traits, ", "))
	}
	return nil
}
