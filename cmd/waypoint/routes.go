package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vango-dev/waypoint/pkg/history"
)

func routesCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "Print the route table",
		Long: `Print the route table as the matcher sees it: children indented
under their parents, aliases listed as their own patterns.

Examples:
  waypoint routes
  waypoint routes -r /users/:id=user -r /about`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			engine, err := c.newEngine(cfg, history.NewMemory(cfg.MemoryOptions()...))
			if err != nil {
				return err
			}
			defer engine.Destroy()

			out := cmd.OutOrStdout()
			records := engine.GetRoutes()
			if len(records) == 0 {
				c.warn(out, "No routes configured")
				return nil
			}
			for _, line := range strings.Split(strings.TrimRight(engine.Matcher().Describe(), "\n"), "\n") {
				c.info(out, "%s", line)
			}
			fmt.Fprintln(out)
			c.success(out, "%d routes", len(records))
			return nil
		},
	}
}
