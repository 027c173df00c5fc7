package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vango-dev/waypoint/internal/errors"
	"github.com/vango-dev/waypoint/pkg/history"
	"github.com/vango-dev/waypoint/pkg/route"
)

// resolution is the --json shape of a resolved location.
type resolution struct {
	FullPath string              `json:"fullPath"`
	Path     string              `json:"path"`
	Name     string              `json:"name,omitempty"`
	Params   map[string][]string `json:"params,omitempty"`
	Query    map[string][]string `json:"query,omitempty"`
	Hash     string              `json:"hash,omitempty"`
	Href     string              `json:"href"`
	Matched  []string            `json:"matched"`
	Meta     map[string]any      `json:"meta,omitempty"`
	Redirect string              `json:"redirect,omitempty"`
}

func newResolution(loc *route.Location) resolution {
	r := resolution{
		FullPath: loc.FullPath,
		Path:     loc.Path,
		Name:     loc.Name,
		Params:   loc.Params,
		Query:    loc.Query,
		Hash:     loc.Hash,
		Href:     loc.Href,
		Matched:  []string{},
		Meta:     loc.Meta,
	}
	for _, rec := range loc.Matched {
		r.Matched = append(r.Matched, rec.Path)
	}
	if leaf := loc.Leaf(); leaf != nil && leaf.Redirect != nil {
		r.Redirect = route.ExpandRedirect(leaf.Redirect, loc).String()
	}
	return r
}

func resolveCmd(c *cli) *cobra.Command {
	var (
		name   string
		params []string
		from   string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "resolve [location]",
		Short: "Resolve a location against the route table",
		Long: `Resolve a location string or a named route without navigating.

Redirects are reported, not followed. Relative locations resolve
against --from.

Examples:
  waypoint resolve "/users/7?tab=posts#top"
  waypoint resolve --name user --param id=7
  waypoint resolve --from /users/7 posts --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var raw route.RawLocation
			switch {
			case len(args) == 1:
				raw = route.ParsePath(args[0])
			case name != "":
				raw = route.RawLocation{Name: name}
			default:
				return errors.New("E140").
					WithDetail("resolve needs a location or --name").
					WithExample("waypoint resolve /users/7")
			}
			if len(params) > 0 {
				p, err := parseParams(params)
				if err != nil {
					return err
				}
				raw.Params = p
			}

			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			engine, err := c.newEngine(cfg, history.NewMemory(cfg.MemoryOptions()...))
			if err != nil {
				return err
			}
			defer engine.Destroy()

			var current *route.Location
			if from != "" {
				current, err = engine.Resolve(route.ParsePath(from), route.Start())
				if err != nil {
					return errors.FromError(err, "E120").WithDetail("--from " + from)
				}
			}
			loc, err := engine.Resolve(raw, current)
			if err != nil {
				return errors.FromError(err, "E120").WithDetail(raw.String())
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(newResolution(loc))
			}
			c.printLocation(out, newResolution(loc))
			return nil
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "Resolve the route with this name")
	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "Param as key=value (repeatable)")
	cmd.Flags().StringVar(&from, "from", "", "Current location for relative targets and param reuse")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")

	return cmd
}

func parseParams(pairs []string) (route.Params, error) {
	p := route.Params{}
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || k == "" {
			return nil, errors.New("E140").
				WithDetail(fmt.Sprintf("param %q is not key=value", pair)).
				WithExample("--param id=7")
		}
		p[k] = append(p[k], v)
	}
	return p, nil
}

func (c *cli) printLocation(w io.Writer, r resolution) {
	if len(r.Matched) == 0 {
		c.warn(w, "%s matches no route", r.FullPath)
	} else {
		c.success(w, "%s", r.FullPath)
	}
	if r.Name != "" {
		c.info(w, "name:     %s", r.Name)
	}
	for _, k := range sortedKeys(r.Params) {
		c.info(w, "param:    %s = %s", k, strings.Join(r.Params[k], ", "))
	}
	for _, k := range sortedKeys(r.Query) {
		c.info(w, "query:    %s = %s", k, strings.Join(r.Query[k], ", "))
	}
	if r.Hash != "" {
		c.info(w, "hash:     %s", r.Hash)
	}
	if len(r.Matched) > 0 {
		c.info(w, "matched:  %s", strings.Join(r.Matched, " > "))
	}
	metaKeys := make([]string, 0, len(r.Meta))
	for k := range r.Meta {
		metaKeys = append(metaKeys, k)
	}
	sort.Strings(metaKeys)
	for _, k := range metaKeys {
		c.info(w, "meta:     %s = %v", k, r.Meta[k])
	}
	c.info(w, "href:     %s", r.Href)
	if r.Redirect != "" {
		c.info(w, "redirect: %s", r.Redirect)
	}
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
