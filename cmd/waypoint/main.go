package main

import (
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/vango-dev/waypoint/internal/config"
	"github.com/vango-dev/waypoint/internal/errors"
	"github.com/vango-dev/waypoint/pkg/history"
	"github.com/vango-dev/waypoint/pkg/navigation"
	"github.com/vango-dev/waypoint/pkg/router"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const banner = `
  ╦ ╦┌─┐┬ ┬┌─┐┌─┐┬┌┐┌┌┬┐
  ║║║├─┤└┬┘├─┘│ │││││ │
  ╚╩╝┴ ┴ ┴ ┴  └─┘┴┘└┘ ┴
`

// cli holds the persistent flags and what PersistentPreRunE derives from
// them.
type cli struct {
	configPath string
	logLevel   string
	noColor    bool
	routes     []string

	color  bool
	logger *slog.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		errors.PrintError(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	rootCmd := &cobra.Command{
		Use:   "waypoint",
		Short: "Route matching and navigation for single-page applications",
		Long: `Waypoint resolves and navigates a route table the way a single-page
application router does.

  • Inspect the route table and resolve locations against it
  • Run navigation sequences through guards and redirects
  • Serve a browser history bridge with metrics

The route table comes from waypoint.yaml, waypoint.toml or waypoint.json
in the working directory, from --config, or from --route flags.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup(cmd)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&c.configPath, "config", "c", "", "Config file (default: waypoint.{yaml,toml,json} in the working directory)")
	flags.StringVar(&c.logLevel, "log-level", "warn", "Log level: debug, info, warn or error")
	flags.BoolVar(&c.noColor, "no-color", false, "Disable colored output")
	flags.StringArrayVarP(&c.routes, "route", "r", nil, "Add a route as pattern[=name] (repeatable)")

	rootCmd.AddCommand(
		routesCmd(c),
		resolveCmd(c),
		navigateCmd(c),
		serveCmd(c),
		versionCmd(),
	)
	return rootCmd
}

func (c *cli) setup(cmd *cobra.Command) error {
	c.color = !c.noColor && isTerminal(cmd.OutOrStdout())
	if c.color {
		errors.EnableColors()
	} else {
		errors.DisableColors()
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(c.logLevel)); err != nil {
		return errors.New("E140").
			WithDetail(fmt.Sprintf("unknown log level %q", c.logLevel)).
			WithSuggestion("Use debug, info, warn or error")
	}
	c.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	return nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// loadConfig reads --config, else a config file in the working directory,
// else the defaults, then appends the --route flags.
func (c *cli) loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	switch {
	case c.configPath != "":
		cfg, err = config.LoadFile(c.configPath)
	case config.Exists("."):
		cfg, err = config.Load(".")
	default:
		cfg = config.New()
	}
	if err != nil {
		return nil, err
	}

	for _, spec := range c.routes {
		pattern, name, _ := strings.Cut(spec, "=")
		cfg.Routes = append(cfg.Routes, config.RouteConfig{Path: pattern, Name: name})
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newEngine builds an engine over h from cfg.
func (c *cli) newEngine(cfg *config.Config, h history.History, extra ...navigation.Option) (*navigation.Engine, error) {
	opts, err := cfg.EngineOptions()
	if err != nil {
		return nil, err
	}
	opts = append(opts, navigation.WithHistory(h), navigation.WithLogger(c.logger))
	opts = append(opts, extra...)

	engine, err := navigation.NewEngine(opts...)
	if err != nil {
		return nil, routeError(err)
	}
	return engine, nil
}

// routeError maps route table errors to their codes.
func routeError(err error) error {
	code := "E110"
	switch {
	case stderrors.Is(err, router.ErrDuplicateRouteName):
		code = "E111"
	case stderrors.Is(err, router.ErrUnknownParent):
		code = "E112"
	}
	return errors.FromError(err, code)
}

// printBanner prints the Waypoint ASCII art banner.
func printBanner(w io.Writer) {
	fmt.Fprint(w, banner)
}

func (c *cli) paint(code, s string) string {
	if !c.color {
		return s
	}
	return "\033[" + code + "m" + s + "\033[0m"
}

// success prints a success message.
func (c *cli) success(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "%s %s\n", c.paint("32", "✓"), fmt.Sprintf(format, args...))
}

// info prints an info message.
func (c *cli) info(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "  %s\n", fmt.Sprintf(format, args...))
}

// warn prints a warning message.
func (c *cli) warn(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "%s %s\n", c.paint("33", "⚠"), fmt.Sprintf(format, args...))
}

// errorMsg prints an error message.
func (c *cli) errorMsg(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "%s %s\n", c.paint("31", "✗"), fmt.Sprintf(format, args...))
}
