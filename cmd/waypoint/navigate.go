package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vango-dev/waypoint/internal/config"
	"github.com/vango-dev/waypoint/internal/errors"
	"github.com/vango-dev/waypoint/pkg/history"
	"github.com/vango-dev/waypoint/pkg/navigation"
	"github.com/vango-dev/waypoint/pkg/route"
	"github.com/vango-dev/waypoint/pkg/statestore"
)

func navigateCmd(c *cli) *cobra.Command {
	var (
		session   string
		stateSpec string
		replace   bool
		strict    bool
	)

	cmd := &cobra.Command{
		Use:   "navigate <location|back|forward>...",
		Short: "Run a navigation sequence over a memory history",
		Long: `Run navigations in order, starting from "/" or from a saved session,
and print where each one ended up. The words back and forward traverse
the history stack.

With --session the history stack is restored from the state store
before the first navigation and saved after every committed one.

Examples:
  waypoint navigate /users/7 /users/7/posts back
  waypoint navigate --session demo --state bolt:waypoint.db /about
  waypoint navigate --strict /admin`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			if stateSpec != "" {
				cfg.State.Store = stateSpec
			}
			return c.runNavigate(ctx, cmd.OutOrStdout(), cfg, args, navigateOptions{
				session: session,
				replace: replace,
				strict:  strict,
			})
		},
	}

	cmd.Flags().StringVarP(&session, "session", "s", "", "Restore and save the history stack under this id")
	cmd.Flags().StringVar(&stateSpec, "state", "", "State store: memory:, bolt:<path> or sqlite:<path> (default from config)")
	cmd.Flags().BoolVar(&replace, "replace", false, "Replace instead of push")
	cmd.Flags().BoolVar(&strict, "strict", false, "Exit with an error if any navigation fails")

	return cmd
}

type navigateOptions struct {
	session string
	replace bool
	strict  bool
}

func (c *cli) runNavigate(ctx context.Context, out io.Writer, cfg *config.Config, steps []string, opts navigateOptions) error {
	mem := history.NewMemory(append(cfg.MemoryOptions(), history.WithMemoryLogger(c.logger))...)

	var persister *statestore.Persister
	if opts.session != "" {
		store, err := cfg.OpenStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		persister = statestore.NewPersister(store, mem,
			statestore.WithID(opts.session),
			statestore.WithTTL(cfg.StateTTL()),
			statestore.WithLogger(c.logger),
		)
		restored, err := persister.Restore(ctx)
		if err != nil {
			return errors.New("E130").WithDetail(cfg.State.Store).Wrap(err)
		}
		if restored {
			c.info(out, "restored session %s at %s", opts.session, mem.Location())
		}
	}

	engine, err := c.newEngine(cfg, mem)
	if err != nil {
		return err
	}
	defer engine.Destroy()

	// Pop navigations report through OnError only.
	var popErr error
	engine.OnError(func(err error, to, from *route.Location) {
		popErr = err
	})

	failed := 0
	report := func(step string, err error) {
		if err != nil {
			failed++
			c.errorMsg(out, "%-12s %s", step, describeFailure(err))
			return
		}
		c.success(out, "%-12s %s", step, engine.CurrentRoute().FullPath)
	}

	report("start", engine.Start(ctx))
	if persister != nil {
		stop := persister.Follow(engine)
		defer stop()
	}

	for _, step := range steps {
		switch step {
		case "back", "forward":
			popErr = nil
			before := mem.Position()
			if step == "back" {
				engine.Back()
			} else {
				engine.Forward()
			}
			if popErr == nil && mem.Position() == before {
				c.warn(out, "%-12s nothing to traverse", step)
				continue
			}
			report(step, popErr)
		default:
			raw := route.ParsePath(step)
			raw.Replace = opts.replace
			report(step, engine.Push(ctx, raw))
		}
	}

	// Destroy resets the stack, so save before the deferred Destroy runs.
	if persister != nil {
		if err := persister.Save(ctx); err != nil {
			return errors.New("E130").WithDetail(cfg.State.Store).Wrap(err)
		}
	}

	fmt.Fprintln(out)
	snap := mem.Snapshot()
	for i, e := range snap.Entries {
		marker := " "
		if i == snap.Position {
			marker = "→"
		}
		c.info(out, "%s %d %s", marker, i, e.Location)
	}

	if opts.strict && failed > 0 {
		return errors.New("E121").WithDetail(fmt.Sprintf("%d of %d navigations failed", failed, len(steps)+1))
	}
	return nil
}

// describeFailure renders a failure as its kind plus the parts that explain
// it.
func describeFailure(err error) string {
	var f *navigation.Failure
	if !stderrors.As(err, &f) {
		return err.Error()
	}
	parts := []string{f.Kind.String()}
	if f.To != nil {
		parts = append(parts, "to "+f.To.FullPath)
	}
	if f.Cause != nil {
		parts = append(parts, "("+f.Cause.Error()+")")
	}
	return strings.Join(parts, " ")
}
