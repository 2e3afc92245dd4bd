package cli

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/matzehuels/pkggather/pkg/core/packaging"
)

// planOpts holds the flags of the plan command.
type planOpts struct {
	requestOpts
	outputOpts
	interactive bool
}

// planCommand runs a request file through gather and prune.
func (c *CLI) planCommand() *cobra.Command {
	var opts planOpts

	cmd := &cobra.Command{
		Use:   "plan [request.toml]",
		Short: "Gather and prune the candidates for an install or update",
		Long: `Plan reads a request file, gathers every candidate in the dependency
closure of its targets, and prunes the set according to the request's
action. Without an argument, ./pkggather.toml is used.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormat(opts.format); err != nil {
				return err
			}
			return c.runPlan(cmd, requestPath(args), opts)
		},
	}

	opts.requestOpts.register(cmd)
	opts.outputOpts.register(cmd)
	cmd.Flags().BoolVarP(&opts.interactive, "interactive", "i", false, "browse the plan in a terminal UI")

	return cmd
}

func (c *CLI) runPlan(cmd *cobra.Command, path string, opts planOpts) error {
	ctx := cmd.Context()
	logger := loggerFromContext(ctx)

	s, err := c.load(ctx, path, opts.requestOpts)
	if err != nil {
		return err
	}
	defer s.Close()

	spinner := newSpinner(ctx, "Planning "+string(s.request.Action)+"...")
	spinner.Start()
	prog := newProgress(logger)
	plan, err := s.runner.Plan(ctx, s.request)
	if err != nil {
		spinner.StopWithError("Plan failed")
		return err
	}
	spinner.Stop()
	prog.done("planned", "action", plan.Action, "kept", plan.Stats.Kept)

	if opts.interactive {
		_, err := tea.NewProgram(newPlanModel(plan), tea.WithContext(ctx), tea.WithOutput(cmd.OutOrStdout())).Run()
		if err != nil && ctx.Err() == nil {
			return fmt.Errorf("interactive view: %w", err)
		}
		return ctx.Err()
	}

	if err := opts.write(ctx, cmd.OutOrStdout(), plan.Packages, plan); err != nil {
		return err
	}
	printStats(plan.Stats.Gathered, plan.Stats.Kept, plan.Stats.Requests, plan.CacheHit)
	if opts.format == formatTable && opts.output == "" && len(plan.Packages) > 0 {
		printNextStep("Browse interactively", appName+" plan "+path+" --interactive")
	}
	return nil
}

// gatherDoc is the json output of the gather command.
type gatherDoc struct {
	Packages    []*packaging.SourcePackageDependencyInfo `json:"packages"`
	Requests    int                                      `json:"requests"`
	SourceTimes map[string]time.Duration                 `json:"source_times,omitempty"`
	CacheHit    bool                                     `json:"cache_hit"`
}

// gatherCommand prints the raw candidate set without pruning.
func (c *CLI) gatherCommand() *cobra.Command {
	var (
		req requestOpts
		out outputOpts
	)

	cmd := &cobra.Command{
		Use:   "gather [request.toml]",
		Short: "Gather the unpruned candidate set for a request",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormat(out.format); err != nil {
				return err
			}
			return c.runGather(cmd, requestPath(args), req, out)
		},
	}

	req.register(cmd)
	out.register(cmd)

	return cmd
}

func (c *CLI) runGather(cmd *cobra.Command, path string, req requestOpts, out outputOpts) error {
	ctx := cmd.Context()

	s, err := c.load(ctx, path, req)
	if err != nil {
		return err
	}
	defer s.Close()

	spinner := newSpinner(ctx, "Gathering...")
	spinner.Start()
	outcome, hit, err := s.runner.GatherWithCacheInfo(ctx, s.request.Context, s.request.Refresh)
	if err != nil {
		spinner.StopWithError("Gather failed")
		return err
	}
	spinner.Stop()

	doc := gatherDoc{
		Packages:    outcome.Packages,
		Requests:    outcome.Requests,
		SourceTimes: outcome.SourceTimes,
		CacheHit:    hit,
	}
	if err := out.write(ctx, cmd.OutOrStdout(), outcome.Packages, doc); err != nil {
		return err
	}
	printStats(len(outcome.Packages), len(outcome.Packages), outcome.Requests, hit)
	return nil
}
