// Package cli implements the pkggather command-line interface.
package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/pkggather/internal/config"
	"github.com/matzehuels/pkggather/pkg/buildinfo"
	"github.com/matzehuels/pkggather/pkg/cache"
	"github.com/matzehuels/pkggather/pkg/core/gather"
	"github.com/matzehuels/pkggather/pkg/pipeline"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "pkggather"

	// defaultConfigFile is read when a command is given no request file.
	defaultConfigFile = "pkggather.toml"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "pkggather collects and prunes package dependency candidates",
		Long: `pkggather walks the dependency closure of a set of target packages across
one or more package feeds, then prunes the candidate set down to what an
install or update may choose from.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if c.Logger.GetLevel() <= log.DebugLevel {
				installLogHooks(c.Logger)
			}
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())

	root.AddCommand(c.planCommand())
	root.AddCommand(c.gatherCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Request Loading
// =============================================================================

// requestOpts are the flags shared by commands that run a request file.
// Set flags override the file.
type requestOpts struct {
	noCache        bool
	refresh        bool
	maxConcurrency int
	timeout        time.Duration
}

func (o *requestOpts) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&o.noCache, "no-cache", false, "disable the feed and gather caches")
	cmd.Flags().BoolVar(&o.refresh, "refresh", false, "bypass cached entries but store fresh results")
	cmd.Flags().IntVar(&o.maxConcurrency, "max-concurrency", 0, "maximum in-flight source requests")
	cmd.Flags().DurationVar(&o.timeout, "timeout", 0, "timeout for each source request")
}

// session is a loaded request ready to run.
type session struct {
	runner  *pipeline.Runner
	request pipeline.Request
}

func (s *session) Close() error { return s.runner.Close() }

// load reads the request file at path and opens the cache it names.
func (c *CLI) load(ctx context.Context, path string, opts requestOpts) (*session, error) {
	logger := loggerFromContext(ctx)

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if opts.refresh {
		cfg.Refresh = true
	}

	backend, err := c.openCache(ctx, cfg.Cache, opts.noCache)
	if err != nil {
		return nil, err
	}

	req, err := cfg.Build(config.BuildOptions{HTTPCache: backend})
	if err != nil {
		backend.Close()
		return nil, err
	}

	gopts := cfg.Gather.Options()
	if opts.maxConcurrency != 0 {
		gopts.MaxConcurrency = opts.maxConcurrency
	}
	if opts.timeout != 0 {
		gopts.RequestTimeout = opts.timeout
	}
	gopts.Logger = logger

	runner := pipeline.NewRunner(gather.New(gopts), backend, nil, logger)
	if cfg.Cache.TTL.Duration > 0 {
		runner.TTL = cfg.Cache.TTL.Duration
	}
	logger.Debug("loaded request", "path", path, "action", req.Action, "sources", len(req.Context.AllSources))
	return &session{runner: runner, request: req}, nil
}

// openCache opens the configured backend, falling back to no caching when
// the default directory cannot be determined.
func (c *CLI) openCache(ctx context.Context, cfg config.Cache, noCache bool) (cache.Cache, error) {
	if noCache {
		return cache.NewNullCache(), nil
	}
	dir, err := cacheDir()
	if err != nil {
		loggerFromContext(ctx).Debug("no cache directory", "error", err)
		dir = ""
	}
	return cfg.Open(ctx, dir)
}

// requestPath returns the positional request file or the default.
func requestPath(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return defaultConfigFile
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/pkggather/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}
