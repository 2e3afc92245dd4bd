package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/pkggather/internal/config"
	"github.com/matzehuels/pkggather/internal/server"
	"github.com/matzehuels/pkggather/pkg/cache"
	"github.com/matzehuels/pkggather/pkg/core/gather"
	"github.com/matzehuels/pkggather/pkg/pipeline"
)

const defaultAddr = ":8080"

// serveCommand runs the HTTP API.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr       string
		configPath string
		maxBody    int64
		keyPrefix  string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the plan API over HTTP",
		Long: `Serve runs the HTTP API. The optional config file uses the request
file format; only its [gather] and [cache] sections are read. Gather
settings act as upper bounds for every request.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)

			cfg := &config.Config{}
			if configPath != "" {
				var err error
				if cfg, err = config.Load(configPath); err != nil {
					return err
				}
			}

			backend, err := c.openCache(ctx, cfg.Cache, false)
			if err != nil {
				return err
			}

			limits := cfg.Gather.Options()
			limits.Logger = logger
			var keyer cache.Keyer
			if keyPrefix != "" {
				keyer = cache.NewScopedKeyer(nil, keyPrefix)
			}
			runner := pipeline.NewRunner(gather.New(limits), backend, keyer, logger)
			if cfg.Cache.TTL.Duration > 0 {
				runner.TTL = cfg.Cache.TTL.Duration
			}
			defer runner.Close()

			srv := server.New(server.Options{
				Runner:       runner,
				HTTPCache:    backend,
				Gather:       limits,
				MaxBodyBytes: maxBody,
				Logger:       logger,
			})
			return srv.ListenAndServe(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", defaultAddr, "listen address")
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "config file with [gather] and [cache] sections")
	cmd.Flags().StringVar(&keyPrefix, "key-prefix", "", "prefix for gather cache keys in a shared backend")
	cmd.Flags().Int64Var(&maxBody, "max-body", server.DefaultMaxBodyBytes, "maximum request body size in bytes")

	return cmd
}
