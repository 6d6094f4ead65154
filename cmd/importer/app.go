package main

import (
	"context"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dvloznov/blueprint-importer/internal/config"
	"github.com/dvloznov/blueprint-importer/internal/logger"
)

type app struct {
	v   *viper.Viper
	cfg *config.Config
	log zerolog.Logger
	out io.Writer

	envFile string
}

func newApp(out io.Writer) *app {
	return &app{
		v:   config.NewViper(),
		log: logger.New(),
		out: out,
	}
}

func (a *app) root() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "importer",
		Short: "Import CSV rows as documents of a content repository blueprint",
		Long: `importer reads a CSV export, converts rich-text columns, moves external
thumbnails into the repository's asset store and writes every row as a
document of the target blueprint in one batch.

Credentials come from CAISY_PRIVATE_ACCESS_TOKEN and CAISY_PROJECT_ID,
or from a .env file in the working directory.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		RunE:              a.runImport,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	config.RegisterFlags(flags)
	// Flags are registered above, so binding cannot fail on a missing flag.
	_ = config.BindFlags(a.v, flags)

	cmd.AddCommand(
		a.runCmd(),
		a.schemaCmd(),
		a.runsCmd(),
		a.migrateCmd(),
	)
	return cmd
}

// setup loads the configuration and installs the logger in the command context.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if err := config.LoadDotEnv(a.envFile); err != nil {
		return err
	}

	cfg, err := config.Load(a.v)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = logger.NewWithOptions(logger.Options{Level: cfg.Log.Level, JSON: cfg.Log.JSON})

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(logger.WithContext(ctx, a.log))
	return nil
}

// withTimeout applies the configured run timeout, if any.
func (a *app) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.cfg.Import.Timeout > 0 {
		return context.WithTimeout(ctx, a.cfg.Import.Timeout)
	}
	return context.WithCancel(ctx)
}

const ledgerTimeout = 2 * time.Minute
