package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"api_ventas/internal/config"
	"api_ventas/internal/logging"
	"api_ventas/internal/provision"
	"api_ventas/internal/store"
)

func main() {
	if err := rootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type options struct {
	driver         string
	databaseName   string
	collectionName string
	rate           float64
	pollAttempts   int
	envFile        string
}

func rootCmd(out io.Writer) *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "provision",
		Short: "Create the sales database, collection, attributes and indexes",
		Long: `Create the sales schema in the configured document store.

Existing databases and collections are looked up by name and reused, so the
command can be re-run safely. The resulting identifiers are printed as .env lines.

Examples:
  provision --driver appwrite --database-name SalesDatabase --collection-name ventas
  provision --driver mongodb --rate 5`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProvision(cmd.Context(), opts, out)
		},
	}

	cmd.Flags().StringVar(&opts.driver, "driver", "", "store driver (appwrite, mongodb); defaults to STORE_DRIVER")
	cmd.Flags().StringVar(&opts.databaseName, "database-name", "SalesDatabase", "database name")
	cmd.Flags().StringVar(&opts.collectionName, "collection-name", "ventas", "collection name")
	cmd.Flags().Float64Var(&opts.rate, "rate", 2, "maximum store requests per second")
	cmd.Flags().IntVar(&opts.pollAttempts, "poll-attempts", provision.DefaultPolicy.Attempts, "status checks per attribute or index")
	cmd.Flags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file to read before the environment")
	return cmd
}

func runProvision(ctx context.Context, opts *options, out io.Writer) error {
	cfg, err := config.Load(opts.envFile)
	if err != nil {
		return err
	}
	if opts.driver != "" {
		cfg.StoreDriver = opts.driver
	}
	if err := cfg.ValidateProvision(); err != nil {
		return err
	}

	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, closeBackend, err := store.OpenProvisioner(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = closeBackend() }()

	policy := provision.DefaultPolicy
	policy.Attempts = opts.pollAttempts
	p := provision.New(backend, logger.Named("provision"),
		provision.WithRate(opts.rate),
		provision.WithPolicy(policy),
	)

	started := time.Now()
	res, err := p.Run(ctx, opts.databaseName, opts.collectionName)
	if err != nil {
		return err
	}
	logger.Info("provisioning finished",
		zap.String("driver", cfg.StoreDriver),
		zap.Int("attributes", len(res.Attributes)),
		zap.Int("indexes", len(res.Indexes)),
		zap.Int("failed", len(res.Failed)),
		zap.Duration("elapsed", time.Since(started)),
	)

	writeEnv(out, cfg.StoreDriver, res)
	if len(res.Failed) > 0 {
		return fmt.Errorf("%d of %d resources failed; re-run to retry them",
			len(res.Failed), len(res.Failed)+len(res.Attributes)+len(res.Indexes))
	}
	return nil
}

// writeEnv prints the identifiers the API server needs, ready to paste into .env.
func writeEnv(out io.Writer, driver string, res *provision.Result) {
	switch driver {
	case config.DriverMongo:
		fmt.Fprintf(out, "MONGODB_DATABASE=%s\n", res.DatabaseID)
		fmt.Fprintf(out, "MONGODB_COLLECTION=%s\n", res.CollectionID)
	default:
		fmt.Fprintf(out, "APPWRITE_DATABASE_ID=%s\n", res.DatabaseID)
		fmt.Fprintf(out, "APPWRITE_COLLECTION_VENTAS_ID=%s\n", res.CollectionID)
	}
	for _, f := range res.Failed {
		fmt.Fprintf(out, "# %s %s not provisioned: %v\n", f.Kind, f.Name, f.Err)
	}
}
