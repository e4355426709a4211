// Package commands implements the pgreindex command tree.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/satishbabariya/pgreindex/internal/config"
	"github.com/satishbabariya/pgreindex/internal/core/index/auditor"
	"github.com/satishbabariya/pgreindex/internal/logging"
	"github.com/satishbabariya/pgreindex/internal/ui"
	"github.com/satishbabariya/pgreindex/internal/version"
)

// rootOptions carries state shared by every subcommand.
type rootOptions struct {
	v          *viper.Viper
	configFile string
	noPrompt   bool
	cfg        *config.Config
}

// NewRootCommand creates the pgreindex command. Run without a subcommand it
// performs index maintenance.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{v: config.New()}

	root := &cobra.Command{
		Use:   "pgreindex",
		Short: "Find and rebuild unhealthy PostgreSQL indexes",
		Long: `pgreindex scans the databases of one PostgreSQL server, largest first, for
indexes left invalid by a failed concurrent build and indexes larger than a
size threshold, and rebuilds them with REINDEX INDEX CONCURRENTLY.

Exit codes: 0 done, 1 connection or listing failure, 2 invalid indexes found
under --invalid-policy=fail, 64 usage or configuration error.`,
		Version:           version.Get().Version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		Args:              noArgs,
		PersistentPreRunE: opts.load,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.runMaintenance(cmd, false)
		},
	}
	root.SetVersionTemplate(version.Get().String() + "\n")
	root.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		return &UsageError{Err: err}
	})

	addFlags(root.PersistentFlags(), opts)

	root.AddCommand(newRunCommand(opts))
	root.AddCommand(newAuditCommand(opts))
	root.AddCommand(newVersionCommand())

	return root
}

func addFlags(flags *pflag.FlagSet, opts *rootOptions) {
	flags.StringVar(&opts.configFile, "config", "", "config file (default .pgreindex.yaml in ., $HOME or $HOME/.config/pgreindex)")
	flags.BoolVar(&opts.noPrompt, "no-password", false, "never prompt for a password")

	flags.String("host", "localhost", "server host")
	flags.Int("port", 5432, "server port")
	flags.StringP("user", "U", "postgres", "user name")
	flags.String("password", "", "password (prefer PGREINDEX_PASSWORD or PGPASSWORD)")
	flags.String("dbname", "postgres", "administrative database to connect to")
	flags.String("sslmode", "", "sslmode: disable, require, verify-ca or verify-full")

	flags.StringP("pattern", "p", "%", "LIKE pattern selecting databases")
	flags.Int("offset", 0, "databases to skip, largest first")
	flags.Int("limit", 10, "maximum number of databases to process")
	flags.Int64("threshold", auditor.DefaultThresholdBytes, "index size in bytes above which an index is rebuilt")
	flags.StringP("index", "i", "", "rebuild only this index (schema.name, or name in the schema named after the database); matched case-sensitively, double-quote parts containing dots")
	flags.String("invalid-policy", "fail", "on invalid indexes: fail (exit 2), report, or repair")
	flags.StringSlice("checks", []string{"invalid", "oversized"}, "audits to run: invalid, oversized")
	flags.Bool("dry-run", false, "audit and report without rebuilding")

	flags.Duration("connect-timeout", 0, "connection timeout (0 uses the driver default)")
	flags.Duration("statement-timeout", 0, "statement_timeout for the session (0 uses the server default)")
	flags.Duration("lock-timeout", 0, "lock_timeout for the session (0 uses the server default)")

	flags.String("metrics", "noop", "telemetry exporters: noop, prometheus, opentelemetry (comma-separated)")
	flags.String("pushgateway-url", "", "Prometheus Pushgateway to push metrics to")
	flags.String("metrics-textfile", "", "file to write metrics to in the node exporter textfile format")
	flags.String("log-level", "info", "log level: trace, debug, info, warn, error, off")
	flags.Bool("log-json", false, "log as JSON")
	flags.Bool("no-color", false, "disable colored output")
}

func noArgs(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return &UsageError{Err: fmt.Errorf("unexpected argument %q for %q", args[0], cmd.CommandPath())}
	}
	return nil
}

// load resolves configuration, initialises logging and validates.
func (o *rootOptions) load(cmd *cobra.Command, args []string) error {
	if err := config.BindFlags(o.v, cmd.Flags()); err != nil {
		return fmt.Errorf("failed to bind flags: %w", err)
	}

	cfg, err := config.Load(o.v, o.configFile)
	if err != nil {
		return err
	}

	logging.Init(logging.Options{
		Level: cfg.Log.Level,
		JSON:  cfg.Log.JSON,
		Color: !cfg.NoColor,
	})
	if cfg.NoColor {
		ui.DisableColor()
	}
	if cfg.ConfigFile != "" {
		logging.Debug("using config file", "path", cfg.ConfigFile)
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	o.cfg = cfg
	return nil
}
