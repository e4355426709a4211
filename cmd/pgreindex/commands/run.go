package commands

import (
	"context"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/satishbabariya/pgreindex/internal/adapters/database/postgres"
	"github.com/satishbabariya/pgreindex/internal/adapters/telemetry"
	"github.com/satishbabariya/pgreindex/internal/logging"
	"github.com/satishbabariya/pgreindex/internal/repository"
	"github.com/satishbabariya/pgreindex/internal/service"
	"github.com/satishbabariya/pgreindex/internal/ui"
	"github.com/satishbabariya/pgreindex/internal/version"
)

func newRunCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "run",
		Aliases: []string{"index-maintenance"},
		Short:   "Audit the selected databases and rebuild unhealthy indexes",
		Example: `  pgreindex run --host db.internal --pattern 'shop_%' --limit 5
  pgreindex run --index orders_created_at_idx --invalid-policy report
  PGREINDEX_PASSWORD=... pgreindex run --metrics prometheus --pushgateway-url http://pushgateway:9091`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.runMaintenance(cmd, false)
		},
	}
}

func newAuditCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "audit",
		Short: "Report unhealthy indexes without rebuilding anything",
		Long: `audit runs the same selection and checks as run and reports every rebuild it
would attempt as skipped. Invalid indexes still exit 2 under
--invalid-policy=fail.`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.runMaintenance(cmd, true)
		},
	}
}

// runMaintenance wires the adapters and runs one maintenance pass.
func (o *rootOptions) runMaintenance(cmd *cobra.Command, auditOnly bool) error {
	ctx := cmd.Context()
	cfg := o.cfg
	if auditOnly {
		cfg.DryRun = true
	}

	input, err := cfg.RunInput()
	if err != nil {
		return err
	}

	dbConfig := cfg.DatabaseConfig(version.Get().UserAgent())
	if cfg.Password == "" && !o.noPrompt && !o.v.GetBool("no_password") {
		password, err := askPassword(cfg.User, dbConfig.Target())
		if err != nil {
			return err
		}
		dbConfig.Password = password
	}

	adapter, err := postgres.NewPostgresAdapter(dbConfig)
	if err != nil {
		return err
	}

	runID := uuid.NewString()
	tel, err := telemetry.NewTelemetry(&telemetry.Config{
		Type:           cfg.Metrics.Type,
		ServiceName:    "pgreindex",
		RunID:          runID,
		PushgatewayURL: cfg.Metrics.PushgatewayURL,
		TextfilePath:   cfg.Metrics.TextfilePath,
	})
	if err != nil {
		return err
	}
	defer tel.Close(context.WithoutCancel(ctx))

	printer := ui.NewPrinter(cmd.OutOrStdout(), cmd.ErrOrStderr())
	if cfg.NoColor {
		printer = printer.WithoutColor()
	}

	log := logging.With("run_id", runID)
	log.Debug("configuration", "config", cfg.String())

	svc := service.NewMaintenanceService(adapter, repository.NewCatalogRepository(adapter),
		service.WithTelemetry(tel),
		service.WithReporter(ui.NewConsoleReporter(printer)),
		service.WithLogger(logging.Named("service")),
		service.WithRunID(func() string { return runID }),
	)

	_, runErr := svc.Run(ctx, input)

	if err := tel.Flush(context.WithoutCancel(ctx)); err != nil {
		log.Warn("failed to export telemetry", "error", err)
	}
	return runErr
}
