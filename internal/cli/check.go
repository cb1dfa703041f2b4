package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/maizdemicorazon/pos-connectivity/internal/app"
	cfgpkg "github.com/maizdemicorazon/pos-connectivity/internal/config"
	"github.com/maizdemicorazon/pos-connectivity/internal/connectivity"
	"github.com/maizdemicorazon/pos-connectivity/internal/logging"
)

type checkOptions struct {
	timeout time.Duration
}

// NewCheckCommand 执行一次后端连通性检查并输出结果；未完全连通时退出码为 1
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &checkOptions{}

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run a single backend connectivity check",
		Long: `Run a single forced check against the backend health endpoint and print
the resulting connection state. Exits with status 1 when the backend is not reachable.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, rootOpts, opts)
		},
	}
	cmd.Flags().DurationVarP(&opts.timeout, "timeout", "t", 0, "check timeout (overrides connectivity.timeout)")

	return cmd
}

func runCheck(cmd *cobra.Command, rootOpts *RootOptions, opts *checkOptions) error {
	cfg, err := cfgpkg.Load(rootOpts.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "load config", err)
	}

	logger := zap.NewNop()
	if rootOpts.Verbose {
		logger = logging.NewConsoleLogger(cmd.ErrOrStderr(), zapcore.DebugLevel)
	}

	mopts := app.MonitorOptions(cfg.Connectivity)
	mopts.CheckInterval = 0
	mopts.CheckOnStart = false
	if opts.timeout > 0 {
		mopts.Timeout = opts.timeout
	}

	prober, err := app.NewProber(cfg.Backend, mopts.Timeout)
	if err != nil {
		return WrapExitError(ExitCommandError, "create prober", err)
	}
	mon := connectivity.NewMonitor(prober, mopts, connectivity.WithLogger(logger))
	defer mon.Stop()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	mon.CheckBackendConnectivity(ctx, true)

	report := CheckReport{HealthURL: prober.URL(), Snapshot: mon.Snapshot()}
	if err := WriteReport(cmd.OutOrStdout(), rootOpts.Format, report); err != nil {
		return WrapExitError(ExitCommandError, "write output", err)
	}
	if !report.Snapshot.IsFullyConnected {
		return NewExitError(ExitFailure, "backend not reachable")
	}
	return nil
}
