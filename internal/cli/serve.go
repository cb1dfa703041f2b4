package cli

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/maizdemicorazon/pos-connectivity/internal/app/bootstrap"
	cfgpkg "github.com/maizdemicorazon/pos-connectivity/internal/config"
	"github.com/maizdemicorazon/pos-connectivity/internal/logging"
)

// NewServeCommand 启动常驻监控服务
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the connectivity monitor and HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cfgpkg.Load(rootOpts.ConfigPath)
			if err != nil {
				return WrapExitError(ExitCommandError, "load config", err)
			}
			if rootOpts.Verbose {
				cfg.Logging.Level = "debug"
			}

			logger, err := logging.InitLogger(cfg.Logging)
			if err != nil {
				return WrapExitError(ExitCommandError, "init logger", err)
			}
			defer func() { _ = logger.Sync() }()
			zap.ReplaceGlobals(logger)

			return bootstrap.Run(cmd.Context(), cfg, zap.L())
		},
	}
}
