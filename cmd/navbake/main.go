// Command navbake bakes navigation meshes from OBJ geometry and runs path
// queries against them.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gorustyt/navbake/common/logger"
)

// cli holds the state shared by every subcommand.
type cli struct {
	logCfg logger.Config
	log    *zap.Logger
}

func RootCmd() *cobra.Command {
	app := &cli{logCfg: logger.DefaultConfig(), log: zap.NewNop()}
	c := &cobra.Command{
		Use:           "navbake",
		Short:         "navigation mesh baker",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			app.log = logger.New(app.logCfg)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = app.log.Sync()
		},
	}
	c.PersistentFlags().StringVar(&app.logCfg.Level, "log-level", app.logCfg.Level, "log level (debug, info, warn, error)")
	c.PersistentFlags().StringVar(&app.logCfg.File, "log-file", "", "also write JSON logs to this rotating file")
	c.AddCommand(
		BuildCmd(app),
		PathCmd(app),
		InspectCmd(),
	)
	return c
}

func main() {
	// An interrupt stops a bake before its next stage.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := RootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "navbake:", err)
		os.Exit(1)
	}
}
