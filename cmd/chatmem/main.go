// Package main is the entry point for the chatmem CLI.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/flemzord/chatmem/internal/config"
	"github.com/flemzord/chatmem/internal/core"
	"github.com/flemzord/chatmem/internal/logging"
	"github.com/flemzord/chatmem/pkg/app"
	"github.com/spf13/cobra"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "chatmem",
		Short:         "Conversation memory for AI chat assistants",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringP("config", "c", "", "Path to configuration file")
	root.PersistentFlags().String("data-dir", "", "Override data_dir from the configuration")
	root.AddCommand(
		versionCmd(),
		startCmd(),
		configCmd(),
		initCmd(),
		convCmd(),
		maintenanceCmd(),
		mcpCmd(),
		serviceCmd(),
	)
	return root
}

// runParams builds app.RunParams from the persistent flags.
func runParams(cmd *cobra.Command) app.RunParams {
	cfgPath, _ := cmd.Flags().GetString("config")
	dataDir, _ := cmd.Flags().GetString("data-dir")
	return app.RunParams{
		ConfigPath: cfgPath,
		DataDir:    dataDir,
		Version:    version,
		Commit:     commit,
		Date:       date,
		LogOutput:  cmd.ErrOrStderr(),
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and compiled modules",
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "chatmem %s (commit: %s, built: %s)\n", version, commit, date)
			mods := core.GetModules()
			if len(mods) == 0 {
				fmt.Fprintln(out, "\nNo compiled modules.")
				return
			}
			fmt.Fprintln(out, "\nCompiled modules:")
			for _, mod := range mods {
				fmt.Fprintf(out, "  %s\n", mod.ID)
			}
		},
	}
}

func startCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start chatmem with all configured modules",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.Run(cmd.Context(), runParams(cmd))
		},
	}
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check <path>",
		Short: "Validate configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(args[0])
			if err != nil {
				return err
			}
			if err := config.Validate(cfg); err != nil {
				return err
			}

			logger, err := logging.New(io.Discard, logging.Options{})
			if err != nil {
				return err
			}
			dataDir := cfg.DataDir
			if dataDir == "" {
				dataDir = app.DefaultDataDir()
			}
			appCtx := core.NewAppContext(logger, dataDir).WithModuleConfigs(cfg.Modules)

			// Provision and validate every module without starting any.
			a := core.NewApp(appCtx)
			ids := config.Resolve(cfg)
			if err := a.LoadModules(ids); err != nil {
				return err
			}
			defer a.Release()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Configuration OK (%d modules)\n", len(ids))
			for _, id := range ids {
				fmt.Fprintf(out, "  %s\n", id)
			}
			return nil
		},
	})
	return cmd
}

// withRuntime builds the persistence modules only, starts them, runs fn
// and closes everything.
func withRuntime(cmd *cobra.Command, withScheduler bool, fn func(ctx context.Context, rt *app.Runtime) error) error {
	params := runParams(cmd)
	params.BackendsOnly = true
	params.NoScheduler = !withScheduler

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	rt, err := app.Build(ctx, params)
	if err != nil {
		return err
	}
	if err := rt.Start(); err != nil {
		_ = rt.Close()
		return err
	}
	runErr := fn(ctx, rt)
	if err := rt.Close(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}
