package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/flemzord/chatmem/pkg/app"
	"github.com/spf13/cobra"
)

func maintenanceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "maintenance",
		Short: "Run the retention and compaction jobs by hand",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the maintenance jobs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, true, func(_ context.Context, rt *app.Runtime) error {
				if rt.Scheduler == nil {
					return errors.New("maintenance jobs are disabled (cron.disabled)")
				}
				for _, name := range rt.Scheduler.Jobs() {
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}
				return nil
			})
		},
	}, &cobra.Command{
		Use:   "run <job>",
		Short: "Run one maintenance job now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, true, func(ctx context.Context, rt *app.Runtime) error {
				if rt.Scheduler == nil {
					return errors.New("maintenance jobs are disabled (cron.disabled)")
				}
				ran, err := rt.Scheduler.RunNow(ctx, args[0])
				if err != nil {
					return err
				}
				if !ran {
					return fmt.Errorf("job %s is already running", args[0])
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s done\n", args[0])
				return nil
			})
		},
	})
	return cmd
}
