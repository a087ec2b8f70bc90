package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/flemzord/chatmem/internal/mcpserver"
	"github.com/flemzord/chatmem/pkg/app"
	"github.com/spf13/cobra"
)

func mcpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the memory tools over MCP on stdio",
		Long: "Serve the memory tools to an MCP client over stdin/stdout. " +
			"Logs go to stderr; stdout carries the protocol only.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, true, func(ctx context.Context, rt *app.Runtime) error {
				ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
				defer stop()
				srv := mcpserver.New(rt.Manager, "chatmem", version, rt.Logger)
				return srv.ServeStdio(ctx, os.Stdin, os.Stdout)
			})
		},
	}
}
