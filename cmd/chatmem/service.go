package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/flemzord/chatmem/pkg/app"
	"github.com/kardianos/service"
	"github.com/spf13/cobra"
)

// program runs chatmem under the OS service manager.
type program struct {
	params app.RunParams
	cancel context.CancelFunc
	done   chan error
}

// Start implements service.Interface. It must not block.
func (p *program) Start(_ service.Service) error {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan error, 1)
	go func() {
		p.done <- app.Run(ctx, p.params)
	}()
	return nil
}

// Stop implements service.Interface.
func (p *program) Stop(_ service.Service) error {
	if p.cancel == nil {
		return nil
	}
	p.cancel()
	return <-p.done
}

func serviceConfig(cfgPath string) *service.Config {
	args := []string{"service", "run"}
	if cfgPath != "" {
		args = append(args, "--config", cfgPath)
	}
	return &service.Config{
		Name:        "chatmem",
		DisplayName: "chatmem",
		Description: "Conversation memory for AI chat assistants.",
		Arguments:   args,
	}
}

func serviceCmd() *cobra.Command {
	actions := append([]string{"run", "status"}, service.ControlAction[:]...)
	return &cobra.Command{
		Use:       "service <" + strings.Join(actions, "|") + ">",
		Short:     "Manage chatmem as an OS service",
		Args:      cobra.ExactArgs(1),
		ValidArgs: actions,
		RunE: func(cmd *cobra.Command, args []string) error {
			action := args[0]
			if !slices.Contains(actions, action) {
				return fmt.Errorf("unknown action %q (want one of %s)", action, strings.Join(actions, ", "))
			}

			params := runParams(cmd)
			if params.ConfigPath == "" {
				resolved, err := app.ResolveConfigPath()
				if err != nil {
					return err
				}
				params.ConfigPath = resolved
			}
			abs, err := filepath.Abs(params.ConfigPath)
			if err != nil {
				return err
			}
			params.ConfigPath = abs

			prg := &program{params: params}
			svc, err := service.New(prg, serviceConfig(abs))
			if err != nil {
				return fmt.Errorf("service: %w", err)
			}

			switch action {
			case "run":
				return svc.Run()
			case "status":
				st, err := svc.Status()
				if errors.Is(err, service.ErrNotInstalled) {
					fmt.Fprintln(cmd.OutOrStdout(), "not installed")
					return nil
				}
				if err != nil {
					return fmt.Errorf("service: status: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), statusText(st))
				return nil
			}
			if err := service.Control(svc, action); err != nil {
				return fmt.Errorf("service: %s: %w", action, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "service %s: ok\n", action)
			return nil
		},
	}
}

func statusText(st service.Status) string {
	switch st {
	case service.StatusRunning:
		return "running"
	case service.StatusStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
