package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/charmbracelet/huh"
	"github.com/flemzord/chatmem/internal/core"
	"github.com/flemzord/chatmem/pkg/app"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// initAnswers holds the choices made in the setup form.
type initAnswers struct {
	Backend      string
	DSN          string
	Gateway      bool
	Bind         string
	Token        string
	MaxTokens    string
	Threshold    string
	LogFormat    string
	AutoCompress bool
}

func defaultAnswers() initAnswers {
	return initAnswers{
		Backend:      "memory.sqlite",
		Gateway:      true,
		Bind:         "127.0.0.1:8080",
		Token:        uuid.NewString(),
		MaxTokens:    "50000",
		Threshold:    "40000",
		LogFormat:    "text",
		AutoCompress: true,
	}
}

func initCmd() *cobra.Command {
	var (
		output   string
		force    bool
		noPrompt bool
		backend  string
		dsn      string
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter configuration file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if output == "" {
				output = app.DefaultConfigPath()
			}
			if _, err := os.Stat(output); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", output)
			}

			a := defaultAnswers()
			if backend != "" {
				a.Backend = backend
			}
			a.DSN = dsn
			if !noPrompt {
				if err := initForm(&a).Run(); err != nil {
					if errors.Is(err, huh.ErrUserAborted) {
						return errors.New("init aborted")
					}
					return err
				}
			}

			raw, err := renderConfig(a)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
				return err
			}
			if err := os.WriteFile(output, raw, 0o600); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", output)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&output, "output", "o", "", "Where to write the file (default: user config dir)")
	f.BoolVarP(&force, "force", "f", false, "Overwrite an existing file")
	f.BoolVar(&noPrompt, "yes", false, "Accept the defaults without prompting")
	f.StringVar(&backend, "backend", "", "Persistence module: memory.sqlite, memory.bolt, memory.postgres, memory.mysql")
	f.StringVar(&dsn, "dsn", "", "Connection string for memory.postgres or memory.mysql")
	return cmd
}

func initForm(a *initAnswers) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Where should conversations be stored?").
				Options(backendOptions()...).
				Value(&a.Backend),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Database connection string").
				Value(&a.DSN).
				Validate(func(s string) error {
					if s == "" {
						return errors.New("a DSN is required for this backend")
					}
					return nil
				}),
		).WithHideFunc(func() bool { return !needsDSN(a.Backend) }),
		huh.NewGroup(
			huh.NewInput().
				Title("Max tokens per conversation").
				Value(&a.MaxTokens).
				Validate(positiveInt),
			huh.NewInput().
				Title("Compress above (tokens)").
				Value(&a.Threshold).
				Validate(positiveInt),
			huh.NewConfirm().
				Title("Compress automatically when the threshold is crossed?").
				Value(&a.AutoCompress),
		),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Enable the HTTP gateway?").
				Value(&a.Gateway),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Gateway listen address").
				Value(&a.Bind),
			huh.NewInput().
				Title("API bearer token").
				Value(&a.Token).
				EchoMode(huh.EchoModePassword),
		).WithHideFunc(func() bool { return !a.Gateway }),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Log format").
				Options(huh.NewOptions("text", "json")...).
				Value(&a.LogFormat),
		),
	)
}

var backendLabels = map[string]string{
	"memory.sqlite":   "SQLite file",
	"memory.bolt":     "Bolt file",
	"memory.postgres": "PostgreSQL",
	"memory.mysql":    "MySQL",
}

// backendOptions lists the persistence modules compiled into the binary.
func backendOptions() []huh.Option[string] {
	var opts []huh.Option[string]
	for _, info := range core.GetModulesByNamespace("memory") {
		id := string(info.ID)
		label, ok := backendLabels[id]
		if !ok {
			label = id
		}
		opts = append(opts, huh.NewOption(label, id))
	}
	return opts
}

func needsDSN(backend string) bool {
	return backend == "memory.postgres" || backend == "memory.mysql"
}

func positiveInt(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return errors.New("must be a positive integer")
	}
	return nil
}

type starterLog struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type starterMemory struct {
	MaxTokens            int  `yaml:"max_tokens"`
	CompressionThreshold int  `yaml:"compression_threshold"`
	AutoCompress         bool `yaml:"auto_compress"`
}

type starterConfig struct {
	Version string                    `yaml:"version"`
	Log     starterLog                `yaml:"log"`
	Memory  starterMemory             `yaml:"memory"`
	Modules map[string]map[string]any `yaml:"modules"`
}

// renderConfig turns the form answers into a config file.
func renderConfig(a initAnswers) ([]byte, error) {
	maxTokens, err := strconv.Atoi(a.MaxTokens)
	if err != nil {
		return nil, fmt.Errorf("max tokens: %w", err)
	}
	threshold, err := strconv.Atoi(a.Threshold)
	if err != nil {
		return nil, fmt.Errorf("compression threshold: %w", err)
	}
	if info, ok := core.GetModule(a.Backend); !ok || info.ID.Namespace() != "memory" {
		return nil, fmt.Errorf("%q is not a persistence module", a.Backend)
	}
	if needsDSN(a.Backend) && a.DSN == "" {
		return nil, fmt.Errorf("%s needs a DSN", a.Backend)
	}

	backend := map[string]any{}
	if needsDSN(a.Backend) {
		backend["dsn"] = a.DSN
	}
	cfg := starterConfig{
		Version: "1",
		Log:     starterLog{Level: "info", Format: a.LogFormat},
		Memory: starterMemory{
			MaxTokens:            maxTokens,
			CompressionThreshold: threshold,
			AutoCompress:         a.AutoCompress,
		},
		Modules: map[string]map[string]any{a.Backend: backend},
	}
	if a.Gateway {
		cfg.Modules["gateway.http"] = map[string]any{
			"bind": a.Bind,
			"auth": map[string]string{"bearer_token": a.Token},
		}
	}

	body, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	header := []byte("# chatmem configuration, generated by `chatmem init`.\n")
	return append(header, body...), nil
}
