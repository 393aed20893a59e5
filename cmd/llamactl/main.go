package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"llamad/internal/config"
	"llamad/internal/llm"
	"llamad/internal/locate"
	"llamad/internal/supervise"
)

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// cliEnv carries the config and wired dependencies shared by all commands.
type cliEnv struct {
	cfg    config.Config
	logger zerolog.Logger
	client *llm.Client
	sup    *supervise.Supervisor
}

func buildRootCmd() *cobra.Command {
	var configPath, logLevel string

	env := &cliEnv{}
	root := &cobra.Command{
		Use:           "llamactl",
		Short:         "Control a local llama-server: models, lifecycle, generation",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", os.Getenv("LLAMAD_CONFIG"), "Path to config file (.yaml/.json/.toml)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level: debug|info|warn|error")
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg := config.Config{}
		if configPath != "" {
			loaded, err := config.Load(configPath)
			if err != nil {
				return err
			}
			cfg = loaded
		}
		env.cfg = config.ApplyDefaults(cfg)
		lvl, err := zerolog.ParseLevel(strings.ToLower(logLevel))
		if err != nil || lvl == zerolog.NoLevel {
			lvl = zerolog.WarnLevel
		}
		env.logger = zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger()
		env.client = llm.New(fmt.Sprintf("http://127.0.0.1:%d", env.cfg.Server.Port))
		env.sup = supervise.New(
			supervise.Config{Server: env.cfg.Server},
			env.client,
			supervise.WithLogger(env.logger),
		)
		return nil
	}

	modelsCmd := &cobra.Command{
		Use:     "models",
		Short:   "List *.gguf models in the configured models directory",
		Example: "  llamactl models",
		RunE: func(cmd *cobra.Command, args []string) error {
			models := locate.FindModels(env.cfg.Server.ModelDir)
			if len(models) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No models found in %s\n", env.cfg.Server.ModelDir)
				return nil
			}
			for _, m := range models {
				fmt.Fprintf(cmd.OutOrStdout(), "%-40s %8.1f MB  %s\n", m.Name, float64(m.SizeBytes)/(1024*1024), m.Path)
			}
			return nil
		},
	}

	var startModel string
	startCmd := &cobra.Command{
		Use:     "start",
		Short:   "Start the managed llama-server and wait for readiness",
		Example: "  llamactl start\n  llamactl start --model ~/models/mistral.Q4_K_M.gguf",
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := env.sup.Start(cmd.Context(), startModel)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", res.Status, res.Message)
			return nil
		},
	}
	startCmd.Flags().StringVar(&startModel, "model", "", "Model path override for this start")

	stopCmd := &cobra.Command{
		Use:     "stop",
		Short:   "Stop the managed llama-server",
		Example: "  llamactl stop",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := env.sup.Stop(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "stopped")
			return nil
		},
	}

	statusCmd := &cobra.Command{
		Use:     "status",
		Short:   "Show whether a llama-server is answering on the configured port",
		Example: "  llamactl status",
		RunE: func(cmd *cobra.Command, args []string) error {
			if env.sup.IsRunning(cmd.Context()) {
				if pid, model := env.sup.Tracked(); pid > 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "running (pid %d, model %s)\n", pid, model)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "running on port %d (not started by llamactl)\n", env.cfg.Server.Port)
				}
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "not running")
			return nil
		},
	}

	var genStream bool
	var genMaxTokens int
	var genTemperature float64
	generateCmd := &cobra.Command{
		Use:     "generate <prompt>",
		Short:   "Generate text from a prompt",
		Example: "  llamactl generate \"Write a haiku about autumn\"\n  llamactl generate --stream \"Tell me a story\"",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt := args[0]
			maxTokens := genMaxTokens
			if maxTokens <= 0 {
				maxTokens = env.cfg.Server.MaxTokens
			}
			temperature := genTemperature
			if temperature <= 0 {
				temperature = env.cfg.Server.Temperature
			}
			if genStream {
				err := env.client.GenerateStream(cmd.Context(), prompt, maxTokens, temperature, func(tok string) error {
					_, werr := fmt.Fprint(cmd.OutOrStdout(), tok)
					return werr
				})
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout())
				return nil
			}
			text, err := env.client.Generate(cmd.Context(), prompt, maxTokens, temperature)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}
	generateCmd.Flags().BoolVar(&genStream, "stream", false, "Stream tokens as they arrive")
	generateCmd.Flags().IntVar(&genMaxTokens, "max-tokens", 0, "Maximum tokens to generate (0 = config default)")
	generateCmd.Flags().Float64Var(&genTemperature, "temperature", 0, "Sampling temperature (0 = config default)")

	root.AddCommand(modelsCmd, startCmd, stopCmd, statusCmd, generateCmd)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	cobra.OnFinalize(stop)
	root.SetContext(ctx)

	return root
}
