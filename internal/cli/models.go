package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/harun/mcplink/pkg/agent"
	"github.com/spf13/cobra"
)

var modelsVariant string

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the models offered by the configured endpoint",
	Args:  cobra.NoArgs,
	RunE:  runModels,
}

func init() {
	modelsCmd.Flags().StringVar(&modelsVariant, "variant", "", "variant to query (default from config)")
	rootCmd.AddCommand(modelsCmd)
}

func runModels(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if modelsVariant != "" {
		cfg.Client.Variant = modelsVariant
	}
	logs, err := setupLogger(cfg)
	if err != nil {
		return err
	}
	defer logs.Close()

	registry := agent.NewDefaultRegistry(agent.RegistryConfig{Logger: logs.Component("agent")})
	variant, ok := registry.Variant(cfg.Client.Variant)
	if !ok {
		return fmt.Errorf("unknown variant: %s", cfg.Client.Variant)
	}

	clientCfg := cfg.Client.AgentConfig(variant.Provider.DefaultConfig())
	client, err := agent.NewClient(agent.ClientOptions{
		Variant:  variant.ID,
		Provider: variant.Provider,
		Config:   &clientCfg,
		Logger:   logs.Component("agent"),
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()
	models, err := client.Models(ctx, true)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, model := range models {
		marker := " "
		if model == clientCfg.Model {
			marker = "*"
		}
		fmt.Fprintf(out, "%s %s\n", marker, model)
	}
	return nil
}
