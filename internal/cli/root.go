// Package cli builds the ragchat command tree.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"ragchat/internal/app"
	"ragchat/internal/config"
	"ragchat/internal/logger"
)

type rootOptions struct {
	configPath string
}

// NewRootCmd returns the ragchat root command with all subcommands attached.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "ragchat",
		Short: "Chat with your PDF documents",
		Long: `ragchat indexes uploaded PDFs per user and answers questions over them
through an HTTP API or an interactive terminal chat.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to YAML config file (default ./config.yaml or ~/.config/ragchat/config.yaml)")

	cmd.AddCommand(
		NewServeCmd(opts),
		NewChatCmd(opts),
		NewIngestCmd(opts),
		NewAdminCmd(opts),
	)
	return cmd
}

func (o *rootOptions) loadConfig() (*config.AppConfig, error) {
	if o.configPath == "" {
		cfg, _, err := config.LoadDefault()
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		return cfg, nil
	}
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// openApp loads config, builds a logger and wires the application.
func (o *rootOptions) openApp(ctx context.Context) (*app.App, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Sync()
		return nil, err
	}
	return a, nil
}
