package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/botconsulting/botgpt/pkg/config"
	"github.com/botconsulting/botgpt/pkg/db"
	"github.com/botconsulting/botgpt/pkg/service"
	"github.com/botconsulting/botgpt/pkg/utils"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
)

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "botgpt",
		Short: "BOT GPT conversational backend",
		Long:  "Serves the BOT GPT conversation API: persisted chats, rolling summaries and document-grounded replies.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath)
		},
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (default ~/.botgpt/config.yaml)")

	cmd.AddCommand(newServeCmd(&configPath))
	cmd.AddCommand(newMigrateCmd(&configPath))
	cmd.AddCommand(newVersionCmd())
	return cmd
}

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), *configPath)
		},
	}
}

func newMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			database, err := openDatabase(cfg)
			if err != nil {
				return err
			}
			defer db.Close(database)

			fmt.Fprintf(cmd.OutOrStdout(), "Schema migrated (%s)\n", cfg.DatabaseDriver())
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "botgpt %s (commit: %s)\n", Version, Commit)
		},
	}
}

func loadConfig(path string) (*config.AppConfig, error) {
	var (
		cfg *config.AppConfig
		err error
	)
	if path == "" {
		cfg, path, err = config.Load()
	} else {
		cfg, path, err = config.LoadFile(path)
	}
	if err != nil {
		return nil, err
	}
	utils.InitLogger(cfg.LogLevel())
	utils.GetLogger().Debug("Configuration loaded", "path", path)
	return cfg, nil
}

// openDatabase connects and migrates the schema.
func openDatabase(cfg *config.AppConfig) (*gorm.DB, error) {
	database, err := db.Open(cfg.DatabaseDriver(), cfg.DatabaseDSN(), cfg.LogLevel() == "debug")
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(database); err != nil {
		_ = db.Close(database)
		return nil, err
	}
	return database, nil
}

func runServe(ctx context.Context, configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	logger := utils.GetLogger()

	database, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close(database)

	chatModel, err := service.NewModelService().CreateChatModel(ctx, cfg.LLM)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := NewServer(cfg, database, chatModel)
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("start server: %w", err)
	}

	logger.Info("BOT GPT started",
		"port", server.Port(),
		"provider", cfg.LLMProvider(),
		"cacheTTL", cfg.CacheTTL().String(),
		"windowSize", cfg.WindowSize())

	server.Wait()
	logger.Info("BOT GPT stopped")
	return nil
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
