package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"linebridge/internal/bridge"
	"linebridge/internal/config"
	"linebridge/internal/discord"
	"linebridge/internal/httpx"
	"linebridge/internal/identity"
	"linebridge/internal/line"

	"github.com/spf13/cobra"
)

var (
	version    = "0.1.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:   "linebridge",
		Short: "linebridge: bidirectional Discord ↔ LINE message relay",
		Long:  "linebridge relays LINE group messages into a Discord channel and pushes Discord /stl messages back into the LINE group.",
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.json (default: ~/.linebridge/config.json)")

	root.AddCommand(initCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(configCmd())
	root.AddCommand(doctorCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize config and allow-list",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgDir := config.DefaultConfigDir()
			cfgPath := config.DefaultConfigPath()
			if err := os.MkdirAll(cfgDir, 0o755); err != nil {
				return err
			}
			cfg := config.Defaults()
			if err := config.Save(cfgPath, cfg); err != nil {
				return err
			}
			allowPath := filepath.Join(cfgDir, "allowlist.yaml")
			if _, err := os.Stat(allowPath); os.IsNotExist(err) {
				if err := config.SaveAllowList(allowPath, map[string]string{}); err != nil {
					return err
				}
			}
			logger.Info("initialized", "config", cfgPath, "allowlist", allowPath)
			return nil
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the bridge (LINE webhook server + Discord bot)",
		Long:  "Starts the LINE webhook server and the Discord slash-command bot. Press Ctrl+C to stop.",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel(cfg.General.LogLevel)}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpClient := httpx.SharedClient(httpx.DefaultTimeout)

	lineClient := line.New(line.Config{
		AccessToken: cfg.Line.ChannelAccessToken,
		APIBase:     cfg.Line.APIBase,
		DataAPIBase: cfg.Line.DataAPIBase,
		HTTPClient:  httpClient,
		Logger:      logger,
	})

	allowList, err := config.LoadAllowList(cfg.General.AllowListPath, logger)
	if err != nil {
		return fmt.Errorf("allow-list: %w", err)
	}

	resolver := identity.NewResolver(allowList, lineClient, logger)

	relay := discord.NewWebhookRelay(discord.RelayConfig{
		WebhookURL: cfg.Discord.WebhookURL,
		HTTPClient: httpClient,
		Logger:     logger,
	})

	router := bridge.NewRouter(bridge.Config{
		Resolver:     resolver,
		Media:        lineClient,
		Relay:        relay,
		ServeMetrics: cfg.Metrics.Enabled,
		Logger:       logger,
	})

	command := discord.NewCommand(discord.CommandConfig{
		Token:                  cfg.Discord.BotToken,
		GuildID:                cfg.Discord.GuildID,
		AllowedParentChannelID: cfg.Discord.AllowedParentChannelID,
		TargetGroupID:          cfg.Line.TargetGroupID,
		Pusher:                 lineClient,
		PushTimeout:            time.Duration(cfg.Line.PushTimeoutSeconds) * time.Second,
		Logger:                 logger,
	})

	errCh := make(chan error, 2)
	var wg sync.WaitGroup

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := router.Serve(ctx, addr); err != nil {
			errCh <- fmt.Errorf("webhook server: %w", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := command.Start(ctx); err != nil {
			errCh <- fmt.Errorf("discord bot: %w", err)
		}
	}()

	logger.Info("bridge started. Press Ctrl+C to stop.", "version", version)

	select {
	case <-ctx.Done():
		logger.Info("shutting down bridge...")
		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()
		select {
		case <-done:
			logger.Info("shutdown complete")
			return nil
		case <-time.After(10 * time.Second):
			logger.Warn("shutdown timed out, forcing exit")
			return fmt.Errorf("shutdown timed out")
		}
	case err := <-errCh:
		stop()
		return err
	}
}

func logLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View and modify configuration",
		Long:  "Get, set, and list configuration values. Changes are saved to the config file.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get [path]",
		Short: "Get a config value (e.g. server.port)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			val, err := config.GetByPath(cfg, args[0])
			if err != nil {
				return err
			}
			data, _ := json.MarshalIndent(val, "", "  ")
			fmt.Println(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set [path] [value]",
		Short: "Set a config value (e.g. server.port 9090)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := config.SetByPath(cfg, args[0], args[1]); err != nil {
				return fmt.Errorf("set value: %w", err)
			}
			if err := config.Save(cfgPath, cfg); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			logger.Info("config updated", "path", args[0], "value", args[1], "file", cfgPath)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all config values",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			sanitized := config.Sanitize(cfg)
			data, _ := json.MarshalIndent(sanitized, "", "  ")
			fmt.Println(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show config file path",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(resolveConfigPath())
		},
	})

	return cmd
}
