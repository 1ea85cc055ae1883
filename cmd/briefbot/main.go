package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"briefbot/internal/agent"
	"briefbot/internal/config"
	"briefbot/internal/credential"
	"briefbot/internal/domain"
	"briefbot/internal/metrics"
	"briefbot/internal/provider"
	"briefbot/internal/search"
	"briefbot/internal/storage"
	"briefbot/internal/store"
	"briefbot/internal/validation"

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
		Use:     "briefbot",
		Short:   "briefbot: chat and news briefings from the terminal",
		Long:    "briefbot answers questions through Groq and writes news briefings researched via Tavily.",
		Version: version,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.json (default: ~/.briefbot/config.json)")

	root.AddCommand(initCmd())
	root.AddCommand(chatCmd())
	root.AddCommand(newsCmd())
	root.AddCommand(statusCmd())
	root.AddCommand(configCmd())

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
		Short: "Initialize config and storage directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := config.DefaultConfigPath()
			cfg := config.Defaults()
			if err := config.Save(cfgPath, cfg); err != nil {
				return err
			}
			if err := os.MkdirAll(config.ExpandPath(cfg.Storage.BaseDir), 0o700); err != nil {
				return err
			}
			logger.Info("initialized", "config", cfgPath, "summaries", cfg.Storage.BaseDir)
			return nil
		},
	}
}

// app bundles the wired services shared by the chat and news commands.
type app struct {
	cfg   *config.Config
	chat  *agent.ChatService
	news  *agent.NewsService
	audit *store.SQLiteStore // nil when history and audit are disabled
}

func buildApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return nil, err
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLevel(cfg.General.LogLevel),
	}))

	var (
		sqlStore *store.SQLiteStore
		audit    domain.AuditLogger = domain.NopAudit{}
		history  domain.HistoryStore
	)
	if cfg.History.Enabled || cfg.Security.AuditLog {
		sqlStore, err = store.NewSQLiteStore(cfg.History.DBPath, logger)
		if err != nil {
			return nil, err
		}
		if err := sqlStore.PruneHistory(ctx, cfg.History.RetentionDays); err != nil {
			logger.Warn("history pruning failed", "err", err)
		}
		if cfg.Security.AuditLog {
			audit = sqlStore
		}
		if cfg.History.Enabled {
			history = sqlStore
		}
	}

	validator := validation.Default
	if cfg.Security.SignatureDir != "" {
		extra, err := validation.LoadSignatures(cfg.Security.SignatureDir, logger)
		if err != nil {
			return nil, err
		}
		validator, err = validation.New(extra...)
		if err != nil {
			return nil, err
		}
	}

	creds := credential.NewManager(audit, logger)
	prov, err := provider.NewFactory(creds, audit, logger).Create(ctx, cfg.General.DefaultProvider)
	if err != nil {
		return nil, err
	}

	files, err := storage.New(cfg.Storage.BaseDir, audit, logger)
	if err != nil {
		return nil, err
	}

	tavilyKey, err := creds.Get(ctx, "tavily")
	if err != nil {
		// Chat works without search; news will refuse later.
		logger.Warn("tavily key missing, news search unavailable")
		tavilyKey = ""
	}
	searcher := search.NewTavily(tavilyKey, audit, logger)

	modelCfg := modelConfig(cfg)
	conversations := agent.NewConversations(cfg.Conversation.MaxMessages, history, logger)

	if cfg.Metrics.Enabled {
		go serveMetrics(cfg.Metrics)
	}

	return &app{
		cfg:   cfg,
		chat:  agent.NewChatService(validator, prov, conversations, audit, logger, modelCfg, cfg.Conversation.ContextWindow),
		news:  agent.NewNewsService(validator, searcher, prov, files, audit, logger, modelCfg, cfg.Search.MaxResults),
		audit: sqlStore,
	}, nil
}

func (a *app) close() {
	if a.audit != nil {
		a.audit.Close()
	}
}

func modelConfig(cfg *config.Config) domain.ModelConfig {
	pc := cfg.Providers[cfg.General.DefaultProvider]
	return domain.ModelConfig{
		Provider:    cfg.General.DefaultProvider,
		Model:       pc.DefaultModel,
		Temperature: pc.Temperature,
		MaxTokens:   pc.MaxTokens,
		Timeout:     pc.Timeout,
		MaxRetries:  pc.MaxRetries,
	}
}

func parseLevel(level string) slog.Level {
	switch level {
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

func serveMetrics(cfg config.MetricsConfig) {
	mux := http.NewServeMux()
	mux.HandleFunc(cfg.Endpoint, metrics.Collector.Handler())
	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics server stopped", "err", err)
	}
}

func chatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		Long:  "Chat with the model. Type /clear to reset the conversation and /quit to exit.",
		RunE:  runChat,
	}
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	fmt.Println("briefbot ready. /clear resets, /quit exits.")
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024)

	const sessionKey = "cli"
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return nil
		}

		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/clear":
			a.chat.Clear(ctx, sessionKey)
			fmt.Println("conversation cleared")
			continue
		}

		result, err := a.chat.Execute(ctx, sessionKey, line)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		fmt.Println(result.Content)
	}
}

func newsCmd() *cobra.Command {
	var (
		query     string
		frequency string
		show      bool
	)
	cmd := &cobra.Command{
		Use:   "news",
		Short: "Generate a news briefing and save it as <frequency>_summary.md",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			if show {
				summary, err := a.news.LastSummary(frequency)
				if err != nil {
					return err
				}
				fmt.Println(summary)
				return nil
			}

			if query == "" {
				return fmt.Errorf("--query is required")
			}
			result, err := a.news.Execute(ctx, query, frequency)
			if err != nil {
				return err
			}
			logger.Info("briefing saved", "articles", result.ArticleCount, "path", result.FilePath)
			fmt.Println(result.Summary)
			return nil
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "news topic to research")
	cmd.Flags().StringVarP(&frequency, "frequency", "f", "daily", "daily | weekly | monthly | year")
	cmd.Flags().BoolVar(&show, "show", false, "print the stored briefing instead of generating a new one")
	return cmd
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show configuration and credential status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			logger.Info("config", "path", cfgPath)
			logger.Info("provider", "name", cfg.General.DefaultProvider, "model", cfg.Providers[cfg.General.DefaultProvider].DefaultModel)

			ctx := context.Background()
			creds := credential.NewManager(domain.NopAudit{}, logger)
			for _, service := range credential.Services() {
				logger.Info("credential", "service", service, "configured", creds.Validate(ctx, service))
			}
			logger.Info("storage", "baseDir", cfg.Storage.BaseDir)
			logger.Info("history", "enabled", cfg.History.Enabled, "dbPath", cfg.History.DBPath)
			return nil
		},
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
		Short: "Get a config value (e.g. conversation.maxMessages)",
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
		Short: "Set a config value (e.g. search.maxResults 8)",
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
			if err := config.Validate(cfg); err != nil {
				return err
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
			data, _ := json.MarshalIndent(cfg, "", "  ")
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
