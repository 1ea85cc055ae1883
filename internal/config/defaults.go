package config

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel:        "info",
			DefaultProvider: "groq",
		},
		Providers: map[string]ProviderConfig{
			"groq": {
				Enabled:      true,
				DefaultModel: "llama-3.1-8b-instant",
				Temperature:  0.7,
				Timeout:      30,
				MaxRetries:   3,
			},
		},
		Search: SearchConfig{
			Provider:   "tavily",
			MaxResults: 5,
		},
		Conversation: ConversationConfig{
			MaxMessages:   100,
			ContextWindow: 10,
		},
		Storage: StorageConfig{
			BaseDir: "~/.briefbot/summaries",
		},
		History: HistoryConfig{
			Enabled:       true,
			DBPath:        "~/.briefbot/history.db",
			RetentionDays: 365,
		},
		Security: SecurityConfig{
			AuditLog: true,
		},
		Metrics: MetricsConfig{
			Enabled:  false,
			Endpoint: "/metrics",
			Port:     9090,
		},
	}
}
