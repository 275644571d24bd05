package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all service configuration. Values come from the environment,
// then an optional YAML file named by CONFIG_FILE, then defaults.
type Config struct {
	Port        string
	LogLevel    string
	LogFormat   string
	CORSOrigins []string

	NCBIBaseURL      string
	PubMedWebURL     string
	NCBIAPIKey       string
	NCBIRequestDelay time.Duration
	NCBITimeout      time.Duration

	LLMProvider     string
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	OpenAIModel     string
	AnthropicAPIKey string
	AnthropicModel  string
	LLMTimeout      time.Duration

	ConversationStore       string
	ConversationTTL         time.Duration
	ConversationMaxMessages int

	RedisAddr     string
	RedisPassword string
	MongoURI      string
	MongoDB       string
	PostgresDSN   string

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("cors_origins", "http://localhost:5173,http://localhost:3000")

	v.SetDefault("ncbi_base_url", "https://eutils.ncbi.nlm.nih.gov/entrez/eutils/")
	v.SetDefault("pubmed_web_url", "https://pubmed.ncbi.nlm.nih.gov/")
	v.SetDefault("ncbi_api_key", "")
	v.SetDefault("ncbi_request_delay", "300ms")
	v.SetDefault("ncbi_timeout", "30s")

	v.SetDefault("llm_provider", "openai")
	v.SetDefault("openai_api_key", "")
	v.SetDefault("openai_base_url", "")
	v.SetDefault("openai_model", "gpt-4o")
	v.SetDefault("anthropic_api_key", "")
	v.SetDefault("anthropic_model", "")
	v.SetDefault("llm_timeout", "2m")

	v.SetDefault("conversation_store", "memory")
	v.SetDefault("conversation_ttl", "24h")
	v.SetDefault("conversation_max_messages", 0)

	v.SetDefault("redis_addr", "redis:6379")
	v.SetDefault("redis_password", "")
	v.SetDefault("mongo_uri", "")
	v.SetDefault("mongo_db", "pubmed_assistant")
	v.SetDefault("postgres_dsn", "")

	v.SetDefault("minio_endpoint", "")
	v.SetDefault("minio_access_key", "")
	v.SetDefault("minio_secret_key", "")
	v.SetDefault("minio_bucket", "chat-transcripts")
	v.SetDefault("minio_use_ssl", false)
}

// Load reads the configuration. A missing CONFIG_FILE is an error; no
// CONFIG_FILE at all means environment and defaults only.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if file := v.GetString("config_file"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	cfg := &Config{
		Port:        v.GetString("port"),
		LogLevel:    v.GetString("log_level"),
		LogFormat:   v.GetString("log_format"),
		CORSOrigins: splitList(v.GetString("cors_origins")),

		NCBIBaseURL:      v.GetString("ncbi_base_url"),
		PubMedWebURL:     v.GetString("pubmed_web_url"),
		NCBIAPIKey:       v.GetString("ncbi_api_key"),
		NCBIRequestDelay: v.GetDuration("ncbi_request_delay"),
		NCBITimeout:      v.GetDuration("ncbi_timeout"),

		LLMProvider:     strings.ToLower(v.GetString("llm_provider")),
		OpenAIAPIKey:    v.GetString("openai_api_key"),
		OpenAIBaseURL:   v.GetString("openai_base_url"),
		OpenAIModel:     v.GetString("openai_model"),
		AnthropicAPIKey: v.GetString("anthropic_api_key"),
		AnthropicModel:  v.GetString("anthropic_model"),
		LLMTimeout:      v.GetDuration("llm_timeout"),

		ConversationStore:       strings.ToLower(v.GetString("conversation_store")),
		ConversationTTL:         v.GetDuration("conversation_ttl"),
		ConversationMaxMessages: v.GetInt("conversation_max_messages"),

		RedisAddr:     v.GetString("redis_addr"),
		RedisPassword: v.GetString("redis_password"),
		MongoURI:      v.GetString("mongo_uri"),
		MongoDB:       v.GetString("mongo_db"),
		PostgresDSN:   v.GetString("postgres_dsn"),

		MinioEndpoint:  v.GetString("minio_endpoint"),
		MinioAccessKey: v.GetString("minio_access_key"),
		MinioSecretKey: v.GetString("minio_secret_key"),
		MinioBucket:    v.GetString("minio_bucket"),
		MinioUseSSL:    v.GetBool("minio_use_ssl"),
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.LLMProvider {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("LLM_PROVIDER: unknown provider %q", c.LLMProvider)
	}
	switch c.ConversationStore {
	case "memory", "redis", "mongo", "postgres":
	default:
		return fmt.Errorf("CONVERSATION_STORE: unknown store %q", c.ConversationStore)
	}
	if c.ConversationStore == "mongo" && c.MongoURI == "" {
		return fmt.Errorf("MONGO_URI is required for the mongo conversation store")
	}
	if c.ConversationStore == "postgres" && c.PostgresDSN == "" {
		return fmt.Errorf("POSTGRES_DSN is required for the postgres conversation store")
	}
	if c.NCBIRequestDelay < 0 {
		return fmt.Errorf("NCBI_REQUEST_DELAY must not be negative")
	}
	if c.ConversationMaxMessages < 0 {
		return fmt.Errorf("CONVERSATION_MAX_MESSAGES must not be negative")
	}
	return nil
}

// ArchiveEnabled reports whether transcripts go to object storage.
func (c *Config) ArchiveEnabled() bool {
	return c.MinioEndpoint != ""
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
