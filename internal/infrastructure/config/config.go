package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Log       LogConfig       `mapstructure:"log"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Business  BusinessConfig  `mapstructure:"business"`
	Knowledge KnowledgeConfig `mapstructure:"knowledge"`
}

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release
}

// Addr 返回监听地址
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Type     string `mapstructure:"type"` // sqlite, postgres, memory
	DSN      string `mapstructure:"dsn"`
	LogLevel string `mapstructure:"log_level"` // silent, error, warn, info
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// LLMConfig 生成式回复配置
type LLMConfig struct {
	Enabled      bool                `mapstructure:"enabled"`
	Model        string              `mapstructure:"model"`
	Temperature  float64             `mapstructure:"temperature"`
	MaxTokens    int                 `mapstructure:"max_tokens"`
	HistoryLimit int                 `mapstructure:"history_limit"`
	Timeout      time.Duration       `mapstructure:"timeout"`
	PersonaDir   string              `mapstructure:"persona_dir"` // *.md persona overrides, empty: ~/.sitebot/prompts
	Providers    []LLMProviderConfig `mapstructure:"providers"`
}

// LLMProviderConfig configures one provider behind llm.Router
type LLMProviderConfig struct {
	Name     string   `mapstructure:"name"`
	Type     string   `mapstructure:"type"` // openai, ollama
	BaseURL  string   `mapstructure:"base_url"`
	APIKey   string   `mapstructure:"api_key"`
	Models   []string `mapstructure:"models"`
	Priority int      `mapstructure:"priority"`
}

// PipelineConfig 消息处理流水线参数
type PipelineConfig struct {
	KnowledgeLimit   int           `mapstructure:"knowledge_limit"`
	StoreTimeout     time.Duration `mapstructure:"store_timeout"`
	KnowledgeTimeout time.Duration `mapstructure:"knowledge_timeout"`
	DirectKnowledge  bool          `mapstructure:"direct_knowledge"`
}

// BusinessConfig 业务信息，用于提示词与固定回复
type BusinessConfig struct {
	Name        string `mapstructure:"name"`
	Email       string `mapstructure:"email"`
	Phone       string `mapstructure:"phone"`
	WhatsApp    string `mapstructure:"whatsapp"`
	Website     string `mapstructure:"website"`
	PricingFR   string `mapstructure:"pricing_fr"`
	PricingEN   string `mapstructure:"pricing_en"`
	GuaranteeFR string `mapstructure:"guarantee_fr"`
	GuaranteeEN string `mapstructure:"guarantee_en"`
}

// KnowledgeConfig 知识库导入配置
type KnowledgeConfig struct {
	SeedFile string `mapstructure:"seed_file"`
}

// Load 加载配置
func Load() (*Config, error) {
	return LoadFrom("")
}

// LoadFrom 加载配置，explicitPath 非空时只读取该文件（仍叠加环境变量）
func LoadFrom(explicitPath string) (*Config, error) {
	v := viper.New()

	// 设置默认值
	setDefaults(v)

	// 优先级 (低 → 高): 默认值 → 全局 ~/.sitebot/ → 项目本地 → 环境变量
	v.SetConfigType("yaml")

	if explicitPath != "" {
		v.SetConfigFile(explicitPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", explicitPath, err)
		}
	} else {
		// Layer 1: 全局配置 ~/.sitebot/config.yaml
		v.SetConfigName("config")
		v.AddConfigPath(HomeDir())
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read global config: %w", err)
			}
		}

		// Layer 2: 项目本地配置 ./config/config.yaml 或 ./config.yaml
		for _, localDir := range []string{"./config", "."} {
			localPath := filepath.Join(localDir, "config.yaml")
			if _, err := os.Stat(localPath); err == nil {
				v2 := viper.New()
				v2.SetConfigFile(localPath)
				if err := v2.ReadInConfig(); err != nil {
					return nil, fmt.Errorf("failed to read local config %s: %w", localPath, err)
				}
				if err := v.MergeConfigMap(v2.AllSettings()); err != nil {
					return nil, fmt.Errorf("failed to merge local config: %w", err)
				}
				break // 只取第一个找到的本地配置
			}
		}
	}

	// 环境变量覆盖，如 SITEBOT_DATABASE_DSN
	v.SetEnvPrefix("SITEBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 校验配置取值
func (c *Config) Validate() error {
	switch c.Database.Type {
	case "sqlite", "postgres", "memory":
	default:
		return fmt.Errorf("unsupported database type: %q", c.Database.Type)
	}
	if c.Database.Type != "memory" && c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required for %s", c.Database.Type)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port: %d", c.Server.Port)
	}
	if c.Pipeline.KnowledgeLimit < 0 {
		return fmt.Errorf("pipeline.knowledge_limit must not be negative")
	}
	for i, p := range c.LLM.Providers {
		switch p.Type {
		case "openai", "ollama":
		default:
			return fmt.Errorf("llm.providers[%d] (%s): unsupported type %q", i, p.Name, p.Type)
		}
		if p.BaseURL == "" {
			return fmt.Errorf("llm.providers[%d] (%s): base_url is required", i, p.Name)
		}
	}
	return nil
}

// setDefaults 设置默认配置
func setDefaults(v *viper.Viper) {
	// Server 默认值
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")

	// Database 默认值
	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.dsn", "sitebot.db")
	v.SetDefault("database.log_level", "warn")

	// Log 默认值
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output", "stdout")

	// LLM 默认值
	v.SetDefault("llm.enabled", false)
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.max_tokens", 300)
	v.SetDefault("llm.history_limit", 6)
	v.SetDefault("llm.timeout", "15s")
	v.SetDefault("llm.persona_dir", "")

	// Pipeline 默认值
	v.SetDefault("pipeline.knowledge_limit", 3)
	v.SetDefault("pipeline.store_timeout", "3s")
	v.SetDefault("pipeline.knowledge_timeout", "3s")
	v.SetDefault("pipeline.direct_knowledge", true)

	// Business 默认值 (空字段使用内置业务信息)
	// 注册全部键，使 SITEBOT_BUSINESS_* 环境变量生效
	for _, key := range []string{"name", "email", "phone", "whatsapp", "website", "pricing_fr", "pricing_en", "guarantee_fr", "guarantee_en"} {
		v.SetDefault("business."+key, "")
	}

	// Knowledge 默认值
	v.SetDefault("knowledge.seed_file", "")
}
