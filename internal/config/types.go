package config

import "time"

type Config struct {
	DBPath     string
	ModelsPath string
	LLM        LLMConfig
	STT        STTConfig
	Keys       KeysConfig
	Bot        BotConfig
	Storage    StorageConfig
}

type LLMConfig struct {
	Provider  string
	BaseURL   string
	Timeout   time.Duration
	MaxTokens int
}

type STTConfig struct {
	Model      string
	CacheSize  int
	CacheTTL   time.Duration
	RetryDelay time.Duration
}

type KeysConfig struct {
	Seed       []string
	SampleSize int
	RatePerMin int
	ReloadSpec string
}

type BotConfig struct {
	Provider string
	Token    string
}

type StorageConfig struct {
	Enabled   bool
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
}
