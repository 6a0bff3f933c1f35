package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

func Load() (*Config, error) {
	dbPath := os.Getenv("TB1_DB")
	if dbPath == "" {
		dbPath = "tb1.db"
	}

	return &Config{
		DBPath:     dbPath,
		ModelsPath: os.Getenv("TB1_MODELS"),
		LLM:        loadLLMConfig(),
		STT:        loadSTTConfig(),
		Keys:       loadKeysConfig(),
		Bot:        loadBotConfig(),
		Storage:    loadStorageConfig(),
	}, nil
}

func loadLLMConfig() LLMConfig {
	provider := os.Getenv("LLM_PROVIDER")
	if provider == "" {
		provider = "groq"
	}

	return LLMConfig{
		Provider:  provider,
		BaseURL:   os.Getenv("LLM_BASE_URL"),
		Timeout:   envDuration("LLM_TIMEOUT", 180*time.Second),
		MaxTokens: envInt("LLM_MAX_TOKENS", 4000),
	}
}

func loadSTTConfig() STTConfig {
	model := os.Getenv("STT_MODEL")
	if model == "" {
		model = "whisper-large-v3"
	}

	return STTConfig{
		Model:      model,
		CacheSize:  envInt("STT_CACHE_SIZE", 10),
		CacheTTL:   envDuration("STT_CACHE_TTL", 10*time.Minute),
		RetryDelay: envDuration("STT_RETRY_DELAY", 4*time.Second),
	}
}

func loadKeysConfig() KeysConfig {
	var seed []string
	for _, key := range strings.Split(os.Getenv("API_KEYS"), ",") {
		if key = strings.TrimSpace(key); key != "" {
			seed = append(seed, key)
		}
	}

	reload := os.Getenv("KEYS_RELOAD")
	if reload == "" {
		reload = "@every 10m"
	}

	return KeysConfig{
		Seed:       seed,
		SampleSize: envInt("KEYS_SAMPLE", 4),
		RatePerMin: envInt("KEYS_RATE_PER_MIN", 0),
		ReloadSpec: reload,
	}
}

func loadBotConfig() BotConfig {
	provider := os.Getenv("BOT_PROVIDER")
	if provider == "" {
		provider = "telegram"
	}

	return BotConfig{
		Provider: provider,
		Token:    os.Getenv("BOT_TOKEN"),
	}
}

func loadStorageConfig() StorageConfig {
	endpoint := os.Getenv("MINIO_ENDPOINT")
	if endpoint == "" {
		endpoint = "minio:9000"
	}

	accessKey := os.Getenv("MINIO_ACCESS_KEY")
	secretKey := os.Getenv("MINIO_SECRET_KEY")

	bucket := os.Getenv("MINIO_BUCKET")
	if bucket == "" {
		bucket = "tb1-audio"
	}

	return StorageConfig{
		Enabled:   accessKey != "" && secretKey != "",
		Endpoint:  endpoint,
		AccessKey: accessKey,
		SecretKey: secretKey,
		UseSSL:    os.Getenv("MINIO_USE_SSL") == "true",
		Bucket:    bucket,
	}
}

func envInt(name string, fallback int) int {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(name string, fallback time.Duration) time.Duration {
	if v := os.Getenv(name); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		// bare numbers mean seconds
		if n, err := strconv.Atoi(v); err == nil {
			return time.Duration(n) * time.Second
		}
	}
	return fallback
}
