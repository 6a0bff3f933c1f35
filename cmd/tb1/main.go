package main

import (
	"bufio"
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/robfig/cron/v3"

	"github.com/dbv111m/tb1/internal/bot"
	"github.com/dbv111m/tb1/internal/chat"
	"github.com/dbv111m/tb1/internal/config"
	"github.com/dbv111m/tb1/internal/conversation"
	"github.com/dbv111m/tb1/internal/keypool"
	"github.com/dbv111m/tb1/internal/llm"
	"github.com/dbv111m/tb1/internal/logger"
	"github.com/dbv111m/tb1/internal/storage"
	"github.com/dbv111m/tb1/internal/stt"
)

func init() {
	godotenv.Load()
}

func main() {
	cli := flag.Bool("cli", false, "interactive chat in the terminal instead of the bot")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", "error", err)
	}
	if !llm.IsKnownProvider(cfg.LLM.Provider) {
		logger.Fatal("unknown LLM provider", "provider", cfg.LLM.Provider)
	}

	db, err := sql.Open("sqlite3", cfg.DBPath)
	if err != nil {
		logger.Fatal("failed to open database", "error", err)
	}
	defer db.Close()

	registry, err := keypool.NewSQLRegistry(db)
	if err != nil {
		logger.Fatal("failed to init key registry", "error", err)
	}

	pool := keypool.New(registry, cfg.Keys.RatePerMin)
	if err := pool.Load(cfg.Keys.Seed); err != nil {
		logger.Fatal("failed to load key pool", "error", err)
	}
	if pool.Len() == 0 {
		logger.Warn("key pool is empty, every request will fail until keys are added")
	}

	modelsFile, err := config.LoadModels(cfg.ModelsPath)
	if err != nil {
		logger.Fatal("failed to load model table", "error", err)
	}

	models, err := chat.NewModelRegistry(modelsFile)
	if err != nil {
		logger.Fatal("invalid model table", "error", err)
	}

	completer, err := llm.New(llm.Config{
		Provider: cfg.LLM.Provider,
		BaseURL:  cfg.LLM.BaseURL,
		Timeout:  cfg.LLM.Timeout,
	})
	if err != nil {
		logger.Fatal("failed to create completion client", "error", err)
	}

	store, err := conversation.NewStore(db)
	if err != nil {
		logger.Fatal("failed to init conversation store", "error", err)
	}

	chatSvc := chat.New(pool, store, completer, models, chat.Options{
		MaxTokens:  cfg.LLM.MaxTokens,
		SampleSize: cfg.Keys.SampleSize,
		Timeout:    cfg.LLM.Timeout,
	})

	transcriber, err := llm.NewTranscriber(llm.Config{
		Provider: cfg.LLM.Provider,
		BaseURL:  cfg.LLM.BaseURL,
		Timeout:  cfg.LLM.Timeout,
	})
	if err != nil {
		logger.Fatal("failed to create transcription client", "error", err)
	}

	sttSvc := stt.New(pool, transcriber, cfg.STT.Model,
		stt.NewCache(cfg.STT.CacheSize, cfg.STT.CacheTTL), cfg.STT.RetryDelay)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Storage.Enabled {
		archive, err := storage.NewClient(cfg.Storage)
		if err != nil {
			logger.Fatal("failed to create storage client", "error", err)
		}
		if err := archive.Init(ctx); err != nil {
			logger.Fatal("failed to init storage", "error", err)
		}
		sttSvc.SetArchive(archive)
	}

	// keys contributed while running join the pool on the next reload
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.Keys.ReloadSpec, func() {
		if err := pool.Reload(); err != nil {
			logger.Error("key pool reload failed", "error", err)
		}
	}); err != nil {
		logger.Fatal("invalid key reload schedule", "error", err, "spec", cfg.Keys.ReloadSpec)
	}
	scheduler.Start()
	defer scheduler.Stop()

	if *cli {
		runCLI(ctx, chatSvc)
		return
	}

	front, err := bot.New(bot.Config{Provider: cfg.Bot.Provider, Token: cfg.Bot.Token}, bot.Services{
		Chat:     chatSvc,
		STT:      sttSvc,
		Pool:     pool,
		Registry: registry,
	})
	if err != nil {
		logger.Fatal("failed to create bot", "error", err)
	}

	logger.Info("bot started", "provider", cfg.Bot.Provider, "keys", pool.Len())

	if err := front.Start(ctx); err != nil && ctx.Err() == nil {
		logger.Fatal("bot stopped", "error", err)
	}
}

func runCLI(ctx context.Context, chatSvc *chat.Chat) {
	const chatID = "cli:test"

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)

	fmt.Print("> ")
	for scanner.Scan() {
		line := scanner.Text()
		switch line {
		case "":
		case "mem":
			text, err := chatSvc.HistoryAsText(chatID)
			if err != nil {
				fmt.Println("error:", err)
			} else {
				fmt.Println(text)
			}
		case "reset":
			if err := chatSvc.Reset(chatID); err != nil {
				fmt.Println("error:", err)
			}
		default:
			fmt.Println(chatSvc.Send(ctx, chatID, line, chat.SendOptions{}))
		}
		fmt.Print("> ")
	}
}
