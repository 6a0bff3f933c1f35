package stt

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dbv111m/tb1/internal/keypool"
	"github.com/dbv111m/tb1/internal/llm"
	"github.com/dbv111m/tb1/internal/logger"
	"github.com/dbv111m/tb1/internal/storage"
)

// bogusCredits are subtitle-credit lines the whisper training data leaks
// into transcriptions of silence or noise.
var bogusCredits = []string{
	"Субтитры сделал DimaTorzok.",
	"Субтитры сделал DimaTorzok",
	"Субтитры добавил DimaTorzok.",
	"Субтитры создавал DimaTorzok.",
	"Субтитры создавал DimaTorzok",
	"Субтитры добавил DimaTorzok",
	"DimaTorzok.",
	"DimaTorzok",
}

type Params struct {
	Language string
	Prompt   string
	Key      string
}

type Service struct {
	cache      *Cache
	pool       *keypool.Pool
	client     llm.Transcriber
	model      string
	retryDelay time.Duration
	archive    *storage.Client
}

func New(pool *keypool.Pool, client llm.Transcriber, model string, cache *Cache, retryDelay time.Duration) *Service {
	if retryDelay <= 0 {
		retryDelay = 4 * time.Second
	}
	return &Service{
		cache:      cache,
		pool:       pool,
		client:     client,
		model:      model,
		retryDelay: retryDelay,
	}
}

// SetArchive enables uploading transcribed audio to object storage.
func (s *Service) SetArchive(archive *storage.Client) {
	s.archive = archive
}

// Transcribe turns audio into text, serving identical recent inputs from
// the cache. Callers always get text or "".
func (s *Service) Transcribe(ctx context.Context, audio []byte, p Params) string {
	cacheParams := p.Language + "\x00" + p.Prompt + "\x00" + s.model

	text, err := s.cache.GetOrCompute(audio, cacheParams, func() (string, error) {
		return s.callOnce(ctx, audio, p)
	})
	if err != nil {
		logger.Error("transcription failed", "error", err, "language", p.Language)
		return ""
	}

	if text != "" && s.archive != nil {
		go s.archiveAudio(audio)
	}

	return text
}

// callOnce issues the remote call, retrying exactly once after a short
// delay when the provider reports an internal server error.
func (s *Service) callOnce(ctx context.Context, audio []byte, p Params) (string, error) {
	key := p.Key
	if key == "" {
		keys := s.pool.Sample(1)
		if len(keys) == 0 {
			return "", fmt.Errorf("no keys in pool")
		}
		key = keys[0]
	}

	req := llm.TranscriptionRequest{
		Audio:    audio,
		Model:    s.model,
		Prompt:   p.Prompt,
		Language: p.Language,
	}

	text, err := s.client.Transcribe(ctx, key, req)
	if err != nil && llm.IsInternal(err) {
		select {
		case <-time.After(s.retryDelay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
		text, err = s.client.Transcribe(ctx, key, req)
	}
	if err != nil {
		return "", err
	}

	return scrub(text), nil
}

// scrub strips the known bogus credit lines.
func scrub(text string) string {
	for _, line := range bogusCredits {
		text = strings.ReplaceAll(text, line, "")
	}
	return strings.TrimSpace(text)
}

func (s *Service) archiveAudio(audio []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	name := fmt.Sprintf("audio/%d.ogg", time.Now().UnixNano())
	if err := s.archive.Upload(ctx, name, audio, "audio/ogg"); err != nil {
		logger.Error("audio archive failed", "error", err)
	}
}
