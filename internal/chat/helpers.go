package chat

import (
	"context"
	"fmt"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// maxSumRequest caps the text fed to the summarize and translate prompts.
const maxSumRequest = 50000

// Translate renders text in another language through the dispatcher at
// near-zero temperature. Language codes are expanded to English display
// names so the model sees "Ukrainian", not "uk"; codes that fail to parse
// pass through as given.
func (c *Chat) Translate(ctx context.Context, text, from, to, hint string) string {
	if from == "" {
		from = "autodetect"
	} else {
		from = displayName(from)
	}
	if to == "" {
		to = "ru"
	}
	to = displayName(to)

	var query string
	if hint != "" {
		query = fmt.Sprintf("Translate from language [%s] to language [%s], your reply should only be the translated text, this can help you to translate better [%s]:\n\n%s", from, to, hint, text)
	} else {
		query = fmt.Sprintf("Translate from language [%s] to language [%s], your reply should only be the translated text:\n\n%s", from, to, text)
	}

	return c.Ask(ctx, Request{Prompt: query, Temperature: 0.1, MaxTokens: 8000})
}

func displayName(code string) string {
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	if name := display.English.Tags().Name(tag); name != "" {
		return name
	}
	return code
}

// SumBigText answers a query over a large text, clipped to the summarize
// budget.
func (c *Chat) SumBigText(ctx context.Context, text, query, model string) string {
	if len(text) > maxSumRequest {
		text = text[:maxSumRequest]
	}
	return c.Ask(ctx, Request{
		Prompt: fmt.Sprintf("%s\n\n%s", query, text),
		Model:  model,
	})
}

// Retranscribe cleans up a transcription produced elsewhere.
func (c *Chat) Retranscribe(ctx context.Context, text, prompt string) string {
	if prompt == "" {
		prompt = "Fix errors, make a fine text of the transcription, keep original language"
	}
	return c.Ask(ctx, Request{
		Prompt:      fmt.Sprintf("%s:\n\n%s", prompt, text),
		Temperature: 0.1,
	})
}
