package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultTimeout = 180 * time.Second

type openaiCompatible struct {
	baseURL string
	client  *http.Client
}

type openaiRequest struct {
	Model       string          `json:"model"`
	Messages    []openaiMessage `json:"messages"`
	Temperature float64         `json:"temperature,omitempty"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
}

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error,omitempty"`
}

func newOpenAICompatible(baseURL string, timeout time.Duration) *openaiCompatible {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &openaiCompatible{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (o *openaiCompatible) Complete(ctx context.Context, apiKey string, req CompletionRequest) (string, error) {
	var oaiMessages []openaiMessage
	for _, msg := range req.Messages {
		oaiMessages = append(oaiMessages, openaiMessage{Role: msg.Role, Content: msg.Content})
	}

	reqBody := openaiRequest{
		Model:       req.Model,
		Messages:    oaiMessages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", o.baseURL+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return "", err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	var oaiResp openaiResponse
	if err := json.Unmarshal(body, &oaiResp); err != nil && resp.StatusCode == http.StatusOK {
		return "", fmt.Errorf("decode response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := string(body)
		if oaiResp.Error != nil {
			msg = oaiResp.Error.Message
		}
		return "", &Failure{Kind: classifyStatus(resp.StatusCode, msg), Status: resp.StatusCode, Message: msg}
	}

	if oaiResp.Error != nil {
		return "", &Failure{Kind: classifyText(oaiResp.Error.Message), Status: resp.StatusCode, Message: oaiResp.Error.Message}
	}

	// no choices is the "answered but produced nothing" case, not an error
	if len(oaiResp.Choices) == 0 {
		return "", nil
	}

	return strings.TrimSpace(oaiResp.Choices[0].Message.Content), nil
}
