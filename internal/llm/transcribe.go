package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
)

type transcriptionResponse struct {
	Text  string `json:"text"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

func (o *openaiCompatible) Transcribe(ctx context.Context, apiKey string, req TranscriptionRequest) (string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	filename := req.Filename
	if filename == "" {
		filename = "audio.mp3"
	}

	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(req.Audio); err != nil {
		return "", err
	}

	if err := w.WriteField("model", req.Model); err != nil {
		return "", err
	}
	if req.Prompt != "" {
		if err := w.WriteField("prompt", req.Prompt); err != nil {
			return "", err
		}
	}
	if req.Language != "" {
		if err := w.WriteField("language", req.Language); err != nil {
			return "", err
		}
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", o.baseURL+"/audio/transcriptions", &buf)
	if err != nil {
		return "", err
	}

	httpReq.Header.Set("Content-Type", w.FormDataContentType())
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

	var tResp transcriptionResponse
	_ = json.Unmarshal(body, &tResp)

	if resp.StatusCode != http.StatusOK {
		msg := string(body)
		if tResp.Error != nil {
			msg = tResp.Error.Message
		}
		return "", &Failure{Kind: classifyStatus(resp.StatusCode, msg), Status: resp.StatusCode, Message: msg}
	}

	return tResp.Text, nil
}
