package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// GeminiClient speaks the generateContent REST dialect. It is one adapter
// behind the Client interface; the rest of the system never depends on it
// directly.
type GeminiClient struct {
	baseURL string
	apiKey  string
	model   string
	http    *http.Client
	logger  zerolog.Logger
}

// NewGeminiClient creates a client for the given endpoint, key and model.
func NewGeminiClient(baseURL, apiKey, model string, timeout time.Duration, logger zerolog.Logger) *GeminiClient {
	return &GeminiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiRequest struct {
	Contents []struct {
		Parts []geminiPart `json:"parts"`
	} `json:"contents"`
	GenerationConfig struct {
		ResponseMimeType string                 `json:"response_mime_type"`
		ResponseSchema   map[string]interface{} `json:"response_schema,omitempty"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func (c *GeminiClient) Generate(ctx context.Context, req Request) ([]byte, error) {
	if c.apiKey == "" {
		return nil, &Error{Code: CodeAuth, Message: "no API key configured"}
	}

	parts := []geminiPart{{Text: req.Prompt}}
	if req.ImageURI != "" {
		// Strip the data: URI header; the wire format wants bare base64.
		data := req.ImageURI
		if idx := strings.Index(data, ","); idx >= 0 {
			data = data[idx+1:]
		}
		parts = append(parts, geminiPart{InlineData: &geminiInlineData{
			MimeType: "image/jpeg",
			Data:     data,
		}})
	}

	var body geminiRequest
	body.Contents = append(body.Contents, struct {
		Parts []geminiPart `json:"parts"`
	}{Parts: parts})
	body.GenerationConfig.ResponseMimeType = "application/json"
	body.GenerationConfig.ResponseSchema = req.Schema

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal provider request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build provider request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		code := CodeUnavailable
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			code = CodeTimeout
		}
		return nil, &Error{Code: code, Message: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, &Error{Code: CodeUnavailable, Message: err.Error()}
	}

	c.logger.Debug().
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Str("model", c.model).
		Msg("provider call")

	if resp.StatusCode != http.StatusOK {
		return nil, &Error{
			Code:    ClassifyStatus(resp.StatusCode),
			Status:  resp.StatusCode,
			Message: providerErrorDetail(raw),
		}
	}

	var parsed geminiResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, &Error{Code: CodeServerError, Status: resp.StatusCode, Message: "unparseable provider envelope"}
	}
	if parsed.Error != nil {
		return nil, &Error{
			Code:    ClassifyStatus(parsed.Error.Code),
			Status:  parsed.Error.Code,
			Message: parsed.Error.Message,
		}
	}

	var text strings.Builder
	for _, cand := range parsed.Candidates {
		for _, p := range cand.Content.Parts {
			text.WriteString(p.Text)
		}
	}
	return []byte(text.String()), nil
}

// providerErrorDetail extracts the message from an error envelope, falling
// back to the raw body so support always sees what the provider said.
func providerErrorDetail(raw []byte) string {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error.Message != "" {
		return envelope.Error.Message
	}
	s := string(raw)
	if len(s) > 512 {
		s = s[:512]
	}
	return s
}
