// Package llamacpp talks to a llama.cpp server through its OpenAI
// compatible chat completions endpoint
package llamacpp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/menta2k/portrait-cropper/pkg/client"
	"github.com/menta2k/portrait-cropper/pkg/types"
)

const (
	chatPath       = "/v1/chat/completions"
	defaultURL     = "http://localhost:8080"
	requestTimeout = 300 * time.Second
)

var errEmptyResponse = errors.New("empty response from llama.cpp server")

// Client is a llama.cpp vision client
type Client struct {
	baseURL    string
	httpClient *http.Client
}

var _ client.VisionClient = (*Client)(nil)

type chatMessage struct {
	Role string `json:"role"`
	// string in responses, []contentPart in requests
	Content any `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Stream         bool            `json:"stream"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewClient creates a client for the server at serverURL (default
// http://localhost:8080)
func NewClient(serverURL string) (*Client, error) {
	if serverURL == "" {
		serverURL = defaultURL
	}
	u, err := url.Parse(serverURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid URL: %q", serverURL)
	}

	return &Client{
		baseURL:    strings.TrimSuffix(u.String(), "/"),
		httpClient: &http.Client{},
	}, nil
}

// LocateFaces sends the image to a llama.cpp server and returns the faces it reports
func (c *Client) LocateFaces(ctx context.Context, model, prompt, imgB64 string) (*types.FaceLocations, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, requestTimeout)
		defer cancel()
	}

	parts := []contentPart{{Type: "text", Text: prompt}}
	if imgB64 != "" {
		parts = append(parts, contentPart{
			Type:     "image_url",
			ImageURL: &imageURL{URL: "data:image/jpeg;base64," + imgB64},
		})
	}

	var resp chatResponse
	err := c.post(ctx, chatPath, chatRequest{
		Model:          model,
		Messages:       []chatMessage{{Role: "user", Content: parts}},
		MaxTokens:      2048,
		ResponseFormat: &responseFormat{Type: "json_object"},
	}, &resp)
	if err != nil {
		return nil, err
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}
	text := extractText(resp.Choices[0].Message.Content)
	if text == "" {
		return nil, errEmptyResponse
	}

	return client.ParseFaceLocations(text)
}

// extractText returns the first text found in a string or content-part
// array message
func extractText(content any) string {
	switch content := content.(type) {
	case string:
		return content
	case []any:
		for _, item := range content {
			part, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if text, ok := part["text"].(string); ok && text != "" {
				return text
			}
		}
	}
	return ""
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("llama.cpp request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr chatResponse
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != nil {
			return fmt.Errorf("llama.cpp returned %d: %s", resp.StatusCode, apiErr.Error.Message)
		}
		return fmt.Errorf("llama.cpp returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
