package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/valter-silva-au/koscode/pkg/models"
)

// ChatMessage is a role-tagged message of a chat conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumCtx      int     `json:"num_ctx,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaChatRequest struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`
	Options  ollamaOptions `json:"options"`
	Stream   bool          `json:"stream"`
}

// OllamaGenerator talks to the Ollama chat API without streaming.
type OllamaGenerator struct {
	httpClient *http.Client
	baseURL    string
}

// NewOllamaGenerator creates an OllamaGenerator for baseURL
// (e.g. http://localhost:11434). Per-call deadlines come from the sampling
// configuration, so the HTTP client itself has no timeout.
func NewOllamaGenerator(baseURL string) *OllamaGenerator {
	return &OllamaGenerator{
		httpClient: &http.Client{},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
	}
}

// Generate sends a system and a user message and returns the reply text.
// Network failures, timeouts and non-2xx statuses are errors; an
// unrecognized response shape is not, it just yields "".
func (o *OllamaGenerator) Generate(ctx context.Context, system, user string, sampling models.SamplingConfig) (string, error) {
	if sampling.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, sampling.Timeout)
		defer cancel()
	}

	payload := ollamaChatRequest{
		Model: sampling.Model,
		Messages: []ChatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Options: ollamaOptions{
			Temperature: sampling.Temperature,
			NumCtx:      sampling.NumCtx,
			NumPredict:  sampling.NumPredict,
		},
		Stream: false,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshalling ollama request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating ollama request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	slog.Debug("calling ollama", "model", sampling.Model, "num_predict", sampling.NumPredict)
	resp, err := o.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama API call failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading ollama response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("ollama failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	return DecodeChatResponse(respBody), nil
}

// DecodeChatResponse extracts the reply text from a chat response body. It
// tries, in order: a single "message" object, a "messages" list whose last
// element is an object, a "response" string, and a bare JSON string. A
// shape that does not match falls through to the next one; anything else
// decodes to "".
func DecodeChatResponse(body []byte) string {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err == nil {
		if msg := jsonObject(obj["message"]); msg != nil {
			return stringField(msg, "content")
		}
		var msgs []json.RawMessage
		if json.Unmarshal(obj["messages"], &msgs) == nil && len(msgs) > 0 {
			if last := jsonObject(msgs[len(msgs)-1]); last != nil {
				return stringField(last, "content")
			}
		}
		return stringField(obj, "response")
	}

	var s string
	if err := json.Unmarshal(body, &s); err == nil {
		return s
	}
	return ""
}

// jsonObject decodes raw as a JSON object, returning nil for null, a
// missing value or any other JSON type.
func jsonObject(raw json.RawMessage) map[string]json.RawMessage {
	var obj map[string]json.RawMessage
	if len(raw) == 0 || json.Unmarshal(raw, &obj) != nil {
		return nil
	}
	return obj
}

func stringField(obj map[string]json.RawMessage, key string) string {
	raw, ok := obj[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}
