package assist

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/michal-palko/smart-claimer/internal/claimer"
	"github.com/michal-palko/smart-claimer/internal/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClientFromConfig(config.OpenAIConfig{
		APIKey:      "sk-test",
		BaseURL:     srv.URL,
		Model:       "gpt-4o-mini",
		MaxTokens:   500,
		Temperature: 0.7,
		Timeout:     config.Duration{Duration: 2 * time.Second},
	}, nil)
}

func TestClient_Chat(t *testing.T) {
	ctx := context.Background()

	t.Run("fills defaults and forwards response", func(t *testing.T) {
		var got map[string]any
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/chat/completions" {
				t.Errorf("path = %s", r.URL.Path)
			}
			if auth := r.Header.Get("Authorization"); auth != "Bearer sk-test" {
				t.Errorf("Authorization = %q", auth)
			}
			body, _ := io.ReadAll(r.Body)
			json.Unmarshal(body, &got)
			w.Header().Set("Content-Type", "application/json")
			io.WriteString(w, `{"choices":[{"message":{"content":"ok"}}]}`)
		})

		out, err := c.Chat(ctx, json.RawMessage(`{"messages":[{"role":"user","content":"hi"}],"temperature":0.1}`))
		if err != nil {
			t.Fatalf("Chat() error = %v", err)
		}
		if !strings.Contains(string(out), `"content":"ok"`) {
			t.Errorf("response = %s", out)
		}
		if got["model"] != "gpt-4o-mini" || got["max_tokens"] != float64(500) {
			t.Errorf("request = %v, want defaults filled", got)
		}
		if got["temperature"] != 0.1 {
			t.Errorf("temperature = %v, want caller value kept", got["temperature"])
		}
	})

	t.Run("upstream error is surfaced verbatim", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			io.WriteString(w, `{"error":{"message":"Rate limit reached"}}`)
		})

		_, err := c.Chat(ctx, json.RawMessage(`{"messages":[]}`))
		var remote *claimer.RemoteError
		if !errors.As(err, &remote) {
			t.Fatalf("error = %v, want RemoteError", err)
		}
		if remote.Status != http.StatusTooManyRequests || remote.Detail != "Rate limit reached" {
			t.Errorf("remote = %+v", remote)
		}
	})

	t.Run("non-object body", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			t.Error("upstream must not be called")
		})
		if _, err := c.Chat(ctx, json.RawMessage(`[1,2]`)); !errors.Is(err, claimer.ErrValidation) {
			t.Errorf("error = %v, want validation error", err)
		}
	})

	t.Run("missing key", func(t *testing.T) {
		c := NewClientFromConfig(config.OpenAIConfig{}, nil)
		_, err := c.Chat(ctx, json.RawMessage(`{}`))
		if !errors.Is(err, ErrNotConfigured) {
			t.Errorf("error = %v, want ErrNotConfigured", err)
		}
	})
}

func TestPublicConfig(t *testing.T) {
	cfg := config.NewConfig(t.TempDir())
	cfg.OpenAI.APIKey = "sk-secret"

	pub := PublicConfig(cfg.OpenAI, cfg.Whisper)
	raw, _ := json.Marshal(pub)
	if strings.Contains(string(raw), "sk-secret") {
		t.Error("public config must not expose the API key")
	}
	if pub.OpenAI.APIURL != ProxyPath {
		t.Errorf("apiUrl = %q, want %q", pub.OpenAI.APIURL, ProxyPath)
	}
	if pub.Whisper.Language != "sk" || pub.Whisper.MaxRecordingTime != 300 {
		t.Errorf("whisper = %+v", pub.Whisper)
	}
}
