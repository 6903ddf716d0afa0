package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shouni/go-http-kit/httpkit"
)

func TestNew(t *testing.T) {
	ctx := context.Background()

	p, err := New(ctx, Config{Provider: "none"})
	if err != nil || p != nil {
		t.Errorf("none は未設定 (nil, nil) のはずなのだ: %v, %v", p, err)
	}
	if _, err := New(ctx, Config{Provider: "claude-on-a-toaster"}); err == nil {
		t.Error("未知のプロバイダーでエラーにならないのだ")
	}
	if _, err := New(ctx, Config{Provider: ProviderOpenAI}); err == nil {
		t.Error("API キー無しの OpenAI を作れてしまったのだ")
	}
	if _, err := New(ctx, Config{Provider: ProviderGemini}); err == nil {
		t.Error("API キー無しの Gemini を作れてしまったのだ")
	}
	p, err = New(ctx, Config{Provider: "Ollama", Model: "m"})
	if err != nil {
		t.Fatalf("New(ollama) failed: %v", err)
	}
	if p.Name() != "ollama:m" {
		t.Errorf("Name() = %q", p.Name())
	}
}

func TestOpenAI_Generate(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    string
		wantErr error
		anyErr  bool
	}{
		{"成功", http.StatusOK, `{"choices":[{"message":{"role":"assistant","content":"  a rising phoenix  "}}]}`, "a rising phoenix", nil, false},
		{"空の本文", http.StatusOK, `{"choices":[{"message":{"role":"assistant","content":"   "}}]}`, "", ErrEmptyResponse, true},
		{"choices なし", http.StatusOK, `{"choices":[]}`, "", ErrEmptyResponse, true},
		{"サーバーエラー", http.StatusInternalServerError, `oops`, "", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/v1/chat/completions" {
					t.Errorf("unexpected path: %s", r.URL.Path)
				}
				if r.Header.Get("Authorization") != "Bearer k" {
					t.Errorf("missing auth header")
				}
				var req struct {
					Messages []chatMessage `json:"messages"`
				}
				_ = json.NewDecoder(r.Body).Decode(&req)
				if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
					t.Errorf("unexpected messages: %+v", req.Messages)
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			o, err := NewOpenAI(Config{APIKey: "k", BaseURL: srv.URL, HTTPClient: srv.Client()})
			if err != nil {
				t.Fatal(err)
			}
			got, err := o.Generate(context.Background(), Request{System: "sys", Prompt: "hello"})
			if (err != nil) != tt.anyErr {
				t.Fatalf("Generate() error = %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Generate() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestOllama_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req["stream"] != false || req["system"] != "sys" {
			t.Errorf("unexpected request: %v", req)
		}
		_, _ = w.Write([]byte(`{"response":"what street?"}`))
	}))
	defer srv.Close()

	o := NewOllama(Config{BaseURL: srv.URL})
	got, err := o.Generate(context.Background(), Request{System: "sys", Prompt: "p"})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if got != "what street?" {
		t.Errorf("Generate() = %q", got)
	}

	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"response":""}`))
	}))
	defer empty.Close()
	if _, err := NewOllama(Config{BaseURL: empty.URL}).Generate(context.Background(), Request{Prompt: "p"}); !errors.Is(err, ErrEmptyResponse) {
		t.Errorf("空応答を区別できていないのだ: %v", err)
	}
}

func TestOpenAI_Generate_ClientError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"bad key"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	o, err := NewOpenAI(Config{APIKey: "k", BaseURL: srv.URL, HTTPClient: httpkit.New(time.Second, httpkit.WithSkipNetworkValidation(true))})
	if err != nil {
		t.Fatal(err)
	}
	_, err = o.Generate(context.Background(), Request{Prompt: "hello"})
	var httpErr *httpkit.NonRetryableHTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("4xx が NonRetryableHTTPError にならないのだ: %v", err)
	}
}
