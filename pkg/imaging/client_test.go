package imaging

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shouni/go-http-kit/httpkit"

	"github.com/shouni/go-tattoo-kit/pkg/failure"
)

// jpegHeader は http.DetectContentType が image/jpeg と判定する先頭バイトなのだ。
var jpegHeader = []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10, 'J', 'F', 'I', 'F'}

func localClient() *httpkit.Client {
	return httpkit.New(5*time.Second, httpkit.WithSkipNetworkValidation(true))
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status int
		want   FailureClass
	}{
		{403, ClassModeration},
		{429, ClassRateLimited},
		{500, ClassOther},
		{400, ClassOther},
		{503, ClassOther},
	}
	for _, tt := range tests {
		if got := ClassifyStatus(tt.status); got != tt.want {
			t.Errorf("ClassifyStatus(%d) = %s, want %s", tt.status, got, tt.want)
		}
	}
}

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(Config{BaseURL: srv.URL, APIKey: "k", HTTPClient: localClient()})
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestClient_Generate_Success(t *testing.T) {
	payload := []byte("png-bytes")
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != defaultPaths[OpStructure] {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
			return
		}
		if got := r.FormValue("control_strength"); got != "1.00" {
			t.Errorf("strength はクランプされるはずなのだ: %q", got)
		}
		if got := r.FormValue("seed"); got != "42" {
			t.Errorf("seed = %q", got)
		}
		if got := r.FormValue("negative_prompt"); got != "blurry" {
			t.Errorf("negative_prompt = %q", got)
		}
		if _, _, err := r.FormFile("image"); err != nil {
			t.Errorf("画像が送られていないのだ: %v", err)
		}
		f, _, err := r.FormFile("control_image")
		if err != nil {
			t.Errorf("構図マップが送られていないのだ: %v", err)
		} else {
			b, _ := io.ReadAll(f)
			if string(b) != "sketch" {
				t.Errorf("control_image = %q", b)
			}
		}
		fmt.Fprintf(w, `{"image":%q,"finish_reason":"SUCCESS","seed":42}`, base64.StdEncoding.EncodeToString(payload))
	})

	seed := int64(42)
	strength := 1.7
	resp, err := c.Generate(context.Background(), Request{
		Operation:      OpStructure,
		Prompt:         "phoenix",
		NegativePrompt: "blurry",
		Image:          []byte("src"),
		ControlImage:   []byte("sketch"),
		Strength:       &strength,
		Seed:           &seed,
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if string(resp.Data) != string(payload) || resp.Seed != 42 || resp.FinishReason != FinishSuccess {
		t.Errorf("unexpected response: %+v", resp)
	}
	if resp.MimeType != "image/png" {
		t.Errorf("MimeType = %q", resp.MimeType)
	}
}

func TestClient_Generate_Failures(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantClass FailureClass
		terminal  bool
	}{
		{"モデレーション拒否", http.StatusForbidden, `{"errors":["blocked"]}`, ClassModeration, true},
		{"レート制限", http.StatusTooManyRequests, `slow down`, ClassRateLimited, false},
		{"サーバーエラー", http.StatusInternalServerError, `boom`, ClassOther, false},
		{"200 でもフィルタ済み", http.StatusOK, `{"image":"","finish_reason":"CONTENT_FILTERED","seed":1}`, ClassModeration, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := c.Generate(context.Background(), Request{Operation: OpGenerate, Prompt: "p"})
			var se *StatusError
			if !errors.As(err, &se) {
				t.Fatalf("StatusError ではないのだ: %v", err)
			}
			if se.Class != tt.wantClass {
				t.Errorf("Class = %s, want %s", se.Class, tt.wantClass)
			}
			if got := failure.IsTerminal(failure.Wrap(failure.KindExternalCall, "base", err)); got != tt.terminal {
				t.Errorf("IsTerminal = %v, want %v", got, tt.terminal)
			}
		})
	}
}

func TestClient_Generate_RequiresImage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("入力画像無しでリクエストが送られたのだ")
	})
	if _, err := c.Generate(context.Background(), Request{Operation: OpStyle, Prompt: "p"}); err == nil {
		t.Error("入力画像無しのスタイル転写が通ってしまったのだ")
	}
	if _, err := c.Generate(context.Background(), Request{Operation: "paint", Prompt: "p"}); err == nil {
		t.Error("未知の操作が通ってしまったのだ")
	}
}

func TestNewClient_RequiresKey(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Error("API キー無しでクライアントを作れてしまったのだ")
	}
}

func TestReferenceFetcher_CachesAndDeduplicates(t *testing.T) {
	var hits atomic.Int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-release
		_, _ = w.Write(jpegHeader)
	}))
	defer srv.Close()

	f := NewReferenceFetcher(localClient())
	url := srv.URL + "/ref.jpg"

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			img, err := f.Fetch(context.Background(), url)
			if err != nil {
				t.Errorf("Fetch failed: %v", err)
				return
			}
			if img.MimeType != "image/jpeg" || string(img.Data) != string(jpegHeader) {
				t.Errorf("unexpected image: %+v", img)
			}
		}()
	}
	close(release)
	wg.Wait()

	if _, err := f.Fetch(context.Background(), url); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	// 同時呼び出しがまとまりきらない場合でもキャッシュで上限は小さい
	if n := hits.Load(); n < 1 || n > 4 {
		t.Errorf("hits = %d", n)
	}

	before := hits.Load()
	if _, err := f.Fetch(context.Background(), url); err != nil {
		t.Fatal(err)
	}
	if hits.Load() != before {
		t.Error("キャッシュ済みなのに再取得したのだ")
	}
}

func TestReferenceFetcher_Non200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()
	_, err := NewReferenceFetcher(localClient()).Fetch(context.Background(), srv.URL)
	var httpErr *httpkit.NonRetryableHTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusNotFound {
		t.Errorf("404 が NonRetryableHTTPError にならないのだ: %v", err)
	}
}

func TestReferenceFetcher_RejectsInternalAddress(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("internal-metadata-secret"))
	}))
	defer srv.Close()

	tests := []struct {
		name string
		url  string
	}{
		{"ループバック", srv.URL + "/latest/meta-data"},
		{"リンクローカル", "http://169.254.169.254/latest/meta-data"},
	}
	f := NewReferenceFetcher(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := f.Fetch(context.Background(), tt.url)
			if err == nil {
				t.Fatalf("内部アドレスを取得できてしまったのだ: %q", img.Data)
			}
		})
	}
	if n := hits.Load(); n != 0 {
		t.Errorf("内部サーバーにリクエストが届いたのだ: hits = %d", n)
	}
}
