package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/shouni/go-tattoo-kit/pkg/design"
	"github.com/shouni/go-tattoo-kit/pkg/domain"
	"github.com/shouni/go-tattoo-kit/pkg/failure"
	"github.com/shouni/go-tattoo-kit/pkg/questionnaire"
)

type stubGenerator struct {
	calls int
	errs  []error
}

func (g *stubGenerator) Generate(_ context.Context, _ *domain.SessionAnswers) (*domain.PipelineResult, error) {
	i := g.calls
	g.calls++
	if i < len(g.errs) && g.errs[i] != nil {
		return nil, g.errs[i]
	}
	return &domain.PipelineResult{Images: []domain.GeneratedImage{
		{Kind: domain.KindColor, Data: []byte("color-png"), MimeType: "image/png"},
		{Kind: domain.KindStencil, Data: []byte("stencil-png"), MimeType: "image/png"},
	}}, nil
}

type factory struct {
	bank *questionnaire.Bank
	gen  *stubGenerator
}

func (f factory) NewSession() (*design.Session, error) {
	return design.NewSession(design.Deps{
		Bank:       f.bank,
		Policy:     questionnaire.DefaultPolicy(),
		Generator:  f.gen,
		Classifier: failure.NewClassifier(slog.New(slog.NewTextHandler(io.Discard, nil))),
	})
}

type client struct {
	t   *testing.T
	srv *httptest.Server
}

func (c client) do(method, path string, body any) (*http.Response, []byte) {
	c.t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			c.t.Fatal(err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, c.srv.URL+path, r)
	if err != nil {
		c.t.Fatal(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.srv.Client().Do(req)
	if err != nil {
		c.t.Fatal(err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp, data
}

func (c client) expect(method, path string, body any, status int) []byte {
	c.t.Helper()
	resp, data := c.do(method, path, body)
	if resp.StatusCode != status {
		c.t.Fatalf("%s %s = %d, want %d: %s", method, path, resp.StatusCode, status, data)
	}
	return data
}

func newTestServer(t *testing.T, gen *stubGenerator, opts ...Option) client {
	t.Helper()
	bank, err := questionnaire.DefaultBank()
	if err != nil {
		t.Fatal(err)
	}
	h, err := New(factory{bank: bank, gen: gen}, bank, nil, opts...)
	if err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(h.Routes())
	t.Cleanup(srv.Close)
	return client{t: t, srv: srv}
}

func createSession(c client) string {
	var created struct {
		ID         string `json:"id"`
		StoryCount int    `json:"story_count"`
	}
	if err := json.Unmarshal(c.expect(http.MethodPost, "/api/sessions", nil, http.StatusCreated), &created); err != nil {
		c.t.Fatal(err)
	}
	return created.ID
}

func TestHandlers_FullFlow(t *testing.T) {
	gen := &stubGenerator{errs: []error{failure.Wrap(failure.KindExternalCall, "base", errors.New("upstream 503: secret detail"))}}
	c := newTestServer(t, gen)
	id := createSession(c)
	base := "/api/sessions/" + id

	// 空回答では進めないのだ
	c.expect(http.MethodPost, base+"/advance", nil, http.StatusConflict)

	for i := range 6 {
		if i%2 == 0 {
			c.expect(http.MethodPut, fmt.Sprintf("%s/stories/%d", base, i), map[string]string{"value": "answer"}, http.StatusOK)
		} else {
			c.expect(http.MethodPost, fmt.Sprintf("%s/stories/%d/skip", base, i), nil, http.StatusOK)
		}
		c.expect(http.MethodPost, base+"/advance", nil, http.StatusOK)
	}

	var gate questionnaire.GateStatus
	data := c.expect(http.MethodPost, base+"/selections/style", domain.Selection{Tag: "blackwork"}, http.StatusOK)
	if err := json.Unmarshal(data, &gate); err != nil || gate.CanAdvance {
		t.Fatalf("1 枚で進めるようになっているのだ: %s", data)
	}
	c.expect(http.MethodPost, base+"/selections/bogus", domain.Selection{Tag: "x"}, http.StatusBadRequest)
	data = c.expect(http.MethodPost, base+"/selections/placement", domain.Selection{Tag: "forearm"}, http.StatusOK)
	if err := json.Unmarshal(data, &gate); err != nil || !gate.CanAdvance {
		t.Fatalf("2 枚で進めないのだ: %s", data)
	}
	c.expect(http.MethodPost, base+"/advance", nil, http.StatusOK)

	var adv struct {
		State   questionnaire.State `json:"state"`
		Outcome *design.Outcome     `json:"outcome"`
	}
	data = c.expect(http.MethodPost, base+"/advance", nil, http.StatusOK)
	if err := json.Unmarshal(data, &adv); err != nil {
		t.Fatal(err)
	}
	if adv.State != questionnaire.Complete || adv.Outcome == nil || adv.Outcome.Success || !adv.Outcome.Retryable {
		t.Fatalf("unexpected advance response: %s", data)
	}
	if bytes.Contains(data, []byte("secret detail")) {
		t.Error("技術的な詳細が利用者に漏れているのだ")
	}

	c.expect(http.MethodGet, base+"/images/color", nil, http.StatusNotFound)

	var out design.Outcome
	data = c.expect(http.MethodPost, base+"/retry", nil, http.StatusOK)
	if err := json.Unmarshal(data, &out); err != nil || !out.Success {
		t.Fatalf("リトライで成功しないのだ: %s", data)
	}
	c.expect(http.MethodPost, base+"/retry", nil, http.StatusConflict)

	if img := c.expect(http.MethodGet, base+"/images/stencil", nil, http.StatusOK); string(img) != "stencil-png" {
		t.Errorf("stencil image = %q", img)
	}
	c.expect(http.MethodPost, base+"/retreat", nil, http.StatusConflict)

	c.expect(http.MethodPost, base+"/new-design", nil, http.StatusOK)
	var snap design.Snapshot
	if err := json.Unmarshal(c.expect(http.MethodGet, base, nil, http.StatusOK), &snap); err != nil {
		t.Fatal(err)
	}
	if snap.State != questionnaire.Story(0) || snap.Status != design.StatusIdle {
		t.Errorf("new-design 後の状態が初期化されていないのだ: %+v", snap)
	}
}

func TestHandlers_Errors(t *testing.T) {
	c := newTestServer(t, &stubGenerator{})
	c.expect(http.MethodGet, "/api/sessions/missing", nil, http.StatusNotFound)

	id := createSession(c)
	base := "/api/sessions/" + id
	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
	}{
		{"範囲外のステップ", http.MethodPut, base + "/stories/99", map[string]string{"value": "x"}, http.StatusBadRequest},
		{"数値でないステップ", http.MethodPut, base + "/stories/abc", map[string]string{"value": "x"}, http.StatusBadRequest},
		{"最初のステップで戻る", http.MethodPost, base + "/retreat", nil, http.StatusConflict},
		{"失敗前のリトライ", http.MethodPost, base + "/retry", nil, http.StatusConflict},
		{"空の参照画像", http.MethodPost, base + "/references", map[string]string{"label": "x"}, http.StatusBadRequest},
		{"保存先なしのデザイン一覧", http.MethodGet, "/api/designs", nil, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c.t = t
			c.expect(tt.method, tt.path, tt.body, tt.status)
		})
	}
}

func TestHandlers_FollowUpAndQuestions(t *testing.T) {
	c := newTestServer(t, &stubGenerator{})
	var bank questionnaire.Bank
	if err := json.Unmarshal(c.expect(http.MethodGet, "/api/questions", nil, http.StatusOK), &bank); err != nil {
		t.Fatal(err)
	}
	if len(bank.Stories) != 6 || len(bank.Visual) == 0 {
		t.Errorf("unexpected bank: %+v", bank)
	}

	id := createSession(c)
	// 追加質問の提供元が無いセッションは 404 なのだ
	c.expect(http.MethodGet, "/api/sessions/"+id+"/stories/0/followup", nil, http.StatusNotFound)
}

// privateHostValidator はループバックとリンクローカル宛ての URL を拒否するのだ。
type privateHostValidator struct{}

func (privateHostValidator) IsSafeURL(raw string) (bool, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return false, err
	}
	host := u.Hostname()
	if host == "localhost" || strings.HasPrefix(host, "127.") || strings.HasPrefix(host, "169.254.") {
		return false, nil
	}
	return true, nil
}

func (privateHostValidator) IsSecureServiceURL(raw string) bool {
	return strings.HasPrefix(raw, "https://")
}

func TestHandlers_AddReferenceURLValidation(t *testing.T) {
	c := newTestServer(t, &stubGenerator{}, WithURLValidator(privateHostValidator{}))
	base := "/api/sessions/" + createSession(c) + "/references"

	tests := []struct {
		name   string
		url    string
		status int
	}{
		{"公開 URL", "https://images.example.com/ref.png", http.StatusOK},
		{"ループバック", "http://127.0.0.1:8080/latest/meta-data", http.StatusBadRequest},
		{"メタデータサーバー", "http://169.254.169.254/latest/meta-data", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c.t = t
			c.expect(http.MethodPost, base, map[string]string{"url": tt.url, "label": "ref"}, tt.status)
		})
	}
}
